package imaging

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// Sensor holds the camera geometry needed to estimate ground sample
// distance for imagery without a geotransform.
type Sensor struct {
	FocalLengthMM  number `json:"focal_length_mm"`
	SensorHeightCM number `json:"sensor_height_cm"`
	SensorWidthCM  number `json:"sensor_width_cm"`
}

// number accepts a JSON number or a numeric string. Sensor tables are
// often hand-edited and mix the two.
type number float64

func (n *number) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", data)
	}
	*n = number(f)
	return nil
}

// LoadSensors reads a JSON object of sensor name to Sensor.
func LoadSensors(path string) (map[string]Sensor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sensor file: %w", err)
	}
	var sensors map[string]Sensor
	if err := json.Unmarshal(data, &sensors); err != nil {
		return nil, fmt.Errorf("failed to parse sensor file: %w", err)
	}
	return sensors, nil
}

// LookupSensor returns the named sensor, listing the known names if it is
// missing.
func LookupSensor(sensors map[string]Sensor, name string) (Sensor, error) {
	s, ok := sensors[name]
	if !ok {
		names := make([]string, 0, len(sensors))
		for n := range sensors {
			names = append(names, n)
		}
		sort.Strings(names)
		return Sensor{}, fmt.Errorf("unknown sensor %q (known: %s)", name, strings.Join(names, ", "))
	}
	if s.FocalLengthMM <= 0 || s.SensorHeightCM <= 0 || s.SensorWidthCM <= 0 {
		return Sensor{}, fmt.Errorf("sensor %q has non-positive parameters", name)
	}
	return s, nil
}

// MaxGSD estimates the ground sample distance, in centimetres per pixel,
// of a nadir image taken aglM metres above ground. The coarser of the two
// axes is returned.
func MaxGSD(aglM float64, height, width int, s Sensor) float64 {
	agl := aglM * 1000
	f := float64(s.FocalLengthMM)
	gsdH := agl * float64(s.SensorHeightCM) / (f * float64(height))
	gsdW := agl * float64(s.SensorWidthCM) / (f * float64(width))
	return max(gsdH, gsdW)
}

// ResampleToGSD scales img so its GSD becomes targetCM, given its
// estimated GSD. Only downsampling is performed: when the image is already
// at or coarser than the target it is returned unchanged and the second
// result is false.
func ResampleToGSD(img image.Image, estimatedCM, targetCM float64) (image.Image, bool) {
	if targetCM <= 0 || estimatedCM <= 0 || estimatedCM >= targetCM {
		return img, false
	}

	factor := estimatedCM / targetCM
	b := img.Bounds()
	w := max(1, int(float64(b.Dx())*factor))
	h := max(1, int(float64(b.Dy())*factor))
	if w == b.Dx() && h == b.Dy() {
		return img, false
	}
	return imaging.Resize(img, w, h, imaging.Lanczos), true
}
