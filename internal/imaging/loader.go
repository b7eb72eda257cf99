package imaging

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/geochip/internal/raster"
)

// ErrUnsupportedType is returned for files whose extension is not in the
// approved list.
var ErrUnsupportedType = errors.New("unsupported image type")

// DefaultApprovedTypes lists the extensions accepted when no list is
// configured.
var DefaultApprovedTypes = []string{".jpg", ".jpeg", ".png", ".tif", ".tiff"}

// ImageCache provides thread-safe caching of decoded images so the MCP tools
// can chip, preview and detect on the same file without re-reading it.
//
// Aerial images are large; the pipeline evicts each image once it is done
// with it.
//
// # Example Usage
//
//	cache := imaging.NewImageCache()
//	r, err := cache.LoadRaster("/data/flight-07/DJI_0042.JPG")
//	if err != nil {
//	    return err
//	}
//	defer cache.Evict("/data/flight-07/DJI_0042.JPG")
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]image.Image
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]image.Image),
	}
}

// Load retrieves an image from the cache or decodes it from disk.
//
// Decoding goes through imaging.Open, so JPEG, PNG, GIF, TIFF and BMP are
// all readable. The cache key is the exact path string given.
func (c *ImageCache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

// LoadRaster loads path and converts it to a 3-channel RGB raster. Alpha
// and palette information are dropped.
func (c *ImageCache) LoadRaster(path string) (raster.Raster, error) {
	img, err := c.Load(path)
	if err != nil {
		return raster.Raster{}, err
	}
	return raster.FromImage(img), nil
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its path.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// CheckApproved returns ErrUnsupportedType unless the extension of path,
// compared case-insensitively, is in approved. An empty list means
// DefaultApprovedTypes.
func CheckApproved(path string, approved []string) error {
	if len(approved) == 0 {
		approved = DefaultApprovedTypes
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, a := range approved {
		if ext == strings.ToLower(a) {
			return nil
		}
	}
	return fmt.Errorf("%w: %q (approved: %s)", ErrUnsupportedType, filepath.Base(path), strings.Join(approved, ", "))
}

// ImageInfo contains metadata about a loaded image file.
type ImageInfo struct {
	Path string `json:"path"`

	// ImageID is the file name without directory or extension. Results for
	// the image are keyed by it.
	ImageID string `json:"image_id"`

	Width  int `json:"width"`
	Height int `json:"height"`

	// Format is derived from the file extension: "png", "jpeg", "gif",
	// "tiff", "bmp" or "unknown".
	Format string `json:"format"`

	// ColorDepth is "8-bit" or "16-bit". 16-bit images are reduced to 8
	// bits per sample when chipped.
	ColorDepth string `json:"color_depth"`

	HasAlpha      bool  `json:"has_alpha"`
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image into the cache and describes it.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format := "unknown"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		format = "png"
	case ".jpg", ".jpeg":
		format = "jpeg"
	case ".gif":
		format = "gif"
	case ".tif", ".tiff":
		format = "tiff"
	case ".bmp":
		format = "bmp"
	}

	hasAlpha := false
	colorDepth := "8-bit"
	switch img.(type) {
	case *image.RGBA, *image.NRGBA:
		hasAlpha = true
	case *image.RGBA64, *image.NRGBA64:
		hasAlpha = true
		colorDepth = "16-bit"
	case *image.Gray16:
		colorDepth = "16-bit"
	}

	return &ImageInfo{
		Path:          path,
		ImageID:       ImageID(path),
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Format:        format,
		ColorDepth:    colorDepth,
		HasAlpha:      hasAlpha,
		FileSizeBytes: stat.Size(),
	}, nil
}

// ImageID returns the base name of path without its extension.
func ImageID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
