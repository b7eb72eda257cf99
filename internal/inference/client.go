package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ironsheep/geochip/internal/logger"
	"github.com/ironsheep/geochip/internal/raster"
)

// DefaultSignature is the serving signature used when none is configured.
const DefaultSignature = "serving_default"

// Client talks to a TensorFlow Serving style REST predict endpoint.
type Client struct {
	url        string
	signature  string
	httpClient *http.Client
	logger     *logger.Logger
}

// ClientConfig contains configuration for the model server client
type ClientConfig struct {
	// URL is the full predict endpoint, e.g.
	// http://tf-server:8501/v1/models/efficientdet-d0:predict
	URL           string
	SignatureName string
	Timeout       time.Duration
}

// NewClient creates a new model server client
func NewClient(config ClientConfig, log *logger.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.SignatureName == "" {
		config.SignatureName = DefaultSignature
	}

	return &Client{
		url:       config.URL,
		signature: config.SignatureName,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: log,
	}
}

type predictResponse struct {
	Predictions []wirePrediction `json:"predictions"`
	Error       string           `json:"error"`
}

type wirePrediction struct {
	Scores  []float64   `json:"detection_scores"`
	Classes []float64   `json:"detection_classes"`
	Boxes   [][]float64 `json:"detection_boxes"`
}

// Predict sends chips as one batch and returns one Prediction per chip.
//
// A response whose prediction count differs from len(chips), or whose
// per-prediction arrays are ragged, is rejected with ErrMalformedResponse.
func (c *Client) Predict(ctx context.Context, chips []raster.Raster) ([]Prediction, error) {
	if len(chips) == 0 {
		return nil, fmt.Errorf("no chips provided")
	}

	body, err := encodeInstances(c.signature, chips)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug("Sending predict request", "url", c.url, "chips", len(chips), "bytes", len(body))
	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var pr predictResponse
	decodeErr := json.Unmarshal(data, &pr)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && pr.Error != "" {
			return nil, fmt.Errorf("model server returned status %d: %s", resp.StatusCode, pr.Error)
		}
		return nil, fmt.Errorf("model server returned status %d: %s", resp.StatusCode, truncate(string(data), 256))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, decodeErr)
	}
	if pr.Error != "" {
		return nil, fmt.Errorf("model server error: %s", pr.Error)
	}
	if pr.Predictions == nil {
		return nil, fmt.Errorf("%w: no predictions field", ErrMalformedResponse)
	}
	if len(pr.Predictions) != len(chips) {
		return nil, fmt.Errorf("%w: %d predictions for %d chips",
			ErrMalformedResponse, len(pr.Predictions), len(chips))
	}

	preds := make([]Prediction, len(pr.Predictions))
	for i, wp := range pr.Predictions {
		p, err := wp.toPrediction()
		if err != nil {
			return nil, fmt.Errorf("prediction %d: %w", i, err)
		}
		preds[i] = p
	}

	c.logger.Debug("Predict completed", "chips", len(chips), "duration_ms", time.Since(startTime).Milliseconds())
	return preds, nil
}

func (wp wirePrediction) toPrediction() (Prediction, error) {
	p := Prediction{
		Scores:  wp.Scores,
		Classes: wp.Classes,
		Boxes:   make([][4]float64, len(wp.Boxes)),
	}
	for i, b := range wp.Boxes {
		if len(b) != 4 {
			return Prediction{}, fmt.Errorf("%w: box %d has %d coordinates", ErrMalformedResponse, i, len(b))
		}
		copy(p.Boxes[i][:], b)
	}
	if err := p.Validate(); err != nil {
		return Prediction{}, err
	}
	return p, nil
}

// HealthCheck asks the server for the model status. The status URL is the
// predict URL without its ":predict" suffix.
func (c *Client) HealthCheck(ctx context.Context) error {
	url := strings.TrimSuffix(c.url, ":predict")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model server health check failed: status %d", resp.StatusCode)
	}

	return nil
}

// encodeInstances builds the predict request body. Each chip becomes a
// nested [height][width][channels] integer array. encoding/json would emit
// a []uint8 as a base64 string, so the body is written by hand.
func encodeInstances(signature string, chips []raster.Raster) ([]byte, error) {
	sig, err := json.Marshal(signature)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	size := 64
	for _, ch := range chips {
		size += len(ch.Pix) * 4
	}
	buf := make([]byte, 0, size)

	buf = append(buf, `{"signature_name":`...)
	buf = append(buf, sig...)
	buf = append(buf, `,"instances":[`...)
	for n, ch := range chips {
		if err := ch.Validate(); err != nil {
			return nil, fmt.Errorf("chip %d: %w", n, err)
		}
		if n > 0 {
			buf = append(buf, ',')
		}
		buf = appendChip(buf, ch)
	}
	buf = append(buf, "]}"...)
	return buf, nil
}

func appendChip(buf []byte, ch raster.Raster) []byte {
	buf = append(buf, '[')
	for y := 0; y < ch.Height; y++ {
		if y > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '[')
		row := ch.Row(y)
		for x := 0; x < ch.Width; x++ {
			if x > 0 {
				buf = append(buf, ',')
			}
			buf = append(buf, '[')
			for k, v := range row[x*ch.Channels : (x+1)*ch.Channels] {
				if k > 0 {
					buf = append(buf, ',')
				}
				buf = strconv.AppendUint(buf, uint64(v), 10)
			}
			buf = append(buf, ']')
		}
		buf = append(buf, ']')
	}
	return append(buf, ']')
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
