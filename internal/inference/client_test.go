package inference

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/geochip/internal/logger"
	"github.com/ironsheep/geochip/internal/raster"
)

type predictRequest struct {
	SignatureName string        `json:"signature_name"`
	Instances     [][][][]int64 `json:"instances"`
}

func newTestClient(url string) *Client {
	return NewClient(ClientConfig{URL: url, Timeout: 2 * time.Second}, logger.NewNopLogger())
}

func TestEncodeInstances(t *testing.T) {
	a := raster.New(1, 2, 3)
	copy(a.Pix, []uint8{0, 1, 2, 253, 254, 255})
	b := raster.Filled(1, 2, 3, 7)

	body, err := encodeInstances("serving_default", []raster.Raster{a, b})
	require.NoError(t, err)

	assert.Equal(t,
		`{"signature_name":"serving_default","instances":[[[[0,1,2],[253,254,255]]],[[[7,7,7],[7,7,7]]]]}`,
		string(body))

	var req predictRequest
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Len(t, req.Instances, 2)
}

func TestEncodeInstances_InvalidChip(t *testing.T) {
	_, err := encodeInstances("s", []raster.Raster{{Height: 1, Width: 1, Channels: 3}})
	assert.ErrorIs(t, err, raster.ErrShape)
}

func TestClient_Predict(t *testing.T) {
	var got predictRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/models/m:predict", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))

		_, _ = w.Write([]byte(`{"predictions":[
			{"detection_scores":[0.9,0.2],"detection_classes":[1.0,3.0],
			 "detection_boxes":[[0.1,0.2,0.3,0.4],[0.5,0.5,0.6,0.6]],"num_detections":2},
			{"detection_scores":[],"detection_classes":[],"detection_boxes":[]}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL + "/v1/models/m:predict")
	preds, err := c.Predict(context.Background(), []raster.Raster{
		raster.Filled(2, 2, 3, 1), raster.Filled(2, 2, 3, 2),
	})
	require.NoError(t, err)

	assert.Equal(t, "serving_default", got.SignatureName)
	require.Len(t, got.Instances, 2)
	assert.Equal(t, int64(2), got.Instances[1][1][1][2])

	require.Len(t, preds, 2)
	assert.Equal(t, []float64{0.9, 0.2}, preds[0].Scores)
	assert.Equal(t, []float64{1, 3}, preds[0].Classes)
	assert.Equal(t, [4]float64{0.1, 0.2, 0.3, 0.4}, preds[0].Boxes[0])
	assert.Zero(t, preds[1].Len())
}

func TestClient_PredictErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		malformed bool
		contains  string
	}{
		{"error field", http.StatusOK, `{"error":"input size mismatch"}`, false, "input size mismatch"},
		{"error status with message", http.StatusBadRequest, `{"error":"bad instances"}`, false, "status 400: bad instances"},
		{"error status plain", http.StatusServiceUnavailable, `down`, false, "status 503: down"},
		{"not json", http.StatusOK, `<html>`, true, ""},
		{"missing predictions", http.StatusOK, `{}`, true, "no predictions"},
		{"too few predictions", http.StatusOK, `{"predictions":[]}`, true, "0 predictions for 1 chips"},
		{"ragged arrays", http.StatusOK,
			`{"predictions":[{"detection_scores":[0.5],"detection_classes":[],"detection_boxes":[[0,0,1,1]]}]}`, true, ""},
		{"short box", http.StatusOK,
			`{"predictions":[{"detection_scores":[0.5],"detection_classes":[1],"detection_boxes":[[0,0,1]]}]}`, true, "3 coordinates"},
		{"class too large", http.StatusOK,
			`{"predictions":[{"detection_scores":[0.5],"detection_classes":[70000],"detection_boxes":[[0,0,1,1]]}]}`, true, "not a uint16"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Predict(context.Background(), []raster.Raster{raster.New(1, 1, 3)})
			require.Error(t, err)
			if tt.malformed {
				assert.ErrorIs(t, err, ErrMalformedResponse)
			} else {
				assert.NotErrorIs(t, err, ErrMalformedResponse)
			}
			if tt.contains != "" {
				assert.ErrorContains(t, err, tt.contains)
			}
		})
	}
}

func TestClient_PredictTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(ClientConfig{URL: srv.URL, Timeout: 50 * time.Millisecond}, logger.NewNopLogger())
	_, err := c.Predict(context.Background(), []raster.Raster{raster.New(1, 1, 3)})
	assert.ErrorContains(t, err, "failed to send request")
}

func TestClient_PredictNoChips(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:1").Predict(context.Background(), nil)
	assert.Error(t, err)
}

func TestClient_HealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/v1/models/m" {
			_, _ = w.Write([]byte(`{"model_version_status":[{"state":"AVAILABLE"}]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	assert.NoError(t, newTestClient(srv.URL+"/v1/models/m:predict").HealthCheck(context.Background()))
	assert.ErrorContains(t, newTestClient(srv.URL+"/v1/models/other:predict").HealthCheck(context.Background()), "status 404")
}

func TestPrediction_Validate(t *testing.T) {
	ok := Prediction{Scores: []float64{0.5}, Classes: []float64{65535}, Boxes: [][4]float64{{}}}
	assert.NoError(t, ok.Validate())

	for _, p := range []Prediction{
		{Scores: []float64{0.5}, Classes: []float64{1}},
		{Scores: []float64{0.5}, Classes: []float64{-1}, Boxes: [][4]float64{{}}},
		{Scores: []float64{0.5}, Classes: []float64{1.5}, Boxes: [][4]float64{{}}},
	} {
		assert.ErrorIs(t, p.Validate(), ErrMalformedResponse)
	}
}
