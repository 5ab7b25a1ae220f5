package deepface

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F', 0}

func newTestClient(url string, retries int) *Client {
	cfg := DefaultConfig()
	cfg.BaseURL = url
	cfg.Retries = retries
	c := NewClient(cfg)
	c.backoff = func(int) time.Duration { return time.Millisecond }
	return c
}

// countingServer answers with the given statuses in order, then repeats the last.
func countingServer(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		status := statuses[min(n, len(statuses))-1]
		w.WriteHeader(status)
		if status == http.StatusOK {
			_ = json.NewEncoder(w).Encode(RepresentResponse{Results: []RepresentResult{{Embedding: []float64{1}}}})
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestClient_RepresentRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/represent", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req RepresentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, strings.HasPrefix(req.Img, "data:image/jpeg;base64,"))
		assert.Equal(t, "Facenet512", req.Model)
		assert.Equal(t, "retinaface", req.Detector)
		assert.True(t, req.EnforceDetection)
		assert.False(t, req.AntiSpoofing)

		_ = json.NewEncoder(w).Encode(RepresentResponse{Results: []RepresentResult{
			{Embedding: make([]float64, 512), FacialArea: FacialArea{X: 10, Y: 20, W: 100, H: 100}},
		}})
	}))
	defer server.Close()

	results, err := newTestClient(server.URL, 0).Represent(context.Background(), jpegBytes, "")

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Embedding, 512)
	assert.Equal(t, 10000, results[0].FacialArea.Area())
}

func TestClient_Represent_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantIs    error
		wantInMsg string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"oom"}`, wantIs: ErrDeepFaceUnavailable},
		{name: "face not detected", status: http.StatusBadRequest, body: `{"error":"Face could not be detected"}`, wantInMsg: "status 400"},
		{name: "not json", status: http.StatusOK, body: "<html>", wantIs: ErrInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL, 0).Represent(context.Background(), jpegBytes, "image/jpeg")

			require.Error(t, err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			if tt.wantInMsg != "" {
				assert.Contains(t, err.Error(), tt.wantInMsg)
			}
		})
	}
}

func TestClient_Retries(t *testing.T) {
	tests := []struct {
		name      string
		retries   int
		statuses  []int
		wantCalls int32
		wantErr   error
	}{
		{name: "recovers after transient failures", retries: 3, statuses: []int{503, 429, 200}, wantCalls: 3},
		{name: "gives up after retries", retries: 2, statuses: []int{502}, wantCalls: 3, wantErr: ErrDeepFaceUnavailable},
		{name: "client errors are final", retries: 3, statuses: []int{400}, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := countingServer(t, tt.statuses...)

			_, err := newTestClient(srv.URL, tt.retries).Represent(context.Background(), jpegBytes, "image/jpeg")

			assert.Equal(t, tt.wantCalls, calls.Load())
			last := tt.statuses[len(tt.statuses)-1]
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case last == http.StatusOK:
				assert.NoError(t, err)
			default:
				var se *StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, last, se.StatusCode)
			}
		})
	}
}

func TestClient_ContextCancellation(t *testing.T) {
	srv, _ := countingServer(t, http.StatusOK)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(srv.URL, 2).Represent(ctx, jpegBytes, "image/jpeg")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExponentialBackoff(t *testing.T) {
	assert.Equal(t, time.Second, exponentialBackoff(0))
	assert.Equal(t, time.Second, exponentialBackoff(1))
	assert.Equal(t, 2*time.Second, exponentialBackoff(2))
	assert.Equal(t, 4*time.Second, exponentialBackoff(3))
	assert.Equal(t, maxBackoff, exponentialBackoff(4))
	assert.Equal(t, maxBackoff, exponentialBackoff(80))
}
