package deepface

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config points at a DeepFace API (https://github.com/serengil/deepface).
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Model    string
	Detector string
	// AntiSpoofing asks DeepFace to reject printed photos and screens.
	AntiSpoofing bool
	// Retries after the first attempt, only for 429/5xx and transport errors.
	Retries int
}

func DefaultConfig() Config {
	return Config{
		BaseURL:  "http://localhost:5005",
		Timeout:  30 * time.Second,
		Model:    "Facenet512",
		Detector: "retinaface",
		Retries:  2,
	}
}

type Client struct {
	http    *http.Client
	cfg     Config
	backoff func(retry int) time.Duration
}

func NewClient(cfg Config) *Client {
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		backoff: exponentialBackoff,
	}
}

// dataURI is the image form DeepFace accepts inline.
func dataURI(raw []byte, contentType string) string {
	if contentType == "" {
		contentType = http.DetectContentType(raw)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(raw)
}

// Represent posts one capture to /represent. DeepFace answers with one
// result per detected face.
func (c *Client) Represent(ctx context.Context, raw []byte, contentType string) ([]RepresentResult, error) {
	body, err := json.Marshal(RepresentRequest{
		Img:              dataURI(raw, contentType),
		Model:            c.cfg.Model,
		Detector:         c.cfg.Detector,
		EnforceDetection: true,
		AntiSpoofing:     c.cfg.AntiSpoofing,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var out RepresentResponse
	if err := c.post(ctx, "/represent", body, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

const maxBackoff = 8 * time.Second

// exponentialBackoff waits 1s before the first retry, doubling up to maxBackoff.
func exponentialBackoff(retry int) time.Duration {
	if retry <= 1 {
		return time.Second
	}
	if retry > 4 {
		return maxBackoff
	}
	return min(time.Second<<(retry-1), maxBackoff)
}

func retryable(err error) bool {
	if errors.Is(err, ErrInvalidResponse) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

func (c *Client) post(ctx context.Context, path string, body []byte, out any) error {
	err := c.once(ctx, path, body, out)
	for retry := 1; err != nil && retry <= c.cfg.Retries; retry++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !retryable(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff(retry)):
		}
		err = c.once(ctx, path, body, out)
	}

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case retryable(err):
		return fmt.Errorf("%w: %v", ErrDeepFaceUnavailable, err)
	default:
		return err
	}
}

func (c *Client) once(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(payload)}
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}
