// Package detection finds speech bubbles and text boxes in a page image.
// The production backend is a hosted inference space that may be cold, so
// the client retries with exponential backoff.
package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Result is the raw detection output: absolute-pixel boxes against the
// original image, with parallel confidence arrays.
type Result struct {
	ImageSize    Size        `json:"image_size"`
	Bubbles      [][]float64 `json:"bubbles"`
	BubbleScores []float64   `json:"bubble_scores"`
	Texts        [][]float64 `json:"texts"`
	TextScores   []float64   `json:"text_scores"`
}

// Size is the detected image's pixel dimensions.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Validate checks the parallel-array contract and bbox arity.
func (r *Result) Validate() error {
	if len(r.Bubbles) != len(r.BubbleScores) {
		return fmt.Errorf("bubbles/scores length mismatch: %d vs %d", len(r.Bubbles), len(r.BubbleScores))
	}
	if len(r.Texts) != len(r.TextScores) {
		return fmt.Errorf("texts/scores length mismatch: %d vs %d", len(r.Texts), len(r.TextScores))
	}
	for i, b := range r.Bubbles {
		if len(b) != 4 {
			return fmt.Errorf("bubble %d has %d coordinates", i, len(b))
		}
	}
	for i, tb := range r.Texts {
		if len(tb) != 4 {
			return fmt.Errorf("text %d has %d coordinates", i, len(tb))
		}
	}
	return nil
}

// Detector is the swappable detection capability.
type Detector interface {
	Detect(ctx context.Context, imagePath string) (*Result, error)
}

// schemaError marks a response that parsed but violated the contract.
// Schema mismatches are never retried: the backend is answering, just not
// in the shape we expect.
type schemaError struct{ err error }

func (e *schemaError) Error() string { return e.err.Error() }
func (e *schemaError) Unwrap() error { return e.err }

// SpaceClient calls a hosted detection endpoint over HTTP.
type SpaceClient struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	sleep      func(time.Duration)
}

// NewSpaceClient builds a client for the given space URL.
func NewSpaceClient(baseURL string, timeout time.Duration) *SpaceClient {
	return &SpaceClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: 3,
		sleep:      time.Sleep,
	}
}

// WithSleeper replaces the backoff sleeper (tests).
func (c *SpaceClient) WithSleeper(sleep func(time.Duration)) *SpaceClient {
	c.sleep = sleep
	return c
}

// Detect uploads the image and returns validated detection output.
// Transport failures are retried up to maxRetries times with 1s/2s/4s
// backoff; a schema mismatch fails immediately.
func (c *SpaceClient) Detect(ctx context.Context, imagePath string) (*Result, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.sleep(time.Duration(1<<(attempt-1)) * time.Second)
		}

		res, err := c.callOnce(ctx, imagePath)
		if err == nil {
			return res, nil
		}
		if se, ok := err.(*schemaError); ok {
			return nil, fmt.Errorf("detection schema mismatch: %w", se.err)
		}
		lastErr = err
	}

	return nil, fmt.Errorf("detection API failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *SpaceClient) callOnce(ctx context.Context, imagePath string) (*Result, error) {
	file, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return nil, fmt.Errorf("multipart: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("multipart copy: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("multipart close: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/detect", &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detection request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detection API status %d", resp.StatusCode)
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("detection response decode: %w", err)
	}
	if err := res.Validate(); err != nil {
		return nil, &schemaError{err: err}
	}
	return &res, nil
}
