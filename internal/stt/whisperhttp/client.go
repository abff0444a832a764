// Package whisperhttp transcribes segments against a Whisper-compatible
// HTTP endpoint using multipart WAV uploads.
package whisperhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/voxscribe/voxscribe/internal/stt"
)

// Config tunes the transcription HTTP client.
type Config struct {
	Endpoint      string
	Language      string
	Model         string
	Timeout       time.Duration
	MaxRetries    int
	MaxConcurrent int
}

// Client is an stt.Engine backed by a Whisper HTTP server.
type Client struct {
	config     Config
	httpClient *http.Client
	semaphore  chan struct{}
}

var _ stt.Engine = (*Client)(nil)

// New builds a client with sane fallbacks for unset tuning knobs.
func New(config Config) (*Client, error) {
	if strings.TrimSpace(config.Endpoint) == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 2
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		semaphore: make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// Transcribe uploads the segment as WAV and retries transient failures with
// exponential backoff.
func (c *Client) Transcribe(ctx context.Context, segment stt.Segment) (stt.Result, error) {
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return stt.Result{}, ctx.Err()
	}

	wavData, err := stt.EncodeWAV(segment.PCM, segment.SampleRate, segment.Channels)
	if err != nil {
		return stt.Result{}, fmt.Errorf("encode segment %s: %w", segment.ID, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if backoff > 10*time.Second {
				backoff = 10 * time.Second
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return stt.Result{}, ctx.Err()
			}
		}

		text, err := c.doRequest(ctx, segment, wavData)
		if err == nil {
			return stt.Result{SegmentID: segment.ID, Text: text}, nil
		}
		lastErr = err

		if !retryable(err) {
			break
		}
	}

	return stt.Result{}, fmt.Errorf("transcribe segment %s after %d attempts: %w", segment.ID, c.config.MaxRetries+1, lastErr)
}

// Close releases idle transport connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// doRequest performs one multipart upload and parses the JSON response.
func (c *Client) doRequest(ctx context.Context, segment stt.Segment, wavData []byte) (string, error) {
	body, contentType, err := c.buildMultipart(segment, wavData)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	return strings.TrimSpace(parsed.Text), nil
}

// buildMultipart assembles the form payload sent to the endpoint.
func (c *Client) buildMultipart(segment stt.Segment, wavData []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", segment.ID.String()+".wav")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(wavData); err != nil {
		return nil, "", fmt.Errorf("write audio data: %w", err)
	}

	fields := map[string]string{
		"segment_id":      segment.ID.String(),
		"sample_rate":     fmt.Sprintf("%d", segment.SampleRate),
		"duration":        fmt.Sprintf("%.3f", segment.Duration()),
		"response_format": "json",
	}
	if c.config.Language != "" {
		fields["language"] = c.config.Language
	}
	if c.config.Model != "" {
		fields["model"] = c.config.Model
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

// retryable reports whether a failed attempt is worth repeating.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if err == context.DeadlineExceeded {
		return true
	}
	msg := err.Error()
	if strings.Contains(msg, "HTTP error 5") || strings.Contains(msg, "HTTP error 429") {
		return true
	}
	return strings.Contains(msg, "connection") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "refused")
}
