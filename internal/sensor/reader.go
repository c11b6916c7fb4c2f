// Package sensor acquires readings from the drying chamber's sensor bridge.
package sensor

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"palay-drying-backend/config"
)

// Reading is one sensor acquisition.
type Reading struct {
	SensorValue float64
	Temperature float64
	Humidity    float64
}

// Reader acquires a reading or fails. Acquisition is opaque to callers.
type Reader interface {
	Read(ctx context.Context) (Reading, error)
}

// HTTPReader reads from the device's sensor bridge, which answers with a
// single "sensor,temperature,humidity" CSV line.
type HTTPReader struct {
	url    string
	client *http.Client
}

// NewHTTPReader creates a reader from configuration.
func NewHTTPReader(cfg *config.SensorConfig) *HTTPReader {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPReader{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
	}
}

func (r *HTTPReader) Read(ctx context.Context) (Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return Reading{}, fmt.Errorf("failed to create sensor request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Reading{}, fmt.Errorf("sensor request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Reading{}, fmt.Errorf("sensor bridge returned status %d", resp.StatusCode)
	}

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil && line == "" {
		return Reading{}, fmt.Errorf("failed to read sensor response: %w", err)
	}
	return ParseLine(strings.TrimSpace(line))
}

// ParseLine parses a "sensor,temperature,humidity" CSV triple.
func ParseLine(line string) (Reading, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return Reading{}, fmt.Errorf("invalid sensor line %q: want 3 comma-separated values", line)
	}

	values := make([]float64, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Reading{}, fmt.Errorf("invalid sensor value %q: %w", p, err)
		}
		values[i] = v
	}
	return Reading{SensorValue: values[0], Temperature: values[1], Humidity: values[2]}, nil
}
