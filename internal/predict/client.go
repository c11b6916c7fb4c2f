// Package predict wraps the model server hosting the two pre-trained
// regression models. Inference is opaque to the rest of the system: inputs
// in, a number out, or an error.
package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"palay-drying-backend/config"
)

// Client calls the model server over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a prediction client from configuration.
func NewClient(cfg *config.PredictConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Moisture predicts the batch's moisture content from the raw sensor
// reading and ambient conditions.
func (c *Client) Moisture(ctx context.Context, sensorValue, temperature, humidity float64) (float64, error) {
	req := map[string]any{
		"sensor_data": []float64{sensorValue, temperature, humidity},
	}
	var resp struct {
		PredictedMoisture *float64 `json:"predicted_moisture"`
	}
	if err := c.post(ctx, "/api/predict_moisture", req, &resp); err != nil {
		return 0, err
	}
	if resp.PredictedMoisture == nil {
		return 0, fmt.Errorf("model server returned no predicted_moisture")
	}
	return *resp.PredictedMoisture, nil
}

// DryingTime predicts the remaining drying duration in fractional hours,
// given ambient conditions and the predicted moisture content.
func (c *Client) DryingTime(ctx context.Context, temperature, humidity, predictedMoisture float64) (float64, error) {
	req := map[string]any{
		"sensor_data":        []float64{temperature, humidity},
		"predicted_moisture": predictedMoisture,
	}
	var resp struct {
		PredictedDryingTime *float64 `json:"predicted_drying_time"`
	}
	if err := c.post(ctx, "/api/predict_drying", req, &resp); err != nil {
		return 0, err
	}
	if resp.PredictedDryingTime == nil {
		return 0, fmt.Errorf("model server returned no predicted_drying_time")
	}
	return *resp.PredictedDryingTime, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("prediction request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read prediction response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model server returned status %d: %s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal prediction response: %w", err)
	}
	return nil
}
