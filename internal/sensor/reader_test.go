package sensor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palay-drying-backend/config"
)

func TestParseLine(t *testing.T) {
	t.Run("valid triple", func(t *testing.T) {
		r, err := ParseLine("512,29.5,71")
		require.NoError(t, err)
		assert.Equal(t, 512.0, r.SensorValue)
		assert.Equal(t, 29.5, r.Temperature)
		assert.Equal(t, 71.0, r.Humidity)
	})

	t.Run("whitespace around values", func(t *testing.T) {
		r, err := ParseLine(" 512 , 29.5 , 71 ")
		require.NoError(t, err)
		assert.Equal(t, 512.0, r.SensorValue)
	})

	t.Run("wrong field count", func(t *testing.T) {
		_, err := ParseLine("512,29.5")
		assert.Error(t, err)
	})

	t.Run("non-numeric value", func(t *testing.T) {
		_, err := ParseLine("512,abc,71")
		assert.Error(t, err)
	})
}

func TestHTTPReader_Read(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("512,29.5,71\n"))
	}))
	defer server.Close()

	reader := NewHTTPReader(&config.SensorConfig{URL: server.URL, Timeout: 2 * time.Second})
	got, err := reader.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Reading{SensorValue: 512, Temperature: 29.5, Humidity: 71}, got)
}

func TestHTTPReader_Read_BridgeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	reader := NewHTTPReader(&config.SensorConfig{URL: server.URL, Timeout: 2 * time.Second})
	_, err := reader.Read(context.Background())
	assert.Error(t, err)
}
