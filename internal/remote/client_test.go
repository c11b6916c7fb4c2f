package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palay-drying-backend/config"
	"palay-drying-backend/internal/model"
)

func newTestClient(url string) *Client {
	return NewClient(&config.RemoteConfig{BaseURL: url, Timeout: 2 * time.Second})
}

func TestAuthenticate(t *testing.T) {
	t.Run("success returns token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/login", r.URL.Path)
			var req struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "juan", req.Username)
			json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
		}))
		defer server.Close()

		token, err := newTestClient(server.URL).Authenticate(context.Background(), "juan", "secret")
		require.NoError(t, err)
		assert.Equal(t, Token("tok-1"), token)
	})

	t.Run("non-success status is an auth failure, not a transport error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).Authenticate(context.Background(), "juan", "wrong")
		assert.ErrorIs(t, err, ErrAuthFailed)
	})

	t.Run("malformed body is an auth failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>not json</html>"))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).Authenticate(context.Background(), "juan", "secret")
		assert.ErrorIs(t, err, ErrAuthFailed)
	})

	t.Run("unreachable server is a transport error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close() // nothing listening anymore

		_, err := newTestClient(server.URL).Authenticate(context.Background(), "juan", "secret")
		var transport *TransportError
		assert.ErrorAs(t, err, &transport)
	})
}

func TestUpload(t *testing.T) {
	rec := RecordFromModel(model.DryingRecord{
		UUID:       "rec-1",
		BatchName:  "first harvest",
		FarmerUUID: "farmer-1",
	}, "Juan dela Cruz")

	t.Run("empty batch is a no-op", func(t *testing.T) {
		c := newTestClient("http://localhost:1") // would fail if called
		assert.NoError(t, c.Upload(context.Background(), "tok", nil))
	})

	t.Run("sends bearer token and fixed schema", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/records/sync", r.URL.Path)
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

			var body map[string][]map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Len(t, body["records"], 1)
			wire := body["records"][0]
			assert.Equal(t, "rec-1", wire["uuid"])
			assert.Equal(t, "first harvest", wire["batch_name"])
			// Absent optional dates serialize as JSON null.
			assert.Contains(t, wire, "date_planted")
			assert.Nil(t, wire["date_planted"])
		}))
		defer server.Close()

		err := newTestClient(server.URL).Upload(context.Background(), "tok", []Record{rec})
		assert.NoError(t, err)
	})

	t.Run("rejection aborts the whole batch", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "validation failed", http.StatusUnprocessableEntity)
		}))
		defer server.Close()

		err := newTestClient(server.URL).Upload(context.Background(), "tok", []Record{rec})
		var rejection *RejectionError
		require.ErrorAs(t, err, &rejection)
		assert.Equal(t, http.StatusUnprocessableEntity, rejection.Status)
	})
}

func TestDownload(t *testing.T) {
	t.Run("parses the record batch", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/farmers/farmer-1/records", r.URL.Path)
			w.Write([]byte(`[{"uuid":"rec-1","farmer_uuid":"farmer-1","date_dried":"2025-03-10","final_moisture":14}]`))
		}))
		defer server.Close()

		records, err := newTestClient(server.URL).Download(context.Background(), "tok", "farmer-1")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "rec-1", records[0].UUID)
		assert.Equal(t, 14.0, records[0].FinalMoisture)
		require.NotNil(t, records[0].DateDried)
		assert.Equal(t, "2025-03-10", records[0].DateDried.Format("2006-01-02"))
	})

	t.Run("malformed payload preserves the original body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"oops": true}`))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).Download(context.Background(), "tok", "farmer-1")
		var malformed *MalformedResponseError
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, `{"oops": true}`, string(malformed.Payload))
	})
}

func TestRecordRoundTrip(t *testing.T) {
	dried := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	due := dried.AddDate(0, 0, 21)
	barangay := int64(7)

	rec := model.DryingRecord{
		UUID:            "rec-1",
		BatchName:       "first harvest",
		InitialWeight:   100,
		InitialMoisture: 20,
		FinalMoisture:   14,
		DryingTime:      "4:30",
		FinalWeight:     107.5,
		DateDried:       &dried,
		DueDate:         &due,
		FarmerUUID:      "farmer-1",
		BarangayID:      &barangay,
	}

	wire := RecordFromModel(rec, "Juan dela Cruz")
	raw, err := json.Marshal(wire)
	require.NoError(t, err)

	var decoded Record
	require.NoError(t, json.Unmarshal(raw, &decoded))

	back := decoded.ToModel()
	assert.Equal(t, rec.UUID, back.UUID)
	assert.Equal(t, rec.BatchName, back.BatchName)
	assert.Equal(t, rec.FinalWeight, back.FinalWeight)
	require.NotNil(t, back.DateDried)
	assert.True(t, back.DateDried.Equal(dried))
	require.NotNil(t, back.DueDate)
	assert.True(t, back.DueDate.Equal(due))
	assert.Nil(t, back.DatePlanted)
	require.NotNil(t, back.BarangayID)
	assert.Equal(t, barangay, *back.BarangayID)
}
