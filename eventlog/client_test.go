package eventlog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	rawJSON := `{"id":"d4kdisifn76c73dkrju0","device":"kitchen","text":"Pill detected during dispensing.","time":"2025-11-27T16:06:26.504207-07:00","idempotency_key":"0b7e4a52-7d8b-4f55-9b8e-8f1d2c3a4b5c"}`

	var e Event
	err := json.Unmarshal([]byte(rawJSON), &e)
	require.NoError(t, err)

	assert.Equal(t, "d4kdisifn76c73dkrju0", e.GetID())
	assert.Equal(t, "kitchen", e.Device)
	assert.Equal(t, "Pill detected during dispensing.", e.Text)
}

func TestAddEvent(t *testing.T) {
	var received []Event
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/events" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		var e Event
		err := json.NewDecoder(r.Body).Decode(&e)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		received = append(received, e)

		e.ID = "d4kdisifn76c73dkrju0"
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(e)
	}))
	defer server.Close()

	at := time.Date(2025, time.November, 27, 16, 6, 26, 0, time.UTC)
	client := NewClient(server.URL, "kitchen")

	created, err := client.Post(context.Background(), "Calibration completed.", at)
	require.NoError(t, err)
	assert.Equal(t, "d4kdisifn76c73dkrju0", created.GetID())

	require.NoError(t, client.AddEvent(context.Background(), "Calibration completed.", at))

	require.Len(t, received, 2)
	for _, e := range received {
		assert.Equal(t, "kitchen", e.Device)
		assert.Equal(t, "Calibration completed.", e.Text)
		assert.True(t, at.Equal(e.Time))
		_, err := uuid.Parse(e.IdempotencyKey)
		assert.NoError(t, err)
	}
	assert.NotEqual(t, received[0].IdempotencyKey, received[1].IdempotencyKey)
}

func TestAddEventError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":"Internal Server Error"}`))
	}))
	defer server.Close()

	err := NewClient(server.URL, "").AddEvent(context.Background(), "Max portions reached.", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error posting event")
}
