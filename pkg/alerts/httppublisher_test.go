package alerts_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/alerts"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMessage() *alerts.OutboundMessage {
	return &alerts.OutboundMessage{
		Topic:   "budget-alerts",
		Subject: "[WARNING] Cloud budget exceeded by 50.0%",
		Default: "long form",
		Payloads: map[string]string{
			alerts.ChannelEmail: "long form",
			alerts.ChannelSMS:   "short form",
		},
	}
}

func TestHTTPPublisher_Publish(t *testing.T) {
	var gotBody []byte
	var gotSignature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get("X-Signature-256")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"message_id": "gateway-42"})
	}))
	defer server.Close()

	p := alerts.NewHTTPPublisher(server.URL, "s3cret")
	id, err := p.Publish(context.Background(), sampleMessage())
	require.NoError(t, err)
	assert.Equal(t, "gateway-42", id)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &sent))
	assert.Equal(t, "budget-alerts", sent["topic"])
	assert.NotEmpty(t, sent["message_id"])

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(gotBody)
	assert.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), gotSignature)
}

func TestHTTPPublisher_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"internal"}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	p := alerts.NewHTTPPublisher(server.URL, "")
	_, err := p.Publish(context.Background(), sampleMessage())

	var transient *retry.TransientError
	assert.ErrorAs(t, err, &transient)
}

func TestHTTPPublisher_ClientErrorIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"bad request"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	p := alerts.NewHTTPPublisher(server.URL, "")
	_, err := p.Publish(context.Background(), sampleMessage())

	var permanent *retry.PermanentError
	assert.ErrorAs(t, err, &permanent)
	assert.Contains(t, err.Error(), "bad request")
}
