package alerts

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/retry"
)

// HTTPPublisher publishes outbound messages to the broadcast gateway as
// signed JSON. If secret is non-empty, requests are signed with
// HMAC-SHA256.
type HTTPPublisher struct {
	url    string
	secret string
	client *http.Client
}

// NewHTTPPublisher creates a broadcast gateway publisher.
func NewHTTPPublisher(url, secret string) *HTTPPublisher {
	return &HTTPPublisher{
		url:    url,
		secret: secret,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type publishRequest struct {
	MessageID  string            `json:"message_id"`
	Topic      string            `json:"topic"`
	Subject    string            `json:"subject"`
	Default    string            `json:"default"`
	Payloads   map[string]string `json:"payloads"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Timestamp  string            `json:"timestamp"`
}

type publishResponse struct {
	MessageID string `json:"message_id"`
	Message   string `json:"message"`
}

// Publish sends one multi-part message. The gateway may assign its own
// message identifier; otherwise the client-generated one is returned.
func (p *HTTPPublisher) Publish(ctx context.Context, msg *OutboundMessage) (string, error) {
	req := publishRequest{
		MessageID:  uuid.New().String(),
		Topic:      msg.Topic,
		Subject:    msg.Subject,
		Default:    msg.Default,
		Payloads:   msg.Payloads,
		Attributes: msg.Attributes,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal publish request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create publish request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "cloud-budget-sentinel/1.0")

	if p.secret != "" {
		sig := computeHMAC(body, []byte(p.secret))
		httpReq.Header.Set("X-Signature-256", "sha256="+sig)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", &retry.TransientError{Op: "publish broadcast", Err: err}
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr publishResponse
		message := string(payload)
		if json.Unmarshal(payload, &apiErr) == nil && apiErr.Message != "" {
			message = apiErr.Message
		}
		return "", retry.FromStatus("publish broadcast", resp.StatusCode, errors.New(message))
	}

	var ok publishResponse
	if json.Unmarshal(payload, &ok) == nil && ok.MessageID != "" {
		return ok.MessageID, nil
	}
	return req.MessageID, nil
}

func computeHMAC(message, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}
