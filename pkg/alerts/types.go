// Package alerts formats budget alerts and fans them out across the
// configured notification channels through a single broadcast publish,
// with degraded-mode redelivery when the push channel is implicated in a
// failure.
package alerts

import "context"

// Channel names. The fan-out is fixed to these kinds; this is not a
// general pub/sub surface.
const (
	ChannelDefault = "default"
	ChannelEmail   = "email"
	ChannelSMS     = "sms"
	ChannelPush    = "push"
)

// OutboundMessage is one multi-part broadcast publish: a default text plus
// per-channel payload overrides, keyed by channel name.
type OutboundMessage struct {
	Topic      string            `json:"topic"`
	Subject    string            `json:"subject"`
	Default    string            `json:"default"`
	Payloads   map[string]string `json:"payloads"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Publisher delivers one outbound message to the broadcast channel and
// returns the message identifier assigned by it.
type Publisher interface {
	Publish(ctx context.Context, msg *OutboundMessage) (string, error)
}

// PushChannelConfig is the closed set of push configurations: either no
// push channel, or a concrete platform application. Every code path that
// branches on "is push configured" switches on this type rather than
// probing optional fields.
type PushChannelConfig interface {
	isPushChannel()
}

// NoPushChannel disables the push channel.
type NoPushChannel struct{}

func (NoPushChannel) isPushChannel() {}

// PushChannel enables push delivery through a platform application.
type PushChannel struct {
	PlatformAppID string
	BundleID      string
	Sandbox       bool
}

func (PushChannel) isPushChannel() {}
