// Package push manages the lifecycle of mobile push endpoints against an
// external push platform: registration, token rotation, feedback-driven
// sweeps, and platform/certificate health estimation.
package push

import (
	"context"
	"time"
)

// EndpointAttributes is the platform's view of one endpoint.
type EndpointAttributes struct {
	Enabled bool
	Token   string
}

// PlatformAttributes describes the platform application itself.
type PlatformAttributes struct {
	Enabled      bool
	CreationTime time.Time
	PlatformType string
}

// Endpoint is one entry returned when listing platform endpoints.
type Endpoint struct {
	ID         string
	Attributes EndpointAttributes
}

// Platform is the external push service. It owns certificate and token
// semantics; this package only orchestrates calls against it.
type Platform interface {
	// CreateEndpoint registers a device token and returns the opaque
	// endpoint identifier.
	CreateEndpoint(ctx context.Context, token, userData string) (string, error)

	// UpdateEndpointToken replaces the token on an existing endpoint.
	UpdateEndpointToken(ctx context.Context, endpointID, token string) error

	// DeleteEndpoint removes an endpoint.
	DeleteEndpoint(ctx context.Context, endpointID string) error

	// EndpointAttributes fetches the current attributes of an endpoint.
	EndpointAttributes(ctx context.Context, endpointID string) (*EndpointAttributes, error)

	// PlatformAttributes fetches the platform application attributes.
	PlatformAttributes(ctx context.Context) (*PlatformAttributes, error)

	// ListEndpoints pages through the platform's endpoints. The returned
	// page token is empty on the last page.
	ListEndpoints(ctx context.Context, pageToken string) ([]Endpoint, string, error)
}
