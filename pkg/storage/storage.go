package storage

import (
	"context"
	"errors"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/model"
)

// ErrNotFound is returned when a registration or ledger row does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence layer for push endpoint registrations and
// the enrichment spend ledger.
type Store interface {
	// SaveRegistration inserts a new active registration. The store
	// enforces at most one active registration per device token.
	SaveRegistration(ctx context.Context, reg *model.PushEndpointRegistration) error

	// RegistrationByToken returns the active registration for a device token.
	RegistrationByToken(ctx context.Context, deviceToken string) (*model.PushEndpointRegistration, error)

	// RegistrationByEndpoint returns the registration for a platform endpoint.
	RegistrationByEndpoint(ctx context.Context, endpointID string) (*model.PushEndpointRegistration, error)

	// UpdateRegistrationToken replaces the device token on an existing
	// registration, keeping the same endpoint identifier.
	UpdateRegistrationToken(ctx context.Context, endpointID, newToken string) error

	// TouchRegistration refreshes metadata on an existing active
	// registration without changing its endpoint identifier.
	TouchRegistration(ctx context.Context, endpointID, userID string) error

	// DeactivateRegistration marks a registration inactive.
	DeactivateRegistration(ctx context.Context, endpointID string) error

	// ListActiveRegistrations pages through active registrations. The
	// returned page token is empty when there are no further pages.
	ListActiveRegistrations(ctx context.Context, limit int, pageToken string) ([]model.PushEndpointRegistration, string, error)

	// LedgerSnapshot returns the stored spend for a billing period.
	LedgerSnapshot(ctx context.Context, period string) (*model.LedgerSnapshot, error)

	// SaveLedgerSnapshot upserts the spend for a billing period.
	SaveLedgerSnapshot(ctx context.Context, snap *model.LedgerSnapshot) error

	// Close releases resources.
	Close() error
}
