package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/model"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/retry"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/storage"
)

const (
	// nominalCertLifetime is the assumed validity window of a push
	// certificate. The platform does not expose the real expiry date, so
	// health estimation counts forward from the platform application's
	// creation time.
	nominalCertLifetime = 365 * 24 * time.Hour

	certWarningDays = 30
	certErrorDays   = 7

	// healthProbeToken is the fixed dummy token round-tripped through
	// create-then-delete by the platform liveness probe.
	healthProbeToken = "0000000000000000000000000000000000000000000000000000000000000000"

	defaultSweepConcurrency = 4
	sweepPageSize           = 100
)

// Lifecycle registers, rotates, and prunes push endpoints, keeping the
// durable registration store consistent with the external platform.
type Lifecycle struct {
	platform Platform
	store    storage.Store
	retryCfg retry.Config
	logger   *slog.Logger

	// sweepConcurrency bounds how many endpoints within one page are
	// inspected in parallel during a sweep.
	sweepConcurrency int
}

// NewLifecycle creates a lifecycle manager.
func NewLifecycle(platform Platform, store storage.Store, retryCfg retry.Config, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{
		platform:         platform,
		store:            store,
		retryCfg:         retryCfg,
		logger:           logger,
		sweepConcurrency: defaultSweepConcurrency,
	}
}

// RegisterDevice validates the token, creates a platform endpoint, and
// persists the registration. Registering an already-registered token is
// idempotent: the existing endpoint is kept, its metadata refreshed, and
// no duplicate endpoint is created. Store and platform errors propagate;
// a failed registration must be visible to the registrant.
func (l *Lifecycle) RegisterDevice(ctx context.Context, token, userID string) (*model.PushEndpointRegistration, error) {
	if err := ValidateDeviceToken(token); err != nil {
		return nil, err
	}

	existing, err := l.store.RegistrationByToken(ctx, token)
	if err == nil {
		if err := l.store.TouchRegistration(ctx, existing.EndpointID, userID); err != nil {
			return nil, fmt.Errorf("refresh registration: %w", err)
		}
		l.logger.Debug("device already registered", "endpoint_id", existing.EndpointID)
		if userID != "" {
			existing.UserID = userID
		}
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("look up registration: %w", err)
	}

	endpointID, _, err := retry.Do(ctx, l.retryCfg, retry.Retryable, func(ctx context.Context) (string, error) {
		return l.platform.CreateEndpoint(ctx, token, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("create platform endpoint: %w", err)
	}

	reg := &model.PushEndpointRegistration{
		DeviceToken: token,
		EndpointID:  endpointID,
		UserID:      userID,
	}
	if err := l.store.SaveRegistration(ctx, reg); err != nil {
		return nil, fmt.Errorf("persist registration: %w", err)
	}

	l.logger.Info("device registered", "endpoint_id", endpointID, "user_id", userID)
	return reg, nil
}

// UpdateDeviceToken rotates the token on an existing endpoint in place.
// The endpoint identifier is unchanged and no new registration row is
// created.
func (l *Lifecycle) UpdateDeviceToken(ctx context.Context, endpointID, newToken string) error {
	if err := ValidateDeviceToken(newToken); err != nil {
		return err
	}

	_, _, err := retry.Do(ctx, l.retryCfg, retry.Retryable, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, l.platform.UpdateEndpointToken(ctx, endpointID, newToken)
	})
	if err != nil {
		return fmt.Errorf("update platform endpoint token: %w", err)
	}

	if err := l.store.UpdateRegistrationToken(ctx, endpointID, newToken); err != nil {
		return fmt.Errorf("persist rotated token: %w", err)
	}

	l.logger.Info("device token rotated", "endpoint_id", endpointID)
	return nil
}

// DeregisterDevice deletes the platform endpoint and deactivates its
// registration.
func (l *Lifecycle) DeregisterDevice(ctx context.Context, endpointID string) error {
	_, _, err := retry.Do(ctx, l.retryCfg, retry.Retryable, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, l.platform.DeleteEndpoint(ctx, endpointID)
	})
	if err != nil {
		return fmt.Errorf("delete platform endpoint: %w", err)
	}
	if err := l.store.DeactivateRegistration(ctx, endpointID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("deactivate registration: %w", err)
	}
	l.logger.Info("device deregistered", "endpoint_id", endpointID)
	return nil
}

// SweepInvalidTokens inspects the given endpoints and removes the invalid
// ones. An endpoint is condemned when the platform reports it disabled,
// tokenless, or holding a malformed token, or when the attribute fetch
// itself fails (unreachable endpoints are treated as gone). Cleanup is
// best-effort: a failed delete or deactivate is logged and the sweep moves
// on. Returns the identifiers that were condemned.
//
// Endpoints within the batch are inspected concurrently; no ordering is
// guaranteed between them.
func (l *Lifecycle) SweepInvalidTokens(ctx context.Context, endpointIDs []string) []string {
	type verdict struct {
		id        string
		condemned bool
		reason    string
	}

	verdicts := make([]verdict, len(endpointIDs))
	sem := make(chan struct{}, l.sweepConcurrency)
	var wg sync.WaitGroup

	for i, id := range endpointIDs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, id string) {
			defer wg.Done()
			defer func() { <-sem }()
			condemned, reason := l.inspectEndpoint(ctx, id)
			verdicts[i] = verdict{id: id, condemned: condemned, reason: reason}
		}(i, id)
	}
	wg.Wait()

	var removed []string
	for _, v := range verdicts {
		if !v.condemned {
			continue
		}
		l.logger.Info("sweeping invalid endpoint", "endpoint_id", v.id, "reason", v.reason)

		if err := l.platform.DeleteEndpoint(ctx, v.id); err != nil {
			l.logger.Warn("sweep delete failed", "endpoint_id", v.id, "error", err)
		}
		if err := l.store.DeactivateRegistration(ctx, v.id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			l.logger.Warn("sweep deactivate failed", "endpoint_id", v.id, "error", err)
		}
		removed = append(removed, v.id)
	}
	return removed
}

// inspectEndpoint decides whether one endpoint should be condemned.
func (l *Lifecycle) inspectEndpoint(ctx context.Context, endpointID string) (bool, string) {
	attrs, err := l.platform.EndpointAttributes(ctx, endpointID)
	if err != nil {
		return true, fmt.Sprintf("attribute fetch failed: %v", err)
	}
	switch {
	case !attrs.Enabled:
		return true, "endpoint disabled"
	case attrs.Token == "":
		return true, "no token"
	case ValidateDeviceToken(attrs.Token) != nil:
		return true, "malformed token"
	}
	return false, ""
}

// SweepAll pages through every active registration and sweeps each page.
// Page failures are logged and end the sweep early; already-swept pages
// stand.
func (l *Lifecycle) SweepAll(ctx context.Context) []string {
	var removed []string
	pageToken := ""
	for {
		regs, next, err := l.store.ListActiveRegistrations(ctx, sweepPageSize, pageToken)
		if err != nil {
			l.logger.Error("sweep page listing failed", "error", err)
			return removed
		}
		if len(regs) == 0 {
			return removed
		}

		ids := make([]string, len(regs))
		for i, r := range regs {
			ids[i] = r.EndpointID
		}
		removed = append(removed, l.SweepInvalidTokens(ctx, ids)...)

		if next == "" {
			return removed
		}
		pageToken = next
	}
}

// ValidatePlatformHealth round-trips a synthetic registration through
// create-then-delete. Success means the platform is reachable and accepts
// the configured credential. This is a liveness probe, not a correctness
// probe.
func (l *Lifecycle) ValidatePlatformHealth(ctx context.Context) error {
	endpointID, err := l.platform.CreateEndpoint(ctx, healthProbeToken, "health-probe")
	if err != nil {
		return fmt.Errorf("platform unhealthy: %w", err)
	}
	if err := l.platform.DeleteEndpoint(ctx, endpointID); err != nil {
		return fmt.Errorf("platform unhealthy (probe cleanup): %w", err)
	}
	return nil
}

// EstimateCertificateHealth reports certificate validity and a heuristic
// days-until-expiration. The push ecosystem does not expose the real
// expiry, so the estimate counts a nominal lifetime forward from the
// platform application's creation time; treat it as a warning signal, not
// an authoritative read.
func (l *Lifecycle) EstimateCertificateHealth(ctx context.Context) *model.CertificateHealth {
	health := &model.CertificateHealth{CheckedAt: time.Now().UTC()}

	attrs, err := l.platform.PlatformAttributes(ctx)
	if err != nil {
		health.Level = model.HealthError
		health.Message = fmt.Sprintf("platform attributes unavailable: %v", err)
		return health
	}
	if !attrs.Enabled {
		health.Level = model.HealthError
		health.Message = "platform application disabled"
		return health
	}

	expiry := attrs.CreationTime.Add(nominalCertLifetime)
	health.DaysRemaining = int(time.Until(expiry).Hours() / 24)
	health.Valid = health.DaysRemaining > 0

	// A certificate-shaped probe failure overrides the date heuristic.
	if err := l.ValidatePlatformHealth(ctx); err != nil && ClassifyFailure(err) == FailureCertificate {
		health.Valid = false
		health.Level = model.HealthError
		health.Message = fmt.Sprintf("certificate error from probe: %v", err)
		return health
	}

	switch {
	case health.DaysRemaining < certErrorDays:
		health.Level = model.HealthError
		health.Message = fmt.Sprintf("estimated %d days until certificate expiry", health.DaysRemaining)
	case health.DaysRemaining < certWarningDays:
		health.Level = model.HealthWarning
		health.Message = fmt.Sprintf("estimated %d days until certificate expiry", health.DaysRemaining)
	default:
		health.Level = model.HealthOK
	}
	return health
}
