package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/metrics"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/model"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/push"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/retry"
)

// maxErrorAttribute bounds the original-error copy attached to a degraded
// republish.
const maxErrorAttribute = 256

// Deliverer fans one formatted alert out to all configured channels via a
// single broadcast publish. A push-implicated publish failure triggers one
// degraded republish without the push payload; any other failure, or a
// failed republish, propagates — a silently dropped budget alert is the
// worst failure mode this system has.
type Deliverer struct {
	publisher Publisher
	topic     string
	retryCfg  retry.Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewDeliverer creates an alert deliverer. metrics may be nil.
func NewDeliverer(publisher Publisher, topic string, retryCfg retry.Config, logger *slog.Logger, m *metrics.Metrics) *Deliverer {
	return &Deliverer{
		publisher: publisher,
		topic:     topic,
		retryCfg:  retryCfg,
		logger:    logger,
		metrics:   m,
	}
}

// Deliver formats the alert once and publishes it. insight may be nil.
// The returned outcome is populated (channels, timing, retry count,
// payload size) regardless of success or failure. Exactly one publish
// happens on the happy path; at most two when the push channel is
// implicated in the first failure.
func (d *Deliverer) Deliver(ctx context.Context, eval *model.CostEvaluation, actx *model.AlertContext, insight *model.Insight, pushCfg PushChannelConfig) (*model.DeliveryOutcome, error) {
	start := time.Now()

	longForm := FormatLongForm(eval, actx, insight)
	shortForm := FormatShortForm(eval, actx)

	msg := &OutboundMessage{
		Topic:   d.topic,
		Subject: Subject(actx),
		Default: longForm,
		Payloads: map[string]string{
			ChannelEmail: longForm,
			ChannelSMS:   shortForm,
		},
		Attributes: map[string]string{
			"severity": string(actx.Severity),
		},
	}

	outcome := &model.DeliveryOutcome{
		ChannelsAttempted: []string{ChannelDefault, ChannelEmail, ChannelSMS},
	}

	pc, pushConfigured := pushCfg.(PushChannel)
	if pushConfigured {
		msg.Payloads[ChannelPush] = FormatPushPayload(eval, actx, pc)
		outcome.ChannelsAttempted = append(outcome.ChannelsAttempted, ChannelPush)
	}
	outcome.PayloadBytes = payloadSize(msg)

	messageID, retries, err := d.publish(ctx, msg)
	outcome.RetryCount = retries
	if err == nil {
		outcome.ChannelsSucceeded = outcome.ChannelsAttempted
		outcome.DeliveryTime = time.Since(start)
		d.metrics.ObserveDelivery("success", outcome.RetryCount, false, outcome.DeliveryTime.Seconds())
		d.logger.Info("alert delivered", "message_id", messageID, "channels", outcome.ChannelsAttempted)
		return outcome, nil
	}

	outcome.Errors = append(outcome.Errors, err.Error())
	kind := push.ClassifyFailure(err)
	if !pushConfigured || kind == push.FailureNone {
		outcome.DeliveryTime = time.Since(start)
		d.metrics.ObserveDelivery("failure", outcome.RetryCount, false, outcome.DeliveryTime.Seconds())
		return outcome, fmt.Errorf("publish alert: %w", err)
	}

	// Push channel implicated: republish once without the push payload.
	d.logger.Warn("push channel implicated in delivery failure, retrying degraded",
		"failure_kind", kind, "error", err)

	degraded := &OutboundMessage{
		Topic:   msg.Topic,
		Subject: msg.Subject,
		Default: msg.Default,
		Payloads: map[string]string{
			ChannelEmail: longForm,
			ChannelSMS:   shortForm,
		},
		Attributes: map[string]string{
			"severity":        string(actx.Severity),
			"fallback_reason": string(kind),
			"original_error":  truncate(err.Error(), maxErrorAttribute),
		},
	}

	messageID, retries, degradedErr := d.publish(ctx, degraded)
	outcome.RetryCount += retries
	outcome.DeliveryTime = time.Since(start)

	if degradedErr != nil {
		outcome.Errors = append(outcome.Errors, degradedErr.Error())
		d.metrics.ObserveDelivery("failure", outcome.RetryCount, false, outcome.DeliveryTime.Seconds())
		return outcome, fmt.Errorf("degraded republish failed after push-implicated error (%s): %w", kind, degradedErr)
	}

	outcome.FallbackUsed = true
	outcome.ChannelsSucceeded = []string{ChannelDefault, ChannelEmail, ChannelSMS}
	d.metrics.ObserveDelivery("fallback", outcome.RetryCount, true, outcome.DeliveryTime.Seconds())
	d.logger.Info("alert delivered without push channel", "message_id", messageID, "failure_kind", kind)
	return outcome, nil
}

func (d *Deliverer) publish(ctx context.Context, msg *OutboundMessage) (string, int, error) {
	return retry.Do(ctx, d.retryCfg, retry.Retryable, func(ctx context.Context) (string, error) {
		return d.publisher.Publish(ctx, msg)
	})
}

func payloadSize(msg *OutboundMessage) int {
	size := len(msg.Default) + len(msg.Subject)
	for _, p := range msg.Payloads {
		size += len(p)
	}
	return size
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
