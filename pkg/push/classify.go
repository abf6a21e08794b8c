package push

import "strings"

// FailureKind is the closed set of push-ecosystem failure categories
// recognized from error text. The push platform does not expose structured
// error codes through the broadcast channel, so classification is a
// message-matching heuristic; keeping it here, in one place, makes the
// heuristic auditable and swappable.
type FailureKind string

const (
	FailureNone             FailureKind = ""
	FailureEndpointDisabled FailureKind = "endpoint_disabled"
	FailureInvalidToken     FailureKind = "invalid_token"
	FailureCertificate      FailureKind = "certificate"
	FailurePlatform         FailureKind = "platform"
)

var failureIndicators = []struct {
	kind     FailureKind
	patterns []string
}{
	{FailureEndpointDisabled, []string{"endpoint disabled", "endpointdisabled", "endpoint is disabled"}},
	{FailureInvalidToken, []string{"invalid token", "invalidtoken", "invalid device token", "token not found"}},
	{FailureCertificate, []string{"certificate", "cert expired", "ssl handshake"}},
	{FailurePlatform, []string{"platform application", "platformapplication", "apns", "platform credential"}},
}

// ClassifyFailure maps an error to a push failure kind, or FailureNone when
// the error does not look push-related.
func ClassifyFailure(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	msg := strings.ToLower(err.Error())
	for _, ind := range failureIndicators {
		for _, p := range ind.patterns {
			if strings.Contains(msg, p) {
				return ind.kind
			}
		}
	}
	return FailureNone
}

// Implicated reports whether the error points at the push channel.
func Implicated(err error) bool {
	return ClassifyFailure(err) != FailureNone
}
