package router

import (
	"strings"

	"github.com/PatrionDigital/tradewire/internal/domain"
)

// Classification maps an opaque venue failure onto the closed error taxonomy
// and says whether another attempt could plausibly succeed.
type Classification struct {
	Code      domain.ErrorCode
	Retryable bool
}

// Classifier turns a placement failure into a Classification. The router
// ships with the substring heuristic below; venues that report structured
// errors can plug in their own and bypass string matching entirely.
type Classifier func(err error) Classification

// retryableFragments mark transient failures. Anything else is a definitive
// rejection and is never retried, even when the caller asked for retries.
var retryableFragments = []string{"timeout", "network", "rate limit", "temporary", "retry"}

// DefaultClassifier is the documented fallback: case-insensitive substring
// matching over the failure message, first match wins.
func DefaultClassifier(err error) Classification {
	msg := strings.ToLower(err.Error())

	code := domain.ErrCodeUnknown
	switch {
	case strings.Contains(msg, "timeout"):
		code = domain.ErrCodeTimeout
	case strings.Contains(msg, "network"):
		code = domain.ErrCodeNetworkError
	case strings.Contains(msg, "balance"), strings.Contains(msg, "insufficient"):
		code = domain.ErrCodeInsufficientBalance
	case strings.Contains(msg, "auth"), strings.Contains(msg, "unauthorized"):
		code = domain.ErrCodeAuthFailed
	case strings.Contains(msg, "market"), strings.Contains(msg, "not found"):
		code = domain.ErrCodeMarketNotFound
	case strings.Contains(msg, "price"), strings.Contains(msg, "slippage"):
		code = domain.ErrCodePriceMoved
	case strings.Contains(msg, "reject"):
		code = domain.ErrCodeOrderRejected
	}

	retryable := false
	for _, fragment := range retryableFragments {
		if strings.Contains(msg, fragment) {
			retryable = true
			break
		}
	}

	return Classification{Code: code, Retryable: retryable}
}
