package router

import (
	"errors"
	"testing"

	"github.com/PatrionDigital/tradewire/internal/domain"
)

func TestDefaultClassifier(t *testing.T) {
	tests := []struct {
		msg       string
		code      domain.ErrorCode
		retryable bool
	}{
		{"Request timeout", domain.ErrCodeTimeout, true},
		{"Network timeout", domain.ErrCodeTimeout, true},
		{"network unreachable", domain.ErrCodeNetworkError, true},
		{"insufficient balance for order", domain.ErrCodeInsufficientBalance, false},
		{"Balance too low", domain.ErrCodeInsufficientBalance, false},
		{"unauthorized: bad api key", domain.ErrCodeAuthFailed, false},
		{"auth token expired", domain.ErrCodeAuthFailed, false},
		{"market not active", domain.ErrCodeMarketNotFound, false},
		{"order not found", domain.ErrCodeMarketNotFound, false},
		{"price moved beyond slippage", domain.ErrCodePriceMoved, false},
		{"slippage exceeded", domain.ErrCodePriceMoved, false},
		{"order rejected by venue", domain.ErrCodeOrderRejected, false},
		{"rate limited", domain.ErrCodeUnknown, true},
		{"temporary failure, try later", domain.ErrCodeUnknown, true},
		{"please retry", domain.ErrCodeUnknown, true},
		{"something exploded", domain.ErrCodeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			got := DefaultClassifier(errors.New(tt.msg))
			if got.Code != tt.code {
				t.Errorf("code = %s, want %s", got.Code, tt.code)
			}
			if got.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", got.Retryable, tt.retryable)
			}
		})
	}
}
