package gemini

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/stitchworks/atelier/internal/core/domain"
)

// wrapDomainError folds transport failures into the domain taxonomy so
// callers can tell retryable cases (rate limited, timeout) apart from
// hard generation failures without inspecting HTTP details.
func wrapDomainError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrGenerationTimeout, operation, err)
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusTooManyRequests {
			return domain.WrapError(domain.ErrRateLimited, operation, err)
		}
		return domain.WrapError(domain.ErrGenerationFailed, operation, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.WrapError(domain.ErrGenerationTimeout, operation, err)
	}

	return domain.WrapError(domain.ErrGenerationFailed, operation, err)
}
