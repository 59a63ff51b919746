package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInvalidInput        = errors.New("invalid input")
	ErrJobNotFound         = errors.New("extraction job not found")
	ErrRecordNotFound      = errors.New("record not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrExtractionInFlight  = errors.New("extraction already in flight")
	ErrRateLimited         = errors.New("generation rate limited")
	ErrGenerationTimeout   = errors.New("generation timeout")
	ErrGenerationFailed    = errors.New("generation failed")
	ErrMalformedResponse   = errors.New("malformed generation response")
	ErrUnpersistableRecord = errors.New("record has blocking review flags")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// RetryableGeneration reports whether the caller-side policy may re-issue
// a generation call. Malformed responses are excluded: identical input
// will produce the same malformed output again.
func RetryableGeneration(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrGenerationTimeout)
}
