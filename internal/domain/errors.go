package domain

import "errors"

// ErrorKind classifies analysis failures for retry decisions.
// Only rate-limit and transient network errors are worth retrying; data
// errors are permanent and unknown errors are treated as permanent so an
// unclassified failure can never loop forever.
type ErrorKind int

const (
	// KindUnknown is the conservative default for unclassified errors.
	KindUnknown ErrorKind = iota
	// KindRateLimited means a provider rejected the call for requesting too fast.
	KindRateLimited
	// KindTransientNetwork covers timeouts and connection failures.
	KindTransientNetwork
	// KindInvalidTicker means the symbol does not exist at the provider.
	KindInvalidTicker
	// KindDataUnavailable means the provider has no data for a valid symbol.
	KindDataUnavailable
	// KindTimeout marks a job forcibly failed by the batch deadline.
	KindTimeout
)

// String returns a human-readable name for the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindTransientNetwork:
		return "transient_network"
	case KindInvalidTicker:
		return "invalid_ticker"
	case KindDataUnavailable:
		return "data_unavailable"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Retryable reports whether another attempt can possibly succeed.
func (k ErrorKind) Retryable() bool {
	return k == KindRateLimited || k == KindTransientNetwork
}

// Sentinel errors for the classification taxonomy. Clients and the analysis
// pipeline wrap these into their error chains so Classify can recover the
// kind with errors.Is regardless of how many layers added context.
var (
	ErrRateLimited      = errors.New("rate limited")
	ErrTransientNetwork = errors.New("transient network error")
	ErrInvalidTicker    = errors.New("invalid ticker")
	ErrDataUnavailable  = errors.New("data unavailable")
)

// Classify maps an error chain to its ErrorKind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrTransientNetwork):
		return KindTransientNetwork
	case errors.Is(err, ErrInvalidTicker):
		return KindInvalidTicker
	case errors.Is(err, ErrDataUnavailable):
		return KindDataUnavailable
	default:
		return KindUnknown
	}
}
