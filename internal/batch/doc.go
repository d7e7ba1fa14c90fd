// Package batch coordinates multi-ticker analysis runs.
//
// A run drives one analysis job per ticker through a bounded worker pool.
// Providers throttle aggressively under load, so the pool is adaptive:
// rate-limit failures halve the number of parallel workers (down to a
// configured floor) and a streak of healthy completions earns one slot back.
// Failed attempts are retried with exponential backoff and jitter, but only
// when the error classification says a retry can possibly succeed.
//
// Every run resolves to a complete, ticker-keyed outcome set. A ticker is
// never silently dropped: if the global deadline fires first, the remaining
// jobs are explicitly failed with a timeout outcome and the partial results
// are returned.
package batch
