// Package httputil provides shared HTTP helpers for previewd: retry with
// exponential backoff and retryable-error classification.
//
// The retry helper only retries errors explicitly wrapped with
// [RetryableError]. Callers decide at the point of failure whether an error
// is transient (connection refused, 5xx) or terminal (4xx, caller-side
// abort) and wrap accordingly; Retry never guesses.
package httputil
