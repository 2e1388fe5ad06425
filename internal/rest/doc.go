// Package rest is the transport/validation collaborator for the
// session service.
//
// It performs the five HTTP operations of the sessions API (list, get,
// create, patch, delete) and validates every response payload into the
// canonical SessionRecord form before anything upstream sees it.
//
// Behavior guarantees relied on by the session layer:
//   - Non-2xx responses surface as *types.TransportError, verbatim, no
//     local retries beyond the transport's own policy.
//   - Get maps 404 to types.ErrNotFound.
//   - Delete tolerates 404 (already gone, logged as a warning) and
//     escalates 410 (kernel deleted, session record remains).
//
// Built on resty over a retryablehttp transport, with a rate limiter
// and circuit breaker in front, the same shape as any other outbound
// client in this codebase.
package rest
