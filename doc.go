// Package auth implements the credential lifecycle for token based
// authentication: refresh token rotation, access token issuance, API key
// management, and service availability gating.
//
// Refresh tokens:
//   - Refresh tokens are single use. Rotate consumes the presented token and
//     issues a replacement atomically, so two concurrent rotations of the same
//     token can never both succeed. A consumed or revoked token presented again
//     is treated as a replay and surfaced through the ActivitySink.
//   - Token validity is a pure function of the record: not used, not revoked,
//     and not past its expiry. Expiry always wins over the terminal flags when
//     reporting why a token was rejected.
//
// API keys:
//   - ApiKeyManager issues opaque keys scoped to an owner. Raw secrets appear
//     only in the Create response; every read path returns redacted records.
//     Lookups and revocations are owner-isolated, so callers cannot observe
//     whether a key they do not own exists.
//
// Availability gating:
//   - AvailabilityRegistry derives per-service availability from configuration
//     (missing, blank, or placeholder keys mark a service unavailable) and
//     implements gate.FeatureGate, so the Orchestrator can refuse auth
//     operations while their backing service is unconfigured.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the Orchestrator,
//     TokenRotator, and ApiKeyManager to describe login, rotation, replay, and
//     revocation events. Sinks run best-effort (errors are logged) so you can
//     forward to a database or queue without blocking authentication.
package auth
