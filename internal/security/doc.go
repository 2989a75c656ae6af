// Package security provides authentication, authorization, and rate
// limiting for the dashcam control-plane JSON-RPC API (internal/controlapi).
//
// Key Components:
//   - JWTHandler: HS256 token generation and validation, with per-client
//     request-rate tracking
//   - PermissionChecker: role-based (viewer/operator/admin) method
//     permission matrix for JSON-RPC methods such as start_recording,
//     apply_settings, and the geodata job controls
//   - EnhancedRateLimiter: per-method and per-client token-bucket rate
//     limiting with abusive-client blocking, backed by golang.org/x/time/rate
//   - APIKeyManager: long-lived API key issuance/revocation/rotation for
//     non-interactive callers (used by cmd/cli)
//
// Usage Pattern:
//   - Create a JWTHandler with NewJWTHandler(), issue tokens with
//     GenerateToken(), and validate incoming tokens with ValidateToken()
//   - Check a caller's role against a method with
//     PermissionChecker.HasPermission()
//   - Gate requests through EnhancedRateLimiter.CheckLimit() before
//     dispatching to a method handler
package security
