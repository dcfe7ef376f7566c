// Package auth turns an inbound request's raw credentials into a single
// unified Identity, independent of which credential type produced it.
//
// Authentication uses a chain-of-responsibility pattern: each provider
// declares whether it can handle the request's credentials (CanHandle) and,
// if so, attempts authentication. The chain tries every matching provider
// in registration order, returns the first Identity produced, and surfaces
// the last typed failure when all matching providers fail. This lets a
// client present multiple credential types in one request without knowing
// in advance which scheme will be accepted.
//
// Auth is implemented as HTTP middleware, keeping it decoupled from the
// business handlers. The middleware also injects the tenant identity into
// the request context for storage multi-tenancy scoping.
package auth
