// Package store defines the persistence contracts for tenants (clients)
// and their API keys, plus the value types shared by all backends.
//
// Two implementations exist: memory (testing and lightweight deployments)
// and postgres (production). Both enforce the same uniqueness invariants:
// client slugs, wallet addresses, and hashed API key secrets are unique.
package store
