// Package domain defines the core domain types and interfaces.
//
// This package contains concept-oriented files (submission.go, subject.go, rate_limit.go, etc.)
// with shared types and cross-cutting interfaces. No implementation code beyond small value
// helpers - just contracts. Interfaces live on the consumer side to prevent circular imports.
package domain
