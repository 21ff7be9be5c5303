// Package identity abstracts the external identity provider. The core only
// needs one operation: exchange an authorization code for an identity
// assertion, or fail. A transport failure and a missing identity are treated
// identically as a login rejection.
package identity

import "context"

// Assertion is the verified identity supplied by the upstream provider.
type Assertion struct {
	Email string
	Name  string
}

// Provider exchanges an authorization code for an identity assertion.
type Provider interface {
	Exchange(ctx context.Context, code string) (*Assertion, error)
}
