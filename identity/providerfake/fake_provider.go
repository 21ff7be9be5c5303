package providerfake

import (
	"context"

	"github.com/resauth/token-service/identity"
	svcerrors "github.com/resauth/token-service/internal/errors"
)

var _ identity.Provider = (*FakeProvider)(nil)

// FakeProvider maps authorization codes to canned assertions. Unknown codes
// fail the way the real provider does.
type FakeProvider struct {
	Assertions map[string]identity.Assertion
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{Assertions: make(map[string]identity.Assertion)}
}

func (f *FakeProvider) Exchange(ctx context.Context, code string) (*identity.Assertion, error) {
	assertion, ok := f.Assertions[code]
	if !ok {
		return nil, svcerrors.ErrUpstreamIdentity
	}
	return &assertion, nil
}
