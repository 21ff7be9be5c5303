// Package broadcast notifies live connections that their session has been
// revoked. Connections subscribe to a group keyed by identity and client
// class; an explicit logout publishes to the matching group. Delivery is
// best-effort and fire-and-forget: publishing to an empty group is not an
// error.
package broadcast

import (
	"context"
	"net/url"
)

// Group identifies the set of connections belonging to one identity on one
// class of client. Modelled as a typed tuple rather than a concatenated
// string so identities containing the delimiter cannot collide.
type Group struct {
	Email       string
	ClientClass string
}

// Channel returns the transport channel name for the group. Both components
// are escaped so the separator is unambiguous.
func (g Group) Channel() string {
	return "logout:" + url.QueryEscape(g.Email) + ":" + url.QueryEscape(g.ClientClass)
}

// Event is the payload delivered to each connection in a revoked group.
type Event struct {
	Reason string `json:"reason"`
}

// Broadcaster publishes session revocation events.
type Broadcaster interface {
	Publish(ctx context.Context, group Group, event Event) error
}

// Noop drops every event. Used when no pub/sub transport is configured.
type Noop struct{}

var _ Broadcaster = Noop{}

func (Noop) Publish(ctx context.Context, group Group, event Event) error {
	return nil
}
