package mcp

import (
	"context"
	"fmt"
	"sync"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// subscriptions tracks active resource subscriptions per URI with
// auto-increment ids. Unsubscribe is O(n) over the table, which is fine
// at the scale of a single local client.
type subscriptions struct {
	mu         sync.Mutex
	byResource map[string][]string
	nextID     uint64
}

func newSubscriptions() *subscriptions {
	return &subscriptions{byResource: map[string][]string{}}
}

// subscribe registers a subscription for uri and returns its id.
func (s *subscriptions) subscribe(uri string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("sub_%d", s.nextID)
	s.nextID++
	s.byResource[uri] = append(s.byResource[uri], id)
	return id
}

// unsubscribe removes one subscription by id, reporting whether it
// existed.
func (s *subscriptions) unsubscribe(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for uri, subs := range s.byResource {
		for i, sub := range subs {
			if sub == id {
				s.byResource[uri] = append(subs[:i], subs[i+1:]...)
				return true
			}
		}
	}
	return false
}

// unsubscribeURI drops every subscription for uri.
func (s *subscriptions) unsubscribeURI(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byResource, uri)
}

func (s *subscriptions) hasSubscribers(uri string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byResource[uri]) > 0
}

// clear drops every subscription, for disconnect cleanup.
func (s *subscriptions) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byResource = map[string][]string{}
}

// handleSubscribe validates the URI and records the subscription.
func (s *Server) handleSubscribe(ctx context.Context, req *sdkmcp.SubscribeRequest) error {
	uri := req.Params.URI
	if err := validateResourceURI(uri); err != nil {
		return err
	}
	id := s.subs.subscribe(uri)
	s.log.Debug().Str("uri", uri).Str("subscription", id).Msg("resource subscribed")
	return nil
}

// handleUnsubscribe drops every subscription for the URI. The protocol
// unsubscribes by URI; the id-indexed table also serves direct callers.
func (s *Server) handleUnsubscribe(ctx context.Context, req *sdkmcp.UnsubscribeRequest) error {
	s.subs.unsubscribeURI(req.Params.URI)
	s.log.Debug().Str("uri", req.Params.URI).Msg("resource unsubscribed")
	return nil
}
