package mcp

import (
	"context"
	"sync"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/skeletor-js/medulla/internal/cache"
	"github.com/skeletor-js/medulla/internal/store"
)

const serverName = "medulla"

const serverInstructions = `Medulla is a git-native knowledge engine for this project. It stores
design decisions, tasks, notes, prompts, components, and links as
entities connected by typed relations (implements, blocks, supersedes,
references, belongs_to, documents).

Entity ids accept a sequence number ("1") or a hex id prefix of at least
4 characters. Use entity_create/entity_update/entity_delete to mutate,
search_fulltext to find knowledge, task_ready/task_next to pick work,
and graph_relations/graph_path to trace how entities connect.`

// Server is the sole mutator of the stores. All access goes through two
// exclusive locks, always acquired store first, cache second; writes
// hold both across validate, mutate, save, and reindex, so the
// save/reindex pair is atomic with respect to other handlers.
type Server struct {
	store   *store.Store
	cache   *cache.Cache
	storeMu sync.Mutex
	cacheMu sync.Mutex
	subs    *subscriptions
	log     zerolog.Logger
	sdk     *sdkmcp.Server
	version string
}

// New wires the protocol server over an opened store and cache.
func New(st *store.Store, c *cache.Cache, version string, log zerolog.Logger) *Server {
	s := &Server{
		store:   st,
		cache:   c,
		subs:    newSubscriptions(),
		log:     log,
		version: version,
	}

	s.sdk = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: serverName, Version: version},
		&sdkmcp.ServerOptions{
			Instructions:       serverInstructions,
			SubscribeHandler:   s.handleSubscribe,
			UnsubscribeHandler: s.handleUnsubscribe,
		},
	)

	s.registerTools()
	s.registerResources()
	return s
}

// Run serves the protocol over stdio until ctx is cancelled or the
// transport closes. Stdout carries protocol traffic only; all logging
// goes to stderr.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info().Str("version", s.version).Msg("medulla MCP server starting")
	err := s.sdk.Run(ctx, &sdkmcp.StdioTransport{})
	// The transport is gone, so every subscription is dead with it.
	s.subs.clear()
	return err
}

// SyncCache reconciles the cache with the primary store, returning
// whether a reindex ran.
func (s *Server) SyncCache(ctx context.Context) (bool, error) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.cache.Sync(ctx, s.store)
}

// notify fires best-effort resource_updated notifications for every
// subscribed URI among uris. Delivery failures are logged, never
// propagated: notifications must not fail the mutation that caused them.
func (s *Server) notify(ctx context.Context, uris ...string) {
	for _, uri := range uris {
		if !s.subs.hasSubscribers(uri) {
			continue
		}
		if err := s.sdk.ResourceUpdated(ctx, &sdkmcp.ResourceUpdatedNotificationParams{URI: uri}); err != nil {
			s.log.Debug().Str("uri", uri).Err(err).Msg("resource notification dropped")
		}
	}
}

// entityURIs lists the resource URIs a mutation of one entity touches.
func entityURIs(kind, id string) []string {
	uris := []string{
		uriEntities,
		"medulla://entities/" + kind,
		"medulla://entity/" + id,
		uriStats,
		uriGraph,
	}
	switch kind {
	case "decision":
		uris = append(uris, uriDecisions)
	case "task":
		uris = append(uris, uriTasks, uriTasksReady, uriTasksBlocked)
	case "prompt":
		uris = append(uris, uriPrompts)
	}
	return uris
}
