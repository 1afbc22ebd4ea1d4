// Package assistant provides assistant configuration lookup and the
// synchronization collaborator contract.
package assistant

import (
	"context"
	"sync"

	"github.com/coreerp/assistant-gateway/internal/domain"
)

// Registry looks up assistant configurations. A configuration handed out by
// Get or VisibleTo is never modified afterwards; updates replace the stored
// entry instead.
type Registry interface {
	// Get returns the configuration for id, or a
	// domain.KindAssistantNotFound error.
	Get(ctx context.Context, id string) (*domain.AssistantConfig, error)

	// VisibleTo lists the assistants the caller's role may use.
	VisibleTo(ctx context.Context, rc *domain.RequestContext) ([]*domain.AssistantConfig, error)
}

// SyncEngine reconciles local assistant configurations against the remote
// model lists. It is a black box to this core.
type SyncEngine interface {
	// Sync runs one reconciliation pass and returns how many records it
	// touched.
	Sync(ctx context.Context) (int, error)
}

// StaticRegistry serves a fixed set of assistants loaded from
// configuration. Every assistant is visible to every caller; role scoping
// belongs to the ERP's authorization layer.
//
// The set of assistants is fixed, but remote ids assigned by a sync pass
// are published through SetRemoteAssistantID, so lookups and sync may
// overlap freely.
type StaticRegistry struct {
	mu    sync.RWMutex
	byID  map[string]*domain.AssistantConfig
	order []string
}

var _ Registry = (*StaticRegistry)(nil)

// NewStaticRegistry creates a registry over the given configurations,
// preserving their order.
func NewStaticRegistry(apps ...*domain.AssistantConfig) *StaticRegistry {
	r := &StaticRegistry{byID: make(map[string]*domain.AssistantConfig)}
	for _, app := range apps {
		if app == nil || app.ID == "" {
			continue
		}
		if _, dup := r.byID[app.ID]; !dup {
			r.order = append(r.order, app.ID)
		}
		r.byID[app.ID] = app
	}
	return r
}

func (r *StaticRegistry) Get(ctx context.Context, id string) (*domain.AssistantConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	app, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrAssistantNotFound(id)
	}
	return app, nil
}

func (r *StaticRegistry) VisibleTo(ctx context.Context, rc *domain.RequestContext) ([]*domain.AssistantConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	apps := make([]*domain.AssistantConfig, 0, len(r.order))
	for _, id := range r.order {
		apps = append(apps, r.byID[id])
	}
	return apps, nil
}

// SetRemoteAssistantID publishes a freshly assigned remote id for id. The
// stored entry is replaced with a copy, so configurations already handed to
// in-flight requests never change underneath them. Teams holding the
// assistant as a member are re-pointed at the new copy the same way.
func (r *StaticRegistry) SetRemoteAssistantID(id, remoteID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.byID[id]
	if !ok {
		return
	}
	next := *prev
	next.RemoteAssistantID = remoteID
	r.byID[id] = &next

	for teamID, team := range r.byID {
		changed := false
		members := make([]*domain.AssistantConfig, len(team.TeamMembers))
		for i, m := range team.TeamMembers {
			if m == prev {
				members[i] = &next
				changed = true
			} else {
				members[i] = m
			}
		}
		if !changed {
			continue
		}
		teamCopy := *team
		teamCopy.TeamMembers = members
		r.byID[teamID] = &teamCopy
	}
}
