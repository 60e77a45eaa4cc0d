// Package auth implements the per-principal permission store.
//
// Authorization is default-deny: a principal that was never added holds no
// permissions. The executor consults IsAuthorized on every bound-function
// invocation, so membership checks must stay cheap.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/liathdb/liath/kv"
)

// ErrPrincipalNotFound is returned when mutating permissions of an unknown
// principal.
var ErrPrincipalNotFound = errors.New("principal not found")

// principalRecord is the persisted form of one principal's permission set.
type principalRecord struct {
	ID          string   `json:"id"`
	Permissions []string `json:"permissions"`
}

// Manager maps principal ids to permission sets, optionally persisted
// through a kv.Store. It is safe for concurrent use.
type Manager struct {
	mu    sync.RWMutex
	perms map[string]map[string]struct{}
	store kv.Store // nil when in-memory only
}

// NewManager creates an in-memory only Manager.
func NewManager() *Manager {
	return &Manager{perms: make(map[string]map[string]struct{})}
}

// NewPersistentManager creates a Manager backed by store, loading every
// persisted principal eagerly.
func NewPersistentManager(store kv.Store) (*Manager, error) {
	m := &Manager{
		perms: make(map[string]map[string]struct{}),
		store: store,
	}

	err := store.Iterate(func(key, value []byte) error {
		var rec principalRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return fmt.Errorf("auth: decode record for %q: %w", key, err)
		}
		set := make(map[string]struct{}, len(rec.Permissions))
		for _, p := range rec.Permissions {
			set[p] = struct{}{}
		}
		m.perms[string(key)] = set
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// IsAuthorized reports whether the principal holds the permission.
// Unknown principals are never authorized.
func (m *Manager) IsAuthorized(id, permission string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.perms[id]
	if !ok {
		return false
	}
	_, ok = set[permission]
	return ok
}

// AddUser registers a principal with the given permissions, replacing any
// prior registration.
func (m *Manager) AddUser(id string, permissions []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		set[p] = struct{}{}
	}
	m.perms[id] = set
	return m.persist(id)
}

// UpdatePermissions fully replaces the principal's permission set.
func (m *Manager) UpdatePermissions(id string, permissions []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.perms[id]; !ok {
		return ErrPrincipalNotFound
	}
	set := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		set[p] = struct{}{}
	}
	m.perms[id] = set
	return m.persist(id)
}

// AddPermission grants one permission to an existing principal.
func (m *Manager) AddPermission(id, permission string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.perms[id]
	if !ok {
		return ErrPrincipalNotFound
	}
	set[permission] = struct{}{}
	return m.persist(id)
}

// RemovePermission revokes one permission from an existing principal.
func (m *Manager) RemovePermission(id, permission string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.perms[id]
	if !ok {
		return ErrPrincipalNotFound
	}
	delete(set, permission)
	return m.persist(id)
}

// RemoveUser deletes a principal entirely.
func (m *Manager) RemoveUser(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.perms[id]; !ok {
		return ErrPrincipalNotFound
	}
	delete(m.perms, id)

	if m.store != nil {
		if err := m.store.Delete([]byte(id)); err != nil {
			return fmt.Errorf("auth: delete principal %q: %w", id, err)
		}
	}
	return nil
}

// Permissions returns the principal's permissions, sorted. The second return
// is false for unknown principals.
func (m *Manager) Permissions(id string) ([]string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set, ok := m.perms[id]
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, true
}

// Flush persists buffered writes in the backing store, if any.
func (m *Manager) Flush() error {
	if m.store == nil {
		return nil
	}
	return m.store.Flush()
}

// persist writes the principal's current set through the store.
// Caller holds the write lock.
func (m *Manager) persist(id string) error {
	if m.store == nil {
		return nil
	}
	set := m.perms[id]
	rec := principalRecord{ID: id, Permissions: make([]string, 0, len(set))}
	for p := range set {
		rec.Permissions = append(rec.Permissions, p)
	}
	sort.Strings(rec.Permissions)

	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("auth: encode record for %q: %w", id, err)
	}
	if err := m.store.Put([]byte(id), value); err != nil {
		return fmt.Errorf("auth: persist principal %q: %w", id, err)
	}
	return nil
}
