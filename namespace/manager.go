package namespace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/liathdb/liath/kv"
	"github.com/liathdb/liath/vector"
)

const (
	metadataStoreFile = "_metadata.db"
	kvStoreFile       = "kv.db"
	snapshotFile      = "vectors.idx"
)

// Manager is the authoritative namespace table plus its on-disk lifecycle.
//
// The table uses reader/writer locking: lookups proceed in parallel while
// create/delete take exclusive access.
type Manager struct {
	mu         sync.RWMutex
	namespaces map[string]*Namespace

	dataDir  string
	metadata kv.Store
	logger   *slog.Logger
}

// NewManager opens (or creates) a manager over dataDir and recovers every
// persisted namespace.
//
// Recovery is partial by design: a namespace whose vector snapshot fails to
// load starts with an empty in-memory index and a warning, instead of
// aborting construction. A namespace whose config record fails the strict
// parse is a fatal configuration error.
func NewManager(dataDir string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("namespace: create data dir: %w", err)
	}

	metadata, err := kv.OpenSQLite(filepath.Join(dataDir, metadataStoreFile))
	if err != nil {
		return nil, fmt.Errorf("namespace: open metadata store: %w", err)
	}

	m := &Manager{
		namespaces: make(map[string]*Namespace),
		dataDir:    dataDir,
		metadata:   metadata,
		logger:     logger,
	}

	if err := m.recover(); err != nil {
		_ = metadata.Close()
		return nil, err
	}
	return m, nil
}

// recover re-opens every namespace recorded in the metadata store.
func (m *Manager) recover() error {
	var configs []Config
	err := m.metadata.Iterate(func(_, value []byte) error {
		cfg, err := decodeConfig(value)
		if err != nil {
			return err
		}
		configs = append(configs, cfg)
		return nil
	})
	if err != nil {
		return err
	}

	for _, cfg := range configs {
		ns, err := m.open(cfg)
		if err != nil {
			return fmt.Errorf("namespace: recover %q: %w", cfg.Name, err)
		}
		m.namespaces[cfg.Name] = ns
		m.logger.Info("recovered namespace",
			"name", cfg.Name,
			"dimensions", cfg.Dimensions,
			"metric", cfg.Metric.String(),
			"vectors", ns.Index.Size(),
		)
	}
	return nil
}

// open constructs the handles of one namespace, attempting the snapshot
// load. Snapshot failures degrade to an empty index.
func (m *Manager) open(cfg Config) (*Namespace, error) {
	dir := filepath.Join(m.dataDir, cfg.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	store, err := kv.OpenSQLite(filepath.Join(dir, kvStoreFile))
	if err != nil {
		return nil, fmt.Errorf("open kv store: %w", err)
	}

	idx, err := vector.NewFlat(cfg.Dimensions, cfg.Metric, cfg.Scalar)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create vector index: %w", err)
	}

	snapshot := filepath.Join(dir, snapshotFile)
	if _, statErr := os.Stat(snapshot); statErr == nil {
		if loadErr := idx.Load(snapshot); loadErr != nil {
			m.logger.Warn("vector snapshot load failed, starting empty",
				"namespace", cfg.Name,
				"path", snapshot,
				"error", loadErr,
			)
		}
	}

	return &Namespace{Config: cfg, KV: store, Index: idx}, nil
}

// Create allocates a new namespace. It fails if the name is taken.
func (m *Manager) Create(name string, dimensions int, metric vector.Metric, scalar vector.Scalar) (*Namespace, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if dimensions <= 0 {
		return nil, vector.ErrInvalidDimension
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.namespaces[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrAlreadyExists, name)
	}

	cfg := Config{Name: name, Dimensions: dimensions, Metric: metric, Scalar: scalar}
	ns, err := m.open(cfg)
	if err != nil {
		return nil, fmt.Errorf("namespace: create %q: %w", name, err)
	}

	record, err := cfg.encode()
	if err != nil {
		_ = ns.KV.Close()
		return nil, fmt.Errorf("namespace: encode config for %q: %w", name, err)
	}
	if err := m.metadata.Put([]byte(name), record); err != nil {
		_ = ns.KV.Close()
		return nil, fmt.Errorf("namespace: persist config for %q: %w", name, err)
	}

	m.namespaces[name] = ns
	m.logger.Info("created namespace", "name", name, "dimensions", dimensions, "metric", metric.String(), "scalar", scalar.String())
	return ns, nil
}

// Get returns the namespace, or ErrNotFound.
func (m *Manager) Get(name string) (*Namespace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ns, ok := m.namespaces[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return ns, nil
}

// Delete removes the namespace from the table, deletes its config record and
// recursively deletes its on-disk directory. Irreversible.
func (m *Manager) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.namespaces[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(m.namespaces, name)

	if err := ns.KV.Close(); err != nil {
		m.logger.Warn("close kv store during delete", "namespace", name, "error", err)
	}
	if err := m.metadata.Delete([]byte(name)); err != nil {
		return fmt.Errorf("namespace: delete config for %q: %w", name, err)
	}
	if err := os.RemoveAll(filepath.Join(m.dataDir, name)); err != nil {
		return fmt.Errorf("namespace: delete directory for %q: %w", name, err)
	}

	m.logger.Info("deleted namespace", "name", name)
	return nil
}

// List returns all namespace names, sorted.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.namespaces))
	for name := range m.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Exists reports whether the namespace exists.
func (m *Manager) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.namespaces[name]
	return ok
}

// SaveOne serializes one namespace's vector index to its snapshot file and
// flushes its kv store.
func (m *Manager) SaveOne(name string) error {
	m.mu.RLock()
	ns, ok := m.namespaces[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return m.save(ns)
}

// SaveAll serializes every namespace's vector index and flushes the shared
// metadata store. It blocks until every snapshot is written.
func (m *Manager) SaveAll() error {
	m.mu.RLock()
	all := make([]*Namespace, 0, len(m.namespaces))
	for _, ns := range m.namespaces {
		all = append(all, ns)
	}
	m.mu.RUnlock()

	for _, ns := range all {
		if err := m.save(ns); err != nil {
			return err
		}
	}
	if err := m.metadata.Flush(); err != nil {
		return fmt.Errorf("namespace: flush metadata: %w", err)
	}
	return nil
}

func (m *Manager) save(ns *Namespace) error {
	path := filepath.Join(m.dataDir, ns.Config.Name, snapshotFile)
	if err := ns.Index.Save(path); err != nil {
		return fmt.Errorf("namespace: save index for %q: %w", ns.Config.Name, err)
	}
	if err := ns.KV.Flush(); err != nil {
		return fmt.Errorf("namespace: flush kv for %q: %w", ns.Config.Name, err)
	}
	return nil
}

// Close flushes nothing and closes every open handle. Call SaveAll first if
// durability of in-memory vector data is required.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for name, ns := range m.namespaces {
		if err := ns.KV.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("namespace: close kv for %q: %w", name, err)
		}
	}
	m.namespaces = make(map[string]*Namespace)
	if err := m.metadata.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("namespace: close metadata: %w", err)
	}
	return firstErr
}
