package liath

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"github.com/liathdb/liath/auth"
	"github.com/liathdb/liath/embedding"
	"github.com/liathdb/liath/kv"
	"github.com/liathdb/liath/namespace"
	"github.com/liathdb/liath/script"
	"github.com/liathdb/liath/vector"
)

const (
	lockFileName  = "LOCK"
	authStoreName = "_auth.db"
)

// ErrKeyNotFound reports a missing key from the typed accessors.
var ErrKeyNotFound = kv.ErrKeyNotFound

// ErrNamespaceNotFound reports a missing namespace from the typed accessors.
var ErrNamespaceNotFound = namespace.ErrNotFound

// DB is an open liath database. All methods are safe for concurrent use;
// script executions are serialized internally.
type DB struct {
	dataDir        string
	logger         *Logger
	lock           *flock.Flock
	namespaces     *namespace.Manager
	auth           *auth.Manager
	authStore      *kv.SQLiteStore
	provider       embedding.Provider
	exec           *executor
	executeTimeout time.Duration
	closed         atomic.Bool
}

// Open opens (or creates) a database rooted at dataDir. The directory is
// locked for the lifetime of the handle; a second Open on the same directory
// returns ErrDataDirLocked.
//
// Unless disabled with WithoutAdminPrincipal, the first Open seeds an admin
// principal holding every catalog permission.
func Open(dataDir string, optFns ...Option) (*DB, error) {
	o := applyOptions(optFns)

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	lock := flock.New(filepath.Join(dataDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock data dir: %w", err)
	}
	if !locked {
		return nil, ErrDataDirLocked
	}

	fail := func(err error) (*DB, error) {
		_ = lock.Unlock()
		return nil, err
	}

	namespaces, err := namespace.NewManager(dataDir, o.logger.Logger)
	if err != nil {
		return fail(fmt.Errorf("open namespaces: %w", err))
	}

	authStore, err := kv.OpenSQLite(filepath.Join(dataDir, authStoreName))
	if err != nil {
		_ = namespaces.Close()
		return fail(fmt.Errorf("open auth store: %w", err))
	}

	authManager, err := auth.NewPersistentManager(authStore)
	if err != nil {
		_ = namespaces.Close()
		_ = authStore.Close()
		return fail(fmt.Errorf("load principals: %w", err))
	}

	db := &DB{
		dataDir: dataDir,
		logger:  o.logger,
		lock:    lock,
		provider: embedding.NewBounded(o.provider, embedding.BoundedConfig{
			MaxConcurrent:     o.embedConcurrency,
			RequestsPerSecond: o.embedRPS,
		}),
		namespaces:     namespaces,
		auth:           authManager,
		authStore:      authStore,
		executeTimeout: o.executeTimeout,
	}

	db.exec, err = newExecutor(db, script.WithMaxSleep(o.maxSleep))
	if err != nil {
		_ = namespaces.Close()
		_ = authStore.Close()
		return fail(fmt.Errorf("build executor: %w", err))
	}

	if o.adminPrincipal != "" {
		if _, exists := authManager.Permissions(o.adminPrincipal); !exists {
			if err := authManager.AddUser(o.adminPrincipal, AllPermissions()); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("seed admin principal: %w", err)
			}
		}
	}

	o.logger.Info("database opened",
		"data_dir", dataDir,
		"namespaces", len(namespaces.List()))

	return db, nil
}

// Execute validates nothing: it runs source immediately as principal and
// returns the script's coerced result. Scalar return values render as text
// (nil as the literal "nil"); a table result is a type error, so scripts
// return structured data with json_encode. A context deadline (or the
// configured default timeout) aborts a runaway script with a timeout error.
//
// Errors from script evaluation are returned as *RuntimeError.
func (db *DB) Execute(ctx context.Context, source, principal string) (string, error) {
	if db.closed.Load() {
		return "", ErrClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if db.executeTimeout > 0 {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, db.executeTimeout)
			defer cancel()
		}
	}
	return db.exec.execute(ctx, source, principal)
}

// Validate statically checks source without executing it.
func (db *DB) Validate(source string) *ValidationResult {
	return db.exec.validator.Validate(source)
}

// Auth exposes principal management.
func (db *DB) Auth() *auth.Manager {
	return db.auth
}

// Save snapshots every vector index and flushes the metadata and principal
// stores. Key-value writes are durable without it.
func (db *DB) Save() error {
	if db.closed.Load() {
		return ErrClosed
	}
	if err := db.namespaces.SaveAll(); err != nil {
		return err
	}
	return db.auth.Flush()
}

// Close saves all state and releases the data directory lock. Close is
// idempotent.
func (db *DB) Close() error {
	if db.closed.Swap(true) {
		return nil
	}
	var errs []error
	if err := db.namespaces.SaveAll(); err != nil {
		errs = append(errs, err)
	}
	if err := db.auth.Flush(); err != nil {
		errs = append(errs, err)
	}
	if err := db.namespaces.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := db.authStore.Close(); err != nil {
		errs = append(errs, err)
	}
	db.exec.close()
	if err := db.lock.Unlock(); err != nil {
		errs = append(errs, err)
	}
	db.logger.Info("database closed", "data_dir", db.dataDir)
	return errors.Join(errs...)
}

// CreateNamespace creates a namespace with a fixed vector shape.
func (db *DB) CreateNamespace(name string, dimensions int, metric vector.Metric, scalar vector.Scalar) error {
	if db.closed.Load() {
		return ErrClosed
	}
	_, err := db.namespaces.Create(name, dimensions, metric, scalar)
	return err
}

// DeleteNamespace removes a namespace and its on-disk data.
func (db *DB) DeleteNamespace(name string) error {
	if db.closed.Load() {
		return ErrClosed
	}
	return db.namespaces.Delete(name)
}

// ListNamespaces returns all namespace names in sorted order.
func (db *DB) ListNamespaces() []string {
	return db.namespaces.List()
}

// NamespaceExists reports whether name exists.
func (db *DB) NamespaceExists(name string) bool {
	return db.namespaces.Exists(name)
}

// Put stores value under key.
func (db *DB) Put(namespaceName, key, value string) error {
	if db.closed.Load() {
		return ErrClosed
	}
	ns, err := db.namespaces.Get(namespaceName)
	if err != nil {
		return err
	}
	return ns.KV.Put([]byte(key), []byte(value))
}

// Get retrieves the value under key. Missing keys return ErrKeyNotFound.
func (db *DB) Get(namespaceName, key string) (string, error) {
	if db.closed.Load() {
		return "", ErrClosed
	}
	ns, err := db.namespaces.Get(namespaceName)
	if err != nil {
		return "", err
	}
	value, err := ns.KV.Get([]byte(key))
	if err != nil {
		return "", err
	}
	return string(value), nil
}

// Delete removes key. Deleting an absent key is not an error.
func (db *DB) Delete(namespaceName, key string) error {
	if db.closed.Load() {
		return ErrClosed
	}
	ns, err := db.namespaces.Get(namespaceName)
	if err != nil {
		return err
	}
	return ns.KV.Delete([]byte(key))
}

// AddVector inserts a vector under id into the namespace index.
func (db *DB) AddVector(namespaceName string, id uint64, vec []float32) error {
	if db.closed.Load() {
		return ErrClosed
	}
	ns, err := db.namespaces.Get(namespaceName)
	if err != nil {
		return err
	}
	return ns.Index.Add(id, vec)
}

// SimilaritySearch returns the k nearest vectors to query, ascending by
// distance.
func (db *DB) SimilaritySearch(namespaceName string, query []float32, k int) ([]vector.SearchResult, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}
	ns, err := db.namespaces.Get(namespaceName)
	if err != nil {
		return nil, err
	}
	return ns.Index.Search(query, k)
}

// GenerateEmbedding embeds texts through the configured provider, subject to
// the concurrency and rate bounds.
func (db *DB) GenerateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}
	return db.provider.Generate(ctx, texts)
}

// StoreDocument stores text under key, embeds it, indexes the vector under
// id, and records the id to key mapping used by SemanticSearch.
func (db *DB) StoreDocument(ctx context.Context, namespaceName string, id uint64, key, text string) error {
	if db.closed.Load() {
		return ErrClosed
	}
	ns, err := db.namespaces.Get(namespaceName)
	if err != nil {
		return err
	}
	vecs, err := db.provider.Generate(ctx, []string{text})
	if err != nil {
		return fmt.Errorf("generate embedding: %w", err)
	}
	if err := ns.KV.Put([]byte(key), []byte(text)); err != nil {
		return err
	}
	if err := ns.Index.Add(id, vecs[0]); err != nil {
		return err
	}
	return ns.KV.Put([]byte(vectorMappingKey(id)), []byte(key))
}

// SemanticHit is one SemanticSearch result. Key and Content are empty when
// the hit has no stored mapping (for example a vector added directly with
// AddVector).
type SemanticHit struct {
	ID       uint64
	Distance float32
	Key      string
	Content  string
}

// SemanticSearch embeds query and returns the k most similar stored
// documents with their content resolved.
func (db *DB) SemanticSearch(ctx context.Context, namespaceName, query string, k int) ([]SemanticHit, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}
	ns, err := db.namespaces.Get(namespaceName)
	if err != nil {
		return nil, err
	}
	vecs, err := db.provider.Generate(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("generate embedding: %w", err)
	}
	results, err := ns.Index.Search(vecs[0], k)
	if err != nil {
		return nil, err
	}
	hits := make([]SemanticHit, 0, len(results))
	for _, r := range results {
		hit := SemanticHit{ID: r.ID, Distance: r.Distance}
		if key, err := ns.KV.Get([]byte(vectorMappingKey(r.ID))); err == nil {
			hit.Key = string(key)
			if content, err := ns.KV.Get(key); err == nil {
				hit.Content = string(content)
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
