// Package namespace owns the namespace table: the pairing of one key-value
// keyspace with one fixed-dimension vector index, its configuration record,
// and the on-disk lifecycle of both.
package namespace

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/liathdb/liath/kv"
	"github.com/liathdb/liath/vector"
)

var (
	// ErrNotFound is returned when a namespace does not exist.
	ErrNotFound = errors.New("namespace not found")

	// ErrAlreadyExists is returned when creating a namespace whose name
	// is taken.
	ErrAlreadyExists = errors.New("namespace already exists")

	// ErrInvalidName is returned for names that cannot serve as on-disk
	// directory names.
	ErrInvalidName = errors.New("invalid namespace name")
)

// Config is the persisted configuration record of a namespace. Dimensions,
// metric and scalar are fixed at creation and never change.
type Config struct {
	Name       string
	Dimensions int
	Metric     vector.Metric
	Scalar     vector.Scalar
}

// configRecord is the JSON wire form of Config. Metric and scalar round-trip
// through their strict string forms; unrecognized strings fail the load.
type configRecord struct {
	Name       string `json:"name"`
	Dimensions int    `json:"dimensions"`
	Metric     string `json:"metric"`
	Scalar     string `json:"scalar"`
}

func (c Config) encode() ([]byte, error) {
	return json.Marshal(configRecord{
		Name:       c.Name,
		Dimensions: c.Dimensions,
		Metric:     c.Metric.String(),
		Scalar:     c.Scalar.String(),
	})
}

func decodeConfig(data []byte) (Config, error) {
	var rec configRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Config{}, fmt.Errorf("namespace: decode config: %w", err)
	}
	metric, err := vector.ParseMetric(rec.Metric)
	if err != nil {
		return Config{}, fmt.Errorf("namespace: config for %q: %w", rec.Name, err)
	}
	scalar, err := vector.ParseScalar(rec.Scalar)
	if err != nil {
		return Config{}, fmt.Errorf("namespace: config for %q: %w", rec.Name, err)
	}
	if rec.Dimensions <= 0 {
		return Config{}, fmt.Errorf("namespace: config for %q: invalid dimensions %d", rec.Name, rec.Dimensions)
	}
	return Config{
		Name:       rec.Name,
		Dimensions: rec.Dimensions,
		Metric:     metric,
		Scalar:     scalar,
	}, nil
}

// Namespace bundles the handles of one namespace. Handles are shared: any
// executing script reaches them through the executor, so both stores must be
// safe for concurrent use.
type Namespace struct {
	Config Config
	KV     kv.Store
	Index  vector.Index
}

// validateName rejects names that would escape or collide inside the data
// directory. Names starting with '_' are reserved for internal stores.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if strings.HasPrefix(name, "_") {
		return fmt.Errorf("%w: %q (leading underscore is reserved)", ErrInvalidName, name)
	}
	if strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
