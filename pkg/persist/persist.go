// Package persist snapshots the aggregated series and alert configuration to
// durable storage and restores them on boot. The detailed buffer is transient
// and never persisted.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/tinysense/sensord/pkg/reading"
	"github.com/tinysense/sensord/pkg/storage"
)

// Document keys in the store.
const (
	DataKey   = "snapshot/aggregated"
	ConfigKey = "snapshot/config"
)

// Snapshot is the persisted shape of the aggregated series. AggregatedData is
// kept as raw JSON so the checksum covers the exact stored bytes.
type Snapshot struct {
	AggregatedData json.RawMessage `json:"aggregated_data"`
	LastSave       int64           `json:"last_save"`
	Version        int             `json:"version"`
	TotalRecords   int             `json:"total_records"`
	Checksum       uint64          `json:"checksum,omitempty"`
}

// AlertConfig is the persisted alert threshold document. It saves and loads
// independently of the data snapshot.
type AlertConfig struct {
	TemperatureThreshold float64 `json:"temperature_threshold"`
	HumidityThreshold    float64 `json:"humidity_threshold"`
	LastSave             int64   `json:"last_save"`
	Version              int     `json:"version"`
}

// Manager drives snapshot saves and the startup restore.
type Manager struct {
	store      storage.Store
	version    int
	maxRecords int
	ageWindow  time.Duration
}

// New creates a persistence manager. maxRecords caps how many aggregated
// entries a snapshot carries; ageWindow bounds what a restore accepts.
func New(store storage.Store, version, maxRecords int, ageWindow time.Duration) *Manager {
	return &Manager{
		store:      store,
		version:    version,
		maxRecords: maxRecords,
		ageWindow:  ageWindow,
	}
}

// SaveData writes the aggregated series snapshot as a full overwrite. Only
// the most recent maxRecords entries are kept; older ones are omitted, not
// merged with what is already on storage.
func (m *Manager) SaveData(ctx context.Context, entries []reading.Reading, now int64) error {
	if len(entries) > m.maxRecords {
		entries = entries[len(entries)-m.maxRecords:]
	}

	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode aggregated data: %w", err)
	}

	doc := Snapshot{
		AggregatedData: payload,
		LastSave:       now,
		Version:        m.version,
		TotalRecords:   len(entries),
		Checksum:       xxhash.Sum64(payload),
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := m.store.Write(ctx, DataKey, data); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// LoadData restores the aggregated series from storage. A missing document
// returns an empty slice; a corrupt one returns an error the caller logs and
// ignores, booting with an empty series either way. Restored entries are
// filtered to the age window around now, preserving stored order.
func (m *Manager) LoadData(ctx context.Context, now int64) ([]reading.Reading, error) {
	data, err := m.store.Read(ctx, DataKey)
	if err == storage.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var doc Snapshot
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if doc.Checksum != 0 && xxhash.Sum64(doc.AggregatedData) != doc.Checksum {
		return nil, fmt.Errorf("snapshot checksum mismatch (stored %d)", doc.Checksum)
	}

	var entries []reading.Reading
	if err := json.Unmarshal(doc.AggregatedData, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse aggregated data: %w", err)
	}

	cutoff := now - int64(m.ageWindow/time.Second)
	restored := make([]reading.Reading, 0, len(entries))
	for _, e := range entries {
		if e.Timestamp < cutoff {
			continue
		}
		restored = append(restored, e)
	}

	if dropped := len(entries) - len(restored); dropped > 0 {
		log.Printf("Restore: dropped %d aggregated entries older than %v", dropped, m.ageWindow)
	}
	return restored, nil
}

// SaveConfig writes the alert threshold document.
func (m *Manager) SaveConfig(ctx context.Context, tempThreshold, humidityThreshold float64, now int64) error {
	doc := AlertConfig{
		TemperatureThreshold: tempThreshold,
		HumidityThreshold:    humidityThreshold,
		LastSave:             now,
		Version:              m.version,
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode alert config: %w", err)
	}
	if err := m.store.Write(ctx, ConfigKey, data); err != nil {
		return fmt.Errorf("failed to write alert config: %w", err)
	}
	return nil
}

// LoadConfig restores alert thresholds. ok is false when no config document
// exists; missing or zero fields fall back to process defaults at the caller.
func (m *Manager) LoadConfig(ctx context.Context) (cfg AlertConfig, ok bool, err error) {
	data, err := m.store.Read(ctx, ConfigKey)
	if err == storage.ErrNotFound {
		return AlertConfig{}, false, nil
	}
	if err != nil {
		return AlertConfig{}, false, fmt.Errorf("failed to read alert config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return AlertConfig{}, false, fmt.Errorf("failed to parse alert config: %w", err)
	}
	return cfg, true, nil
}
