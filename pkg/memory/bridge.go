// Package memory writes qualifying findings through to an external
// observation database shared with the assistant's long-term memory.
//
// The sink is optional: a missing path or an unopenable database leaves
// the bridge disabled and the rest of the service unaffected. Writes are
// idempotent by finding id, on both the sink side (unique external id)
// and the main store's injection ledger.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/assistkit/scout/pkg/config"
	"github.com/assistkit/scout/pkg/models"
)

// Quality gates for automatic injection.
const (
	// MinConfidence is the confidence floor for automatic injection.
	MinConfidence = 0.7

	// MinSources is how many distinct sources a finding needs.
	MinSources = 2

	// HighQualityConfidence marks findings worth surfacing prominently.
	HighQualityConfidence = 0.85
)

// observationSource tags rows written by this service so its own future
// searches can filter them out.
const observationSource = "scout"

const sinkSchema = `
CREATE TABLE IF NOT EXISTS observations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id TEXT UNIQUE,
	session_id  TEXT NOT NULL DEFAULT '',
	project     TEXT NOT NULL DEFAULT '',
	type        TEXT NOT NULL,
	title       TEXT NOT NULL,
	narrative   TEXT NOT NULL DEFAULT '',
	facts       TEXT NOT NULL DEFAULT '[]',
	concepts    TEXT NOT NULL DEFAULT '[]',
	confidence  REAL NOT NULL DEFAULT 0,
	source      TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL
)`

// Ledger is the main-store subset recording injections. Satisfied by
// *store.Store.
type Ledger interface {
	LogInjection(ctx context.Context, rec models.InjectionRecord) (bool, error)
}

// Bridge is the write-through to the observation sink. A nil db means
// the bridge is disabled; every method stays safe to call.
type Bridge struct {
	db      *sql.DB
	ledger  Ledger
	project string
}

// Open connects the bridge. Absence of a configured path or any failure
// opening the sink is non-fatal: the returned bridge is simply disabled.
func Open(cfg *config.MemoryConfig, ledger Ledger) *Bridge {
	b := &Bridge{ledger: ledger}
	if cfg == nil || cfg.Path == "" {
		slog.Info("Memory bridge disabled: no observation database configured")
		return b
	}
	b.project = cfg.Project

	db, err := sql.Open("sqlite", cfg.Path+"?_pragma=busy_timeout(5000)")
	if err == nil {
		err = db.Ping()
	}
	if err == nil {
		_, err = db.Exec(sinkSchema)
	}
	if err != nil {
		slog.Warn("Memory bridge disabled: observation database unavailable",
			"path", cfg.Path, "error", err)
		if db != nil {
			db.Close()
		}
		return b
	}

	b.db = db
	slog.Info("Memory bridge connected", "path", cfg.Path)
	return b
}

// Enabled reports whether the sink is connected.
func (b *Bridge) Enabled() bool {
	return b.db != nil
}

// Close releases the sink handle.
func (b *Bridge) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// MeetsQualityThreshold is the automatic-injection gate: confident and
// multi-source.
func (b *Bridge) MeetsQualityThreshold(f *models.Finding) bool {
	return f.Confidence >= MinConfidence && len(f.Sources) >= MinSources
}

// IsHighQuality marks findings confident enough to surface on their own.
func (b *Bridge) IsHighQuality(f *models.Finding) bool {
	return f.Confidence >= HighQualityConfidence
}

// Inject writes the finding to the sink when it passes the quality gate.
// Returns whether a new observation row was written.
func (b *Bridge) Inject(ctx context.Context, f *models.Finding) (bool, error) {
	if !b.Enabled() {
		return false, nil
	}
	if !b.MeetsQualityThreshold(f) {
		slog.Debug("Finding below memory quality gate",
			"finding_id", f.ID, "confidence", f.Confidence, "sources", len(f.Sources))
		return false, nil
	}
	return b.write(ctx, f, false)
}

// ForceInject writes the finding regardless of the quality gate.
func (b *Bridge) ForceInject(ctx context.Context, f *models.Finding) (bool, error) {
	if !b.Enabled() {
		return false, nil
	}
	return b.write(ctx, f, true)
}

func (b *Bridge) write(ctx context.Context, f *models.Finding, forced bool) (bool, error) {
	if f.ID == "" {
		return false, fmt.Errorf("finding id must not be empty")
	}

	facts := append([]string(nil), f.KeyPoints...)
	for _, src := range f.Sources {
		facts = append(facts, "source: "+src.URL)
	}
	factsJSON, err := json.Marshal(facts)
	if err != nil {
		return false, fmt.Errorf("failed to encode facts: %w", err)
	}
	conceptsJSON, err := json.Marshal(concepts(f))
	if err != nil {
		return false, fmt.Errorf("failed to encode concepts: %w", err)
	}

	res, err := b.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO observations
			(external_id, session_id, project, type, title, narrative, facts,
			 concepts, confidence, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.SessionID, b.project, "research", f.Query, f.Summary,
		string(factsJSON), string(conceptsJSON), f.Confidence,
		observationSource, time.Now().UTC().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to write observation: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read observation result: %w", err)
	}

	if b.ledger != nil {
		if _, err := b.ledger.LogInjection(ctx, models.InjectionRecord{
			FindingID: f.ID,
			SessionID: f.SessionID,
			Forced:    forced,
		}); err != nil {
			slog.Warn("Failed to record injection", "finding_id", f.ID, "error", err)
		}
	}

	if inserted > 0 {
		slog.Info("Finding injected into memory",
			"finding_id", f.ID, "forced", forced, "confidence", f.Confidence)
	}
	return inserted > 0, nil
}

func concepts(f *models.Finding) []string {
	out := make([]string, 0, 2)
	if f.Domain != "" {
		out = append(out, f.Domain)
	}
	if f.Depth != "" {
		out = append(out, string(f.Depth))
	}
	return out
}
