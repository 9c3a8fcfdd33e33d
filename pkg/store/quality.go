package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/assistkit/scout/pkg/models"
)

// qualityStep is the symmetric score adjustment per feedback event.
const qualityStep = 0.05

// UpdateSourceQuality applies one feedback event to the (domain, topic)
// quality score: +0.05 for helpful, -0.05 otherwise, clamped to [0, 1].
// Unknown pairs start from the neutral 0.5 before the adjustment. Returns
// the new score.
func (s *Store) UpdateSourceQuality(ctx context.Context, domain, topic string, positive bool) (float64, error) {
	if domain == "" {
		return 0, fmt.Errorf("source domain must not be empty")
	}

	delta := qualityStep
	posInc, negInc := 1, 0
	if !positive {
		delta = -qualityStep
		posInc, negInc = 0, 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := toMillis(time.Now().UTC())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO source_quality (domain, topic, score, positive_count, negative_count, updated_at)
		VALUES (?, ?, MAX(0.0, MIN(1.0, 0.5 + ?)), ?, ?, ?)
		ON CONFLICT(domain, topic) DO UPDATE SET
			score = MAX(0.0, MIN(1.0, score + ?)),
			positive_count = positive_count + ?,
			negative_count = negative_count + ?,
			updated_at = ?`,
		domain, topic, delta, posInc, negInc, now,
		delta, posInc, negInc, now)
	if err != nil {
		return 0, fmt.Errorf("failed to update source quality: %w", err)
	}

	var score float64
	err = s.db.QueryRowContext(ctx,
		`SELECT score FROM source_quality WHERE domain = ? AND topic = ?`,
		domain, topic).Scan(&score)
	if err != nil {
		return 0, fmt.Errorf("failed to read source quality: %w", err)
	}
	return score, nil
}

// GetSourceQuality returns the learned score for a (domain, topic) pair and
// whether one exists.
func (s *Store) GetSourceQuality(ctx context.Context, domain, topic string) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var score float64
	err := s.db.QueryRowContext(ctx,
		`SELECT score FROM source_quality WHERE domain = ? AND topic = ?`,
		domain, topic).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read source quality: %w", err)
	}
	return score, true, nil
}

// GetReliableSources lists the best-scored sources for a topic, including
// topic-agnostic entries, highest score first.
func (s *Store) GetReliableSources(ctx context.Context, topic string, limit int) ([]models.ReliableSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT domain, topic, score, positive_count, negative_count
		FROM source_quality
		WHERE topic = ? OR topic = ''
		ORDER BY score DESC, positive_count DESC
		LIMIT ?`, topic, positiveLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list reliable sources: %w", err)
	}
	defer rows.Close()

	var sources []models.ReliableSource
	for rows.Next() {
		var src models.ReliableSource
		if err := rows.Scan(&src.Domain, &src.Topic, &src.Score,
			&src.PositiveCount, &src.NegativeCount); err != nil {
			return nil, fmt.Errorf("failed to scan reliable source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// LogInjection records that a finding was written to the memory sink.
// Idempotent by finding id: a repeat returns false with no new row.
func (s *Store) LogInjection(ctx context.Context, rec models.InjectionRecord) (bool, error) {
	if rec.FindingID == "" {
		return false, fmt.Errorf("injection finding id must not be empty")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO injections (finding_id, session_id, forced, created_at)
		VALUES (?, ?, ?, ?)`,
		rec.FindingID, rec.SessionID, boolToInt(rec.Forced), toMillis(rec.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("failed to log injection: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read injection result: %w", err)
	}
	return inserted > 0, nil
}

// WasInjected reports whether a finding already reached the memory sink.
func (s *Store) WasInjected(ctx context.Context, findingID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM injections WHERE finding_id = ?`, findingID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check injection: %w", err)
	}
	return true, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
