package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/assistkit/scout/pkg/models"
	"github.com/assistkit/scout/pkg/similarity"
)

const findingColumns = `id, query, summary, key_points, content, domain, depth,
	confidence, session_id, project_path, created_at`

// SaveFinding persists a finding and its ordered sources in one transaction.
// Confidence and source relevance are clamped to [0, 1], key points capped,
// and content truncated to its byte limit. Findings are immutable: saving an
// existing id fails.
func (s *Store) SaveFinding(ctx context.Context, f *models.Finding) error {
	if f.Query == "" {
		return fmt.Errorf("finding query must not be empty")
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	f.Confidence = models.Clamp01(f.Confidence)
	f.Content = models.TruncateContent(f.Content)
	if len(f.KeyPoints) > models.MaxKeyPoints {
		f.KeyPoints = f.KeyPoints[:models.MaxKeyPoints]
	}

	keyPoints, err := json.Marshal(f.KeyPoints)
	if err != nil {
		return fmt.Errorf("failed to encode key points: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO findings (id, query, summary, key_points, content, domain,
				depth, confidence, session_id, project_path, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.ID, f.Query, f.Summary, string(keyPoints), f.Content, f.Domain,
			string(f.Depth), f.Confidence, f.SessionID, f.ProjectPath,
			toMillis(f.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to insert finding: %w", err)
		}

		for i, src := range f.Sources {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO sources (finding_id, position, title, url, snippet, source, relevance, quality)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				f.ID, i, src.Title, src.URL, src.Snippet, src.Source,
				models.Clamp01(src.Relevance), nullFloat(src.Quality))
			if err != nil {
				return fmt.Errorf("failed to insert source %d: %w", i, err)
			}
		}
		return nil
	})
}

// GetFinding fetches one finding with its sources in stored order.
func (s *Store) GetFinding(ctx context.Context, id string) (*models.Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+findingColumns+` FROM findings WHERE id = ?`, id)
	f, err := scanFinding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("finding %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get finding: %w", err)
	}
	if err := s.loadSources(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// GetRecentFindings returns the newest findings, sources included.
func (s *Store) GetRecentFindings(ctx context.Context, limit int) ([]*models.Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+findingColumns+` FROM findings
		ORDER BY created_at DESC
		LIMIT ?`, positiveLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list recent findings: %w", err)
	}

	// The pool holds a single connection, so the rows must be drained and
	// closed before the per-finding source queries run.
	findings, err := collectFindings(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	for _, f := range findings {
		if err := s.loadSources(ctx, f); err != nil {
			return nil, err
		}
	}
	return findings, nil
}

// SearchFindings returns findings whose query, summary, or content contains
// the text, newest first.
func (s *Store) SearchFindings(ctx context.Context, query string, limit int) ([]*models.Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+findingColumns+` FROM findings
		WHERE query LIKE ? OR summary LIKE ? OR content LIKE ?
		ORDER BY created_at DESC
		LIMIT ?`, pattern, pattern, pattern, positiveLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to search findings: %w", err)
	}

	findings, err := collectFindings(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	for _, f := range findings {
		if err := s.loadSources(ctx, f); err != nil {
			return nil, err
		}
	}
	return findings, nil
}

// FindRelatedFindings returns findings related to the query: semantic
// ranking over stored embeddings when an embedder is configured, keyword
// search otherwise. Callers never branch on the mode.
func (s *Store) FindRelatedFindings(ctx context.Context, query string, limit int) ([]*models.Finding, error) {
	if !s.IsVectorReady() {
		return s.SearchFindings(ctx, query, limit)
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		slog.Warn("Embedding failed, falling back to keyword search", "error", err)
		return s.SearchFindings(ctx, query, limit)
	}

	ranked, err := s.rankByCosine(ctx, queryVec, 0)
	if err != nil {
		return nil, err
	}
	if len(ranked) > positiveLimit(limit) {
		ranked = ranked[:positiveLimit(limit)]
	}

	findings := make([]*models.Finding, 0, len(ranked))
	for _, m := range ranked {
		f, err := s.GetFinding(ctx, m.findingID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		findings = append(findings, f)
	}
	return findings, nil
}

// HasRecentSimilarQuery reports whether a finding for a near-duplicate query
// was stored within the window, using keyword similarity. Returns the
// matching stored query when found.
func (s *Store) HasRecentSimilarQuery(ctx context.Context, text string, window time.Duration) (bool, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := toMillis(time.Now().UTC().Add(-window))
	rows, err := s.db.QueryContext(ctx, `
		SELECT query FROM findings
		WHERE created_at >= ?
		ORDER BY created_at DESC`, cutoff)
	if err != nil {
		return false, "", fmt.Errorf("failed to scan recent findings: %w", err)
	}
	defer rows.Close()

	tokens := similarity.Tokens(text)
	for rows.Next() {
		var stored string
		if err := rows.Scan(&stored); err != nil {
			return false, "", fmt.Errorf("failed to scan finding query: %w", err)
		}
		if similarity.Jaccard(tokens, similarity.Tokens(stored)) >= KeywordSimilarityThreshold {
			return true, stored, nil
		}
	}
	return false, "", rows.Err()
}

// HasRecentSimilarQueryVec is the semantic variant of HasRecentSimilarQuery:
// it embeds the text and compares against stored finding embeddings within
// the window. A non-positive threshold takes the default cosine cutoff.
// Unavailable embeddings degrade to the keyword path.
func (s *Store) HasRecentSimilarQueryVec(ctx context.Context, text string, window time.Duration, threshold float64) (bool, float64, string, error) {
	if threshold <= 0 {
		threshold = s.vectorThreshold
	}
	if !s.IsVectorReady() {
		found, query, err := s.HasRecentSimilarQuery(ctx, text, window)
		return found, 0, query, err
	}

	queryVec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		slog.Warn("Embedding failed, falling back to keyword dedup", "error", err)
		found, query, err := s.HasRecentSimilarQuery(ctx, text, window)
		return found, 0, query, err
	}

	ranked, err := s.rankByCosine(ctx, queryVec, window)
	if err != nil {
		return false, 0, "", err
	}
	if len(ranked) == 0 {
		return false, 0, "", nil
	}
	best := ranked[0]
	if best.score >= threshold {
		return true, best.score, best.findingID, nil
	}
	return false, best.score, "", nil
}

// EmbedFinding computes and stores the embedding for a saved finding. The
// embedded text is the query plus summary, the parts semantic dedup compares.
func (s *Store) EmbedFinding(ctx context.Context, f *models.Finding) error {
	if !s.IsVectorReady() {
		return nil
	}
	text := f.Query
	if f.Summary != "" {
		text += "\n" + f.Summary
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed finding: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vectors (finding_id, dims, embedding, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(finding_id) DO UPDATE SET dims = excluded.dims,
			embedding = excluded.embedding, created_at = excluded.created_at`,
		f.ID, len(vec), encodeVector(vec), toMillis(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	return nil
}

// DeleteStalePartialFindings removes partial findings older than the age.
// Their vectors and sources cascade. Used by the retention worker.
func (s *Store) DeleteStalePartialFindings(ctx context.Context, age time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := toMillis(time.Now().UTC().Add(-age))
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM findings
		WHERE confidence <= ? AND created_at < ?`,
		models.PartialConfidenceCeiling, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale partial findings: %w", err)
	}
	return res.RowsAffected()
}

// vectorMatch pairs a finding id with its cosine score against a query.
type vectorMatch struct {
	findingID string
	score     float64
}

// rankByCosine scans stored embeddings and ranks them against the query
// vector, best first. A positive window restricts to recent findings.
func (s *Store) rankByCosine(ctx context.Context, queryVec []float32, window time.Duration) ([]vectorMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := `SELECT v.finding_id, v.embedding FROM vectors v`
	args := []any{}
	if window > 0 {
		q += ` JOIN findings f ON f.id = v.finding_id WHERE f.created_at >= ?`
		args = append(args, toMillis(time.Now().UTC().Add(-window)))
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan embeddings: %w", err)
	}
	defer rows.Close()

	var matches []vectorMatch
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		vec := decodeVector(blob)
		if vec == nil {
			slog.Warn("Skipping corrupt embedding", "finding_id", id, "bytes", len(blob))
			continue
		}
		matches = append(matches, vectorMatch{findingID: id, score: similarity.Cosine(queryVec, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	return matches, nil
}

func (s *Store) loadSources(ctx context.Context, f *models.Finding) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT title, url, snippet, source, relevance, quality
		FROM sources WHERE finding_id = ?
		ORDER BY position ASC`, f.ID)
	if err != nil {
		return fmt.Errorf("failed to load sources: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var src models.Source
		var quality sql.NullFloat64
		if err := rows.Scan(&src.Title, &src.URL, &src.Snippet, &src.Source,
			&src.Relevance, &quality); err != nil {
			return fmt.Errorf("failed to scan source: %w", err)
		}
		if quality.Valid {
			q := quality.Float64
			src.Quality = &q
		}
		f.Sources = append(f.Sources, src)
	}
	return rows.Err()
}

func scanFinding(row rowScanner) (*models.Finding, error) {
	var (
		f         models.Finding
		keyPoints string
		depth     string
		createdAt int64
	)
	err := row.Scan(&f.ID, &f.Query, &f.Summary, &keyPoints, &f.Content,
		&f.Domain, &depth, &f.Confidence, &f.SessionID, &f.ProjectPath, &createdAt)
	if err != nil {
		return nil, err
	}
	if keyPoints != "" {
		if err := json.Unmarshal([]byte(keyPoints), &f.KeyPoints); err != nil {
			// A corrupt key_points column loses the bullets, not the finding.
			slog.Warn("Dropping unreadable key points", "finding_id", f.ID, "error", err)
			f.KeyPoints = nil
		}
	}
	f.Depth = models.Depth(depth)
	f.CreatedAt = fromMillis(createdAt)
	return &f, nil
}

func collectFindings(rows *sql.Rows) ([]*models.Finding, error) {
	var findings []*models.Finding
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
