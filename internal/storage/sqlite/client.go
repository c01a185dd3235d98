package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/reviewlens/backend/internal/storage/models"
	"github.com/reviewlens/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reviews (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		short_description TEXT,
		notes TEXT,
		feedback TEXT,
		score INTEGER,
		categories TEXT,
		graded_at INTEGER,
		search_text TEXT NOT NULL DEFAULT '',
		embedding TEXT,
		embedding_stale INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reviews_agent ON reviews(agent_id);
	CREATE INDEX IF NOT EXISTS idx_reviews_graded ON reviews(graded_at);
	CREATE INDEX IF NOT EXISTS idx_reviews_stale ON reviews(embedding_stale);

	CREATE TABLE IF NOT EXISTS agent_issues (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		review_id TEXT NOT NULL,
		summary TEXT NOT NULL,
		resolved INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_issues_agent ON agent_issues(agent_id);

	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		team TEXT,
		active INTEGER NOT NULL DEFAULT 1
	);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// CreateReview inserts a new review. The embedding starts absent and stale;
// searchText must be the already-normalized, lowercased content text.
func (c *Client) CreateReview(rec *models.ReviewRecord, searchText string) error {
	categoriesJSON, _ := json.Marshal(rec.Categories)

	query := `
		INSERT INTO reviews (id, agent_id, short_description, notes, feedback, score,
			categories, graded_at, search_text, embedding_stale, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		rec.ID,
		rec.AgentID,
		rec.ShortDescription,
		rec.Notes,
		rec.Feedback,
		nullableInt(rec.Score),
		string(categoriesJSON),
		nullableTime(rec.GradedAt),
		searchText,
		rec.CreatedAt.Unix(),
		rec.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}

	logger.Debug("Review inserted", zap.String("review_id", rec.ID), zap.String("agent_id", rec.AgentID))
	return nil
}

// UpdateReview rewrites a review's editable fields. When the normalized
// content text differs from what is stored, the embedding is marked stale;
// the stored vector itself is left in place until the next backfill.
func (c *Client) UpdateReview(rec *models.ReviewRecord, searchText string) error {
	var existingSearchText string
	err := c.db.QueryRow(`SELECT search_text FROM reviews WHERE id = ?`, rec.ID).Scan(&existingSearchText)
	if err != nil {
		return fmt.Errorf("failed to load review for update: %w", err)
	}

	categoriesJSON, _ := json.Marshal(rec.Categories)

	query := `
		UPDATE reviews SET
			agent_id = ?,
			short_description = ?,
			notes = ?,
			feedback = ?,
			score = ?,
			categories = ?,
			graded_at = ?,
			search_text = ?,
			embedding_stale = CASE WHEN ? THEN 1 ELSE embedding_stale END,
			updated_at = ?
		WHERE id = ?
	`

	contentChanged := existingSearchText != searchText

	_, err = c.db.Exec(
		query,
		rec.AgentID,
		rec.ShortDescription,
		rec.Notes,
		rec.Feedback,
		nullableInt(rec.Score),
		string(categoriesJSON),
		nullableTime(rec.GradedAt),
		searchText,
		contentChanged,
		time.Now().Unix(),
		rec.ID,
	)

	if err != nil {
		return fmt.Errorf("failed to update review: %w", err)
	}

	if contentChanged {
		logger.Debug("Review content changed, embedding marked stale", zap.String("review_id", rec.ID))
	}

	return nil
}

const reviewColumns = `id, agent_id, short_description, notes, feedback, score,
	categories, graded_at, embedding_stale, created_at, updated_at`

// GetReview loads one review. The embedding column is normally projected out;
// pass withEmbedding to retrieve it.
func (c *Client) GetReview(id string, withEmbedding bool) (*models.ReviewRecord, error) {
	cols := reviewColumns
	if withEmbedding {
		cols += ", embedding"
	}

	row := c.db.QueryRow(fmt.Sprintf(`SELECT %s FROM reviews WHERE id = ?`, cols), id)
	rec, err := scanReview(row, withEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return rec, nil
}

// StoreEmbedding writes a freshly computed vector and clears the stale flag.
func (c *Client) StoreEmbedding(reviewID string, vector []float32) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	_, err = c.db.Exec(
		`UPDATE reviews SET embedding = ?, embedding_stale = 0, updated_at = ? WHERE id = ?`,
		string(data),
		time.Now().Unix(),
		reviewID,
	)
	if err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}

	return nil
}

// SelectBackfillCandidates returns graded reviews within the window that need
// an embedding. force selects the entire eligible population regardless of
// freshness; otherwise only absent-or-stale embeddings qualify. Records with
// no indexable text are excluded up front.
func (c *Client) SelectBackfillCandidates(since time.Time, force bool) ([]models.ReviewRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM reviews
		WHERE graded_at IS NOT NULL AND graded_at >= ?
		  AND search_text != ''`, reviewColumns)

	if !force {
		query += ` AND (embedding IS NULL OR embedding = '' OR embedding_stale = 1)`
	}
	query += ` ORDER BY graded_at ASC`

	rows, err := c.db.Query(query, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to select backfill candidates: %w", err)
	}
	defer rows.Close()

	return collectReviews(rows, false)
}

// KeywordHit pairs a review id with its indexed text so the caller can score
// token coverage.
type KeywordHit struct {
	ID         string
	SearchText string
}

// SearchByTokens returns reviews whose indexed text contains any of the
// tokens, capped at rawCap candidates. Tokens must already be lowercased;
// matching is plain substring containment.
func (c *Client) SearchByTokens(tokens []string, excludeIDs []string, rawCap int) ([]KeywordHit, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	args := make([]interface{}, 0, len(tokens)+len(excludeIDs)+1)

	sb.WriteString(`SELECT id, search_text FROM reviews WHERE (`)
	for i, tok := range tokens {
		if i > 0 {
			sb.WriteString(" OR ")
		}
		sb.WriteString("instr(search_text, ?) > 0")
		args = append(args, tok)
	}
	sb.WriteString(")")

	if len(excludeIDs) > 0 {
		sb.WriteString(" AND id NOT IN (" + placeholders(len(excludeIDs)) + ")")
		for _, id := range excludeIDs {
			args = append(args, id)
		}
	}

	sb.WriteString(" LIMIT ?")
	args = append(args, rawCap)

	rows, err := c.db.Query(sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search by tokens: %w", err)
	}
	defer rows.Close()

	var hits []KeywordHit
	for rows.Next() {
		var h KeywordHit
		if err := rows.Scan(&h.ID, &h.SearchText); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		hits = append(hits, h)
	}

	return hits, rows.Err()
}

// EmbeddingRow is a review id with its stored vector.
type EmbeddingRow struct {
	ID     string
	Vector []float32
}

// FreshEmbeddings returns the candidate pool for vector search: reviews whose
// embedding is present and not stale, minus the excluded ids.
func (c *Client) FreshEmbeddings(excludeIDs []string, cap int) ([]EmbeddingRow, error) {
	query := `SELECT id, embedding FROM reviews
		WHERE embedding IS NOT NULL AND embedding != '' AND embedding_stale = 0`

	args := make([]interface{}, 0, len(excludeIDs)+1)
	if len(excludeIDs) > 0 {
		query += " AND id NOT IN (" + placeholders(len(excludeIDs)) + ")"
		for _, id := range excludeIDs {
			args = append(args, id)
		}
	}
	query += " LIMIT ?"
	args = append(args, cap)

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}
	defer rows.Close()

	var out []EmbeddingRow
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		var vec []float32
		if err := json.Unmarshal([]byte(raw), &vec); err != nil {
			logger.Warn("Skipping undecodable stored embedding", zap.String("review_id", id), zap.Error(err))
			continue
		}
		out = append(out, EmbeddingRow{ID: id, Vector: vec})
	}

	return out, rows.Err()
}

// GradedReviewsInWindow returns an agent's graded reviews since the given
// time, oldest first, with stored embeddings projected in so the analysis can
// reuse fresh vectors.
func (c *Client) GradedReviewsInWindow(agentID string, since time.Time) ([]models.ReviewRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s, embedding FROM reviews
		WHERE agent_id = ? AND graded_at IS NOT NULL AND graded_at >= ? AND score IS NOT NULL
		ORDER BY graded_at ASC`, reviewColumns)

	rows, err := c.db.Query(query, agentID, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to load graded reviews: %w", err)
	}
	defer rows.Close()

	return collectReviews(rows, true)
}

// ReplaceAgentIssues swaps an agent's entire issue list in one transaction.
func (c *Client) ReplaceAgentIssues(agentID string, entries []models.AgentIssueEntry) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM agent_issues WHERE agent_id = ?`, agentID); err != nil {
		return fmt.Errorf("failed to clear agent issues: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO agent_issues (id, agent_id, review_id, summary, resolved, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		resolved := 0
		if e.Resolved {
			resolved = 1
		}
		if _, err := stmt.Exec(e.ID, e.AgentID, e.ReviewID, e.Summary, resolved, e.CreatedAt.Unix()); err != nil {
			return fmt.Errorf("failed to insert issue entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit issue replacement: %w", err)
	}

	logger.Info("Agent issues replaced",
		zap.String("agent_id", agentID),
		zap.Int("entries", len(entries)),
	)

	return nil
}

func (c *Client) ListAgentIssues(agentID string) ([]models.AgentIssueEntry, error) {
	rows, err := c.db.Query(
		`SELECT id, agent_id, review_id, summary, resolved, created_at
		 FROM agent_issues WHERE agent_id = ? ORDER BY created_at DESC`,
		agentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list agent issues: %w", err)
	}
	defer rows.Close()

	var entries []models.AgentIssueEntry
	for rows.Next() {
		var e models.AgentIssueEntry
		var resolved int
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.AgentID, &e.ReviewID, &e.Summary, &resolved, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		e.Resolved = resolved == 1
		e.CreatedAt = time.Unix(createdAt, 0)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (c *Client) UpsertAgent(agent *models.Agent) error {
	active := 0
	if agent.Active {
		active = 1
	}

	_, err := c.db.Exec(
		`INSERT INTO agents (id, display_name, team, active) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name,
			team = excluded.team, active = excluded.active`,
		agent.ID, agent.DisplayName, agent.Team, active,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert agent: %w", err)
	}
	return nil
}

func (c *Client) GetAgent(id string) (*models.Agent, error) {
	var a models.Agent
	var active int
	err := c.db.QueryRow(`SELECT id, display_name, team, active FROM agents WHERE id = ?`, id).
		Scan(&a.ID, &a.DisplayName, &a.Team, &active)
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	a.Active = active == 1
	return &a, nil
}

func (c *Client) ListActiveAgents() ([]models.Agent, error) {
	rows, err := c.db.Query(`SELECT id, display_name, team, active FROM agents WHERE active = 1 ORDER BY display_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var agents []models.Agent
	for rows.Next() {
		var a models.Agent
		var active int
		if err := rows.Scan(&a.ID, &a.DisplayName, &a.Team, &active); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		a.Active = active == 1
		agents = append(agents, a)
	}

	return agents, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReview(row rowScanner, withEmbedding bool) (*models.ReviewRecord, error) {
	var rec models.ReviewRecord
	var score sql.NullInt64
	var gradedAt sql.NullInt64
	var categoriesJSON sql.NullString
	var shortDesc, notes, feedback sql.NullString
	var stale int
	var createdAt, updatedAt int64
	var embeddingJSON sql.NullString

	dest := []interface{}{
		&rec.ID, &rec.AgentID, &shortDesc, &notes, &feedback, &score,
		&categoriesJSON, &gradedAt, &stale, &createdAt, &updatedAt,
	}
	if withEmbedding {
		dest = append(dest, &embeddingJSON)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	rec.ShortDescription = shortDesc.String
	rec.Notes = notes.String
	rec.Feedback = feedback.String
	if score.Valid {
		v := int(score.Int64)
		rec.Score = &v
	}
	if gradedAt.Valid {
		rec.GradedAt = time.Unix(gradedAt.Int64, 0)
	}
	if categoriesJSON.Valid && categoriesJSON.String != "" {
		json.Unmarshal([]byte(categoriesJSON.String), &rec.Categories)
	}
	rec.EmbeddingStale = stale == 1
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.UpdatedAt = time.Unix(updatedAt, 0)

	if withEmbedding && embeddingJSON.Valid && embeddingJSON.String != "" {
		if err := json.Unmarshal([]byte(embeddingJSON.String), &rec.Embedding); err != nil {
			logger.Warn("Undecodable stored embedding", zap.String("review_id", rec.ID), zap.Error(err))
			rec.Embedding = nil
		}
	}

	return &rec, nil
}

func collectReviews(rows *sql.Rows, withEmbedding bool) ([]models.ReviewRecord, error) {
	var out []models.ReviewRecord
	for rows.Next() {
		rec, err := scanReview(rows, withEmbedding)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}
