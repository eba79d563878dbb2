/**
 * PostgreSQL Client for the Bill Chart Worker
 *
 * Handles job status persistence and storage of extracted usage charts.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// JobUpdate represents a job status update
type JobUpdate struct {
	JobID            string
	Status           string
	Progress         int
	Confidence       float64
	ProcessingTimeMs int64
	ChartsExtracted  int
	CandidatesFailed int
	ErrorCode        string
	ErrorMessage     string
	Metadata         map[string]interface{}
}

// chartRow is one usage_charts row
type chartRow struct {
	ID            string
	JobID         string
	CandidateID   int
	ChartIndex    int
	Title         string
	Unit          string
	Months        []string
	Data          []byte
	Bounds        []byte
	QdrantPointID string
}

// sanitizeConfidence rounds confidence to 4 decimal places and clamps it to [0, 1]
// so it always fits the NUMERIC(5,4) column.
func sanitizeConfidence(confidence float64) float64 {
	if confidence < 0.0 {
		return 0.0
	}
	if confidence > 1.0 {
		return 1.0
	}
	return float64(int(confidence*10000+0.5)) / 10000
}

const schemaDDL = `
	CREATE SCHEMA IF NOT EXISTS billchart;

	CREATE TABLE IF NOT EXISTS billchart.extraction_jobs (
		id                 TEXT PRIMARY KEY,
		user_id            TEXT NOT NULL DEFAULT 'anonymous',
		filename           TEXT NOT NULL DEFAULT 'unknown',
		mime_type          TEXT,
		file_size          BIGINT,
		status             TEXT NOT NULL,
		progress           INTEGER NOT NULL DEFAULT 0,
		ocr_confidence     NUMERIC(5,4),
		processing_time_ms BIGINT,
		charts_extracted   INTEGER NOT NULL DEFAULT 0,
		candidates_failed  INTEGER NOT NULL DEFAULT 0,
		error_code         TEXT,
		error_message      TEXT,
		metadata           JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS billchart.usage_charts (
		id              UUID PRIMARY KEY,
		job_id          TEXT NOT NULL REFERENCES billchart.extraction_jobs(id) ON DELETE CASCADE,
		candidate_id    INTEGER NOT NULL,
		chart_index     INTEGER NOT NULL,
		title           TEXT NOT NULL,
		unit            TEXT NOT NULL,
		months          TEXT[] NOT NULL,
		data            JSONB NOT NULL,
		bounds          JSONB NOT NULL,
		qdrant_point_id UUID,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS usage_charts_job_id_idx ON billchart.usage_charts (job_id);
`

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// EnsureSchema creates the billchart schema and tables if they do not exist
func (p *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// UpdateJobStatus upserts the job row. The worker may see a job before any
// API has created it, so the first status update inserts it.
func (p *PostgresClient) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	sanitizedConfidence := sanitizeConfidence(update.Confidence)

	metadataJSON, err := json.Marshal(update.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO billchart.extraction_jobs (
			id, status, progress, ocr_confidence, processing_time_ms,
			charts_extracted, candidates_failed, error_code, error_message,
			metadata, filename, mime_type, file_size, user_id,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, NULLIF($4::NUMERIC(5,4), 0), NULLIF($5, 0),
			$6, $7, NULLIF($8, ''), NULLIF($9, ''),
			COALESCE($10::jsonb, '{}'::jsonb),
			COALESCE(NULLIF($11, ''), 'unknown'), NULLIF($12, ''), NULLIF($13, 0),
			COALESCE(NULLIF($14, ''), 'anonymous'),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			progress = EXCLUDED.progress,
			ocr_confidence = COALESCE(EXCLUDED.ocr_confidence, billchart.extraction_jobs.ocr_confidence),
			processing_time_ms = COALESCE(EXCLUDED.processing_time_ms, billchart.extraction_jobs.processing_time_ms),
			charts_extracted = GREATEST(EXCLUDED.charts_extracted, billchart.extraction_jobs.charts_extracted),
			candidates_failed = GREATEST(EXCLUDED.candidates_failed, billchart.extraction_jobs.candidates_failed),
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			metadata = billchart.extraction_jobs.metadata || EXCLUDED.metadata,
			mime_type = COALESCE(EXCLUDED.mime_type, billchart.extraction_jobs.mime_type),
			file_size = COALESCE(EXCLUDED.file_size, billchart.extraction_jobs.file_size),
			updated_at = NOW()
		RETURNING id
	`

	filename, mimeType, userID, fileSize := jobFields(update.Metadata)

	var returnedID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		update.JobID,            // $1
		update.Status,           // $2
		update.Progress,         // $3
		sanitizedConfidence,     // $4
		update.ProcessingTimeMs, // $5
		update.ChartsExtracted,  // $6
		update.CandidatesFailed, // $7
		update.ErrorCode,        // $8
		update.ErrorMessage,     // $9
		metadataJSON,            // $10
		filename,                // $11
		mimeType,                // $12
		fileSize,                // $13
		userID,                  // $14
	).Scan(&returnedID)

	if err == sql.ErrNoRows {
		return fmt.Errorf("job not found: %s", update.JobID)
	}

	if err != nil {
		return fmt.Errorf("failed to update job status (job=%s, status=%s): %w",
			update.JobID, update.Status, err)
	}

	return nil
}

// jobFields pulls the descriptive job columns out of status metadata
func jobFields(metadata map[string]interface{}) (filename, mimeType, userID string, fileSize int64) {
	if metadata == nil {
		return
	}
	if fn, ok := metadata["filename"].(string); ok {
		filename = fn
	}
	if mt, ok := metadata["mimeType"].(string); ok {
		mimeType = mt
	}
	if uid, ok := metadata["userId"].(string); ok {
		userID = uid
	}
	switch fs := metadata["fileSize"].(type) {
	case int64:
		fileSize = fs
	case int:
		fileSize = int64(fs)
	case float64:
		fileSize = int64(fs)
	}
	return
}

// insertCharts writes all charts of a job in one transaction
func (p *PostgresClient) insertCharts(ctx context.Context, rows []chartRow) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO billchart.usage_charts (
			id, job_id, candidate_id, chart_index, title, unit,
			months, data, bounds, qdrant_point_id, created_at
		) VALUES (
			$1::uuid, $2, $3, $4, $5, $6, $7, $8::jsonb, $9::jsonb,
			CASE WHEN $10 = '' THEN NULL ELSE $10::uuid END, NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare chart insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			r.ID,
			r.JobID,
			r.CandidateID,
			r.ChartIndex,
			r.Title,
			r.Unit,
			pq.Array(r.Months),
			sanitizeJSONForPostgres(r.Data),
			sanitizeJSONForPostgres(r.Bounds),
			r.QdrantPointID,
		); err != nil {
			return fmt.Errorf("failed to insert chart %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit charts: %w", err)
	}
	return nil
}

// getChart retrieves one chart row by ID
func (p *PostgresClient) getChart(ctx context.Context, chartID string) (*chartRow, error) {
	if chartID == "" {
		return nil, fmt.Errorf("chart ID is required")
	}

	query := `
		SELECT
			id, job_id, candidate_id, chart_index, title, unit,
			months, data, bounds, COALESCE(qdrant_point_id::text, '')
		FROM billchart.usage_charts
		WHERE id = $1::uuid
	`

	var row chartRow
	var months pq.StringArray
	err := p.db.QueryRowContext(ctx, query, chartID).Scan(
		&row.ID, &row.JobID, &row.CandidateID, &row.ChartIndex,
		&row.Title, &row.Unit, &months, &row.Data, &row.Bounds,
		&row.QdrantPointID,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chart not found: %s", chartID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get chart: %w", err)
	}

	row.Months = []string(months)
	return &row, nil
}

// GetJobByID retrieves a job by ID
func (p *PostgresClient) GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	query := `
		SELECT
			id, user_id, filename, mime_type, file_size, status, progress,
			ocr_confidence, processing_time_ms, charts_extracted,
			candidates_failed, error_code, error_message, metadata,
			created_at, updated_at
		FROM billchart.extraction_jobs
		WHERE id = $1
	`

	var (
		id, userID, filename, status string
		mimeType                     sql.NullString
		fileSize                     sql.NullInt64
		progress                     int
		confidence                   sql.NullFloat64
		processingTimeMs             sql.NullInt64
		chartsExtracted              int
		candidatesFailed             int
		errorCode, errorMessage      sql.NullString
		metadataJSON                 []byte
		createdAt, updatedAt         time.Time
	)

	err := p.db.QueryRowContext(ctx, query, jobID).Scan(
		&id, &userID, &filename, &mimeType, &fileSize, &status, &progress,
		&confidence, &processingTimeMs, &chartsExtracted,
		&candidatesFailed, &errorCode, &errorMessage, &metadataJSON,
		&createdAt, &updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var metadata map[string]interface{}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	result := map[string]interface{}{
		"id":               id,
		"userId":           userID,
		"filename":         filename,
		"status":           status,
		"progress":         progress,
		"chartsExtracted":  chartsExtracted,
		"candidatesFailed": candidatesFailed,
		"createdAt":        createdAt,
		"updatedAt":        updatedAt,
		"metadata":         metadata,
	}

	if mimeType.Valid {
		result["mimeType"] = mimeType.String
	}
	if fileSize.Valid {
		result["fileSize"] = fileSize.Int64
	}
	if confidence.Valid {
		result["ocrConfidence"] = confidence.Float64
	}
	if processingTimeMs.Valid {
		result["processingTimeMs"] = processingTimeMs.Int64
	}
	if errorCode.Valid {
		result["errorCode"] = errorCode.String
	}
	if errorMessage.Valid {
		result["errorMessage"] = errorMessage.String
	}

	return result, nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresClient) GetStats() sql.DBStats {
	return p.db.Stats()
}
