/**
 * Storage Manager for the Bill Chart Worker
 *
 * Coordinates storage operations across PostgreSQL (jobs and charts) and
 * Qdrant (usage profile vectors). A chart set is written to Qdrant first and
 * the vectors are removed again if the PostgreSQL transaction fails.
 */

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/adverant/nexus/billchart-worker/internal/chart"
)

// StorageManager coordinates PostgreSQL and Qdrant operations
type StorageManager struct {
	postgres *PostgresClient
	qdrant   *QdrantClient // nil when vector search is disabled
}

// ChartRecord is one extracted chart ready to persist
type ChartRecord struct {
	CandidateID int
	Chart       chart.UsageChartData
	Bounds      map[string]int
	Profile     []float32 // nil when the chart has no usable profile
}

// ChartSetInput represents all charts extracted from one job
type ChartSetInput struct {
	JobID    string
	UserID   string
	Filename string
	Charts   []ChartRecord
}

// ChartSetOutput reports the stored chart IDs, in input order
type ChartSetOutput struct {
	ChartIDs        []string
	ProfilesIndexed int
	CreatedAt       time.Time
}

// StoredChart is a chart read back from PostgreSQL
type StoredChart struct {
	ID            string               `json:"id"`
	JobID         string               `json:"jobId"`
	CandidateID   int                  `json:"candidateId"`
	Chart         chart.UsageChartData `json:"chart"`
	Bounds        map[string]int       `json:"bounds"`
	QdrantPointID string               `json:"qdrantPointId,omitempty"`
}

// SimilarChart is a search hit with its cosine similarity to the query chart
type SimilarChart struct {
	StoredChart
	SimilarityScore float32 `json:"similarityScore"`
}

// NewStorageManager creates a new storage manager. An empty qdrantAddress
// disables usage profile indexing and similarity search.
func NewStorageManager(postgresURL string, qdrantAddress string, qdrantCollection string, profileDimensions int) (*StorageManager, error) {
	postgres, err := NewPostgresClient(postgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := postgres.EnsureSchema(ctx); err != nil {
		postgres.Close()
		return nil, err
	}

	sm := &StorageManager{postgres: postgres}
	if qdrantAddress == "" {
		return sm, nil
	}

	qdrant, err := NewQdrantClient(qdrantAddress, qdrantCollection, profileDimensions)
	if err != nil {
		postgres.Close()
		return nil, fmt.Errorf("failed to initialize Qdrant client: %w", err)
	}
	sm.qdrant = qdrant

	return sm, nil
}

// VectorSearchEnabled reports whether usage profiles are indexed
func (sm *StorageManager) VectorSearchEnabled() bool {
	return sm.qdrant != nil
}

// StoreCharts stores the charts of one job across Qdrant and PostgreSQL
func (sm *StorageManager) StoreCharts(ctx context.Context, input *ChartSetInput) (*ChartSetOutput, error) {
	if input == nil {
		return nil, fmt.Errorf("input is required")
	}

	if input.JobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	rows, points, err := buildChartRows(input, sm.qdrant != nil)
	if err != nil {
		return nil, err
	}

	// Step 1: Store profile vectors first (fails fast if a vector is invalid)
	var written []string
	for _, point := range points {
		if err := sm.qdrant.UpsertVector(ctx, point); err != nil {
			sm.rollbackVectors(written)
			return nil, fmt.Errorf("failed to store usage profile in Qdrant: %w", err)
		}
		written = append(written, point.ID)
	}

	// Step 2: Store chart rows
	if err := sm.postgres.insertCharts(ctx, rows); err != nil {
		sm.rollbackVectors(written)
		return nil, fmt.Errorf("failed to store charts in PostgreSQL: %w", err)
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}

	return &ChartSetOutput{
		ChartIDs:        ids,
		ProfilesIndexed: len(points),
		CreatedAt:       time.Now(),
	}, nil
}

// buildChartRows assigns IDs and serializes each chart. Profile points are
// only produced when withVectors is set.
func buildChartRows(input *ChartSetInput, withVectors bool) ([]chartRow, []*VectorPoint, error) {
	now := time.Now().Unix()
	rows := make([]chartRow, 0, len(input.Charts))
	var points []*VectorPoint

	for i, rec := range input.Charts {
		data, err := json.Marshal(rec.Chart)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal chart %d: %w", i, err)
		}

		bounds, err := json.Marshal(rec.Bounds)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal chart bounds %d: %w", i, err)
		}

		months := make([]string, len(rec.Chart.Data))
		for j, m := range rec.Chart.Data {
			months[j] = m.Month
		}

		row := chartRow{
			ID:          uuid.New().String(),
			JobID:       input.JobID,
			CandidateID: rec.CandidateID,
			ChartIndex:  i,
			Title:       rec.Chart.Title,
			Unit:        rec.Chart.Unit,
			Months:      months,
			Data:        data,
			Bounds:      bounds,
		}

		if withVectors && len(rec.Profile) > 0 {
			row.QdrantPointID = uuid.New().String()
			points = append(points, &VectorPoint{
				ID:     row.QdrantPointID,
				Vector: rec.Profile,
				Metadata: map[string]interface{}{
					"chart_id": row.ID,
					"job_id":   input.JobID,
					"user_id":  input.UserID,
					"title":    rec.Chart.Title,
					"unit":     rec.Chart.Unit,
				},
				Timestamp: now,
			})
		}

		rows = append(rows, row)
	}

	return rows, points, nil
}

func (sm *StorageManager) rollbackVectors(ids []string) {
	if len(ids) == 0 {
		return
	}
	// The caller's context may already be done
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, id := range ids {
		sm.qdrant.DeleteVector(ctx, id)
	}
}

// GetChart retrieves a stored chart
func (sm *StorageManager) GetChart(ctx context.Context, chartID string) (*StoredChart, error) {
	row, err := sm.postgres.getChart(ctx, chartID)
	if err != nil {
		return nil, err
	}
	return storedChart(row)
}

func storedChart(row *chartRow) (*StoredChart, error) {
	sc := &StoredChart{
		ID:            row.ID,
		JobID:         row.JobID,
		CandidateID:   row.CandidateID,
		QdrantPointID: row.QdrantPointID,
	}
	if err := json.Unmarshal(row.Data, &sc.Chart); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chart %s: %w", row.ID, err)
	}
	if err := json.Unmarshal(row.Bounds, &sc.Bounds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bounds of chart %s: %w", row.ID, err)
	}
	return sc, nil
}

// SearchSimilarCharts finds charts whose usage profile is closest to the given chart's
func (sm *StorageManager) SearchSimilarCharts(ctx context.Context, chartID string, limit int) ([]*SimilarChart, error) {
	if sm.qdrant == nil {
		return nil, fmt.Errorf("vector search is not configured")
	}

	if limit <= 0 {
		limit = 10
	}

	source, err := sm.postgres.getChart(ctx, chartID)
	if err != nil {
		return nil, err
	}
	if source.QdrantPointID == "" {
		return nil, fmt.Errorf("chart %s has no usage profile", chartID)
	}

	point, err := sm.qdrant.GetVector(ctx, source.QdrantPointID)
	if err != nil {
		return nil, fmt.Errorf("failed to get usage profile from Qdrant: %w", err)
	}

	// One extra hit, the query chart matches itself
	hits, err := sm.qdrant.SearchVectors(ctx, point.Vector, limit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to search usage profiles: %w", err)
	}

	results := make([]*SimilarChart, 0, limit)
	for _, hit := range hits {
		if hit.ID == source.QdrantPointID || len(results) == limit {
			continue
		}

		id, ok := hit.Metadata["chart_id"].(string)
		if !ok {
			continue
		}

		row, err := sm.postgres.getChart(ctx, id)
		if err != nil {
			continue // Skip if chart row was removed
		}

		sc, err := storedChart(row)
		if err != nil {
			continue
		}

		results = append(results, &SimilarChart{
			StoredChart:     *sc,
			SimilarityScore: hit.Score,
		})
	}

	return results, nil
}

// UpdateJobStatus updates job status in PostgreSQL
func (sm *StorageManager) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	return sm.postgres.UpdateJobStatus(ctx, update)
}

// GetJobByID retrieves job by ID
func (sm *StorageManager) GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error) {
	return sm.postgres.GetJobByID(ctx, jobID)
}

// GetStats returns statistics from both systems
func (sm *StorageManager) GetStats(ctx context.Context) (map[string]interface{}, error) {
	pgStats := sm.postgres.GetStats()

	stats := map[string]interface{}{
		"postgres": map[string]interface{}{
			"max_open_connections": pgStats.MaxOpenConnections,
			"open_connections":     pgStats.OpenConnections,
			"in_use":               pgStats.InUse,
			"idle":                 pgStats.Idle,
			"wait_count":           pgStats.WaitCount,
			"wait_duration":        pgStats.WaitDuration.String(),
		},
	}

	if sm.qdrant != nil {
		qdrantStats, err := sm.qdrant.GetCollectionInfo(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get Qdrant stats: %w", err)
		}
		stats["qdrant"] = qdrantStats
	}

	return stats, nil
}

// Close closes all connections
func (sm *StorageManager) Close() error {
	var pgErr, qdErr error

	if sm.postgres != nil {
		pgErr = sm.postgres.Close()
	}

	if sm.qdrant != nil {
		qdErr = sm.qdrant.Close()
	}

	if pgErr != nil {
		return fmt.Errorf("failed to close PostgreSQL: %w", pgErr)
	}

	if qdErr != nil {
		return fmt.Errorf("failed to close Qdrant: %w", qdErr)
	}

	return nil
}

var (
	nullEscape    = regexp.MustCompile(`\\u0000`)
	controlEscape = regexp.MustCompile(`\\u00[01][0-9a-fA-F]`)
)

// sanitizeJSONForPostgres removes escape sequences PostgreSQL JSONB rejects.
// \u0000 is dropped, other control character escapes become a space.
// OCR text can carry stray control characters into titles and units.
func sanitizeJSONForPostgres(jsonBytes []byte) []byte {
	result := nullEscape.ReplaceAll(jsonBytes, []byte{})
	return controlEscape.ReplaceAll(result, []byte(" "))
}
