package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/marcusj/safetrack/internal/model"
	"github.com/marcusj/safetrack/internal/platform"
)

type AnalysisService struct {
	db DB
}

func NewAnalysisService(db DB) *AnalysisService {
	return &AnalysisService{db: db}
}

const analysisColumns = `id, incident_id, image_url, tags, all_labels, text_detected,
	confidence_score, processed, processed_at, error_message`

func scanAnalysis(row interface{ Scan(dest ...any) error }) (model.ImageAnalysis, error) {
	var a model.ImageAnalysis
	err := row.Scan(&a.ID, &a.IncidentID, &a.ImageURL, &a.Tags, &a.AllLabels,
		&a.TextDetected, &a.ConfidenceScore, &a.Processed, &a.ProcessedAt, &a.ErrorMessage)
	return a, err
}

// Create inserts a terminal analysis row. The (incident_id, image_url) unique
// constraint rejects duplicates, reported as ErrConflict.
func (s *AnalysisService) Create(ctx context.Context, a *model.ImageAnalysis) error {
	a.ID = platform.NewID()

	_, err := s.db.Exec(ctx,
		`INSERT INTO image_analysis (id, incident_id, image_url, tags, all_labels,
		                             text_detected, confidence_score, processed, processed_at, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.IncidentID, a.ImageURL, a.Tags, a.AllLabels,
		a.TextDetected, a.ConfidenceScore, a.Processed, a.ProcessedAt, a.ErrorMessage,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("analysis for %s: %w", a.ImageURL, ErrConflict)
		}
		return fmt.Errorf("create image analysis: %w", err)
	}
	return nil
}

// GetByIncidentAndURL returns the analysis row for one image of an incident.
func (s *AnalysisService) GetByIncidentAndURL(ctx context.Context, incidentID, imageURL string) (*model.ImageAnalysis, error) {
	a, err := scanAnalysis(s.db.QueryRow(ctx,
		`SELECT `+analysisColumns+` FROM image_analysis WHERE incident_id = $1 AND image_url = $2`,
		incidentID, imageURL))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("analysis for %s: %w", imageURL, ErrNotFound)
		}
		return nil, fmt.Errorf("get image analysis: %w", err)
	}
	return &a, nil
}

// ListByIncident returns all analyses for an incident, newest first.
func (s *AnalysisService) ListByIncident(ctx context.Context, incidentID string) ([]model.ImageAnalysis, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+analysisColumns+` FROM image_analysis
		 WHERE incident_id = $1 ORDER BY processed_at DESC`, incidentID)
	if err != nil {
		return nil, fmt.Errorf("list image analyses: %w", err)
	}
	defer rows.Close()

	var analyses []model.ImageAnalysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan image analysis: %w", err)
		}
		analyses = append(analyses, a)
	}
	return analyses, nil
}

// ListFailed returns failed analyses for an incident, oldest first, so
// reprocessing retries them in original order.
func (s *AnalysisService) ListFailed(ctx context.Context, incidentID string) ([]model.ImageAnalysis, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+analysisColumns+` FROM image_analysis
		 WHERE incident_id = $1 AND processed = FALSE ORDER BY processed_at`, incidentID)
	if err != nil {
		return nil, fmt.Errorf("list failed analyses: %w", err)
	}
	defer rows.Close()

	var analyses []model.ImageAnalysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan image analysis: %w", err)
		}
		analyses = append(analyses, a)
	}
	return analyses, nil
}

// Delete removes an analysis row so the image can be reprocessed.
func (s *AnalysisService) Delete(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM image_analysis WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete image analysis: %w", err)
	}
	return nil
}

// AnalysisStats summarizes processing outcomes for the operations endpoint.
type AnalysisStats struct {
	Total       int64   `json:"total"`
	Processed   int64   `json:"processed"`
	Failed      int64   `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

func (s *AnalysisService) Stats(ctx context.Context) (*AnalysisStats, error) {
	var stats AnalysisStats
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE processed),
		        COUNT(*) FILTER (WHERE NOT processed)
		 FROM image_analysis`,
	).Scan(&stats.Total, &stats.Processed, &stats.Failed)
	if err != nil {
		return nil, fmt.Errorf("image analysis stats: %w", err)
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Processed) / float64(stats.Total) * 100
	}
	return &stats, nil
}
