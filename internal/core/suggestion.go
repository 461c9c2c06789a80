package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/marcusj/safetrack/internal/model"
	"github.com/marcusj/safetrack/internal/platform"
)

type SuggestionService struct {
	db DB
}

func NewSuggestionService(db DB) *SuggestionService {
	return &SuggestionService{db: db}
}

const suggestionColumns = `id, version, incident_id, suggested_five_whys, suggested_corrective_action,
	suggested_preventive_action, confidence_score, incident_category, template_used, model,
	tokens_used, processing_time_ms, status, generated_at, reviewed_at, reviewed_by, error_message`

func scanSuggestion(row interface{ Scan(dest ...any) error }) (model.RcaAiSuggestion, error) {
	var sg model.RcaAiSuggestion
	err := row.Scan(&sg.ID, &sg.Version, &sg.IncidentID, &sg.SuggestedFiveWhys,
		&sg.SuggestedCorrectiveAction, &sg.SuggestedPreventiveAction, &sg.ConfidenceScore,
		&sg.IncidentCategory, &sg.TemplateUsed, &sg.Model, &sg.TokensUsed,
		&sg.ProcessingTimeMs, &sg.Status, &sg.GeneratedAt, &sg.ReviewedAt,
		&sg.ReviewedBy, &sg.ErrorMessage)
	return sg, err
}

// GetByIncident returns the single suggestion for an incident, if any.
func (s *SuggestionService) GetByIncident(ctx context.Context, incidentID string) (*model.RcaAiSuggestion, error) {
	sg, err := scanSuggestion(s.db.QueryRow(ctx,
		`SELECT `+suggestionColumns+` FROM rca_ai_suggestions WHERE incident_id = $1`, incidentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("suggestion for incident %s: %w", incidentID, ErrNotFound)
		}
		return nil, fmt.Errorf("get suggestion: %w", err)
	}
	return &sg, nil
}

// Insert stores a new suggestion. The incident_id unique constraint holds
// the one-suggestion-per-incident invariant; regeneration must delete first.
func (s *SuggestionService) Insert(ctx context.Context, sg *model.RcaAiSuggestion) error {
	sg.ID = platform.NewID()
	sg.Version = 0
	if sg.GeneratedAt.IsZero() {
		sg.GeneratedAt = time.Now()
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO rca_ai_suggestions (id, version, incident_id, suggested_five_whys,
		        suggested_corrective_action, suggested_preventive_action, confidence_score,
		        incident_category, template_used, model, tokens_used, processing_time_ms,
		        status, generated_at, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		sg.ID, sg.Version, sg.IncidentID, sg.SuggestedFiveWhys,
		sg.SuggestedCorrectiveAction, sg.SuggestedPreventiveAction, sg.ConfidenceScore,
		sg.IncidentCategory, sg.TemplateUsed, sg.Model, sg.TokensUsed, sg.ProcessingTimeMs,
		sg.Status, sg.GeneratedAt, sg.ErrorMessage,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("suggestion for incident %s: %w", sg.IncidentID, ErrConflict)
		}
		return fmt.Errorf("insert suggestion: %w", err)
	}
	return nil
}

// DeleteByIncident removes an incident's suggestion ahead of regeneration.
func (s *SuggestionService) DeleteByIncident(ctx context.Context, incidentID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM rca_ai_suggestions WHERE incident_id = $1`, incidentID)
	if err != nil {
		return fmt.Errorf("delete suggestion: %w", err)
	}
	return nil
}

// UpdateStatus advances the review state with an optimistic version guard.
// A zero-row update means a concurrent writer won; reported as ErrConflict.
func (s *SuggestionService) UpdateStatus(ctx context.Context, id string, version int64, status, reviewerID string) error {
	now := time.Now()
	tag, err := s.db.Exec(ctx,
		`UPDATE rca_ai_suggestions
		 SET status = $1, reviewed_at = $2, reviewed_by = $3, version = version + 1
		 WHERE id = $4 AND version = $5`,
		status, now, reviewerID, id, version,
	)
	if err != nil {
		return fmt.Errorf("update suggestion status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("suggestion %s version %d: %w", id, version, ErrConflict)
	}
	return nil
}

// PendingReview lists generated suggestions awaiting a manager, oldest first.
func (s *SuggestionService) PendingReview(ctx context.Context, limit int) ([]model.RcaAiSuggestion, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+suggestionColumns+` FROM rca_ai_suggestions
		 WHERE status = $1 ORDER BY generated_at LIMIT $2`,
		model.RcaGenerated, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending suggestions: %w", err)
	}
	defer rows.Close()

	var suggestions []model.RcaAiSuggestion
	for rows.Next() {
		sg, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		suggestions = append(suggestions, sg)
	}
	return suggestions, nil
}

// CountFailedSince counts failed generations after the cutoff; feeds the
// health check.
func (s *SuggestionService) CountFailedSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM rca_ai_suggestions WHERE status = $1 AND generated_at > $2`,
		model.RcaFailed, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count failed suggestions: %w", err)
	}
	return n, nil
}

// SuggestionStats summarizes generation outcomes by status and category.
// The averages cover the trailing 30 days only.
type SuggestionStats struct {
	Total               int64            `json:"total"`
	ByStatus            map[string]int64 `json:"by_status"`
	ByCategory          map[string]int64 `json:"by_category"`
	AvgProcessingTimeMs float64          `json:"avg_processing_time_ms"`
	AvgTokensUsed       float64          `json:"avg_tokens_used"`
}

func (s *SuggestionService) Stats(ctx context.Context) (*SuggestionStats, error) {
	stats := &SuggestionStats{
		ByStatus:   make(map[string]int64),
		ByCategory: make(map[string]int64),
	}

	rows, err := s.db.Query(ctx,
		`SELECT status, incident_category, COUNT(*)
		 FROM rca_ai_suggestions GROUP BY status, incident_category`)
	if err != nil {
		return nil, fmt.Errorf("suggestion stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status, category string
		var count int64
		if err := rows.Scan(&status, &category, &count); err != nil {
			return nil, fmt.Errorf("scan suggestion stats: %w", err)
		}
		stats.Total += count
		stats.ByStatus[status] += count
		stats.ByCategory[category] += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("suggestion stats rows: %w", err)
	}

	err = s.db.QueryRow(ctx,
		`SELECT COALESCE(AVG(processing_time_ms), 0), COALESCE(AVG(tokens_used), 0)
		 FROM rca_ai_suggestions WHERE generated_at > $1`,
		time.Now().AddDate(0, 0, -30),
	).Scan(&stats.AvgProcessingTimeMs, &stats.AvgTokensUsed)
	if err != nil {
		return nil, fmt.Errorf("suggestion stats averages: %w", err)
	}
	return stats, nil
}
