package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/marcusj/safetrack/internal/llm"
	"github.com/marcusj/safetrack/internal/metrics"
	"github.com/marcusj/safetrack/internal/model"
	"github.com/marcusj/safetrack/internal/rca"
)

// RcaGenerator drafts RCA text from a prompt. Satisfied by *llm.Client.
type RcaGenerator interface {
	GenerateRCA(ctx context.Context, prompt, userKey string) (*llm.Response, error)
	Healthy() bool
	Status() map[string]any
}

// RcaWorkflowService runs the suggestion lifecycle: generate a draft from
// incident data, hold it for manager review, and fold the manager's final
// wording into an RcaReport.
type RcaWorkflowService struct {
	logger      zerolog.Logger
	db          DB
	suggestions *SuggestionService
	reports     *ReportService
	analyses    *AnalysisService
	users       *UserService
	generator   RcaGenerator
}

func NewRcaWorkflowService(logger zerolog.Logger, db DB, suggestions *SuggestionService, reports *ReportService, analyses *AnalysisService, users *UserService, generator RcaGenerator) *RcaWorkflowService {
	return &RcaWorkflowService{
		logger:      logger.With().Str("component", "rca-workflow").Logger(),
		db:          db,
		suggestions: suggestions,
		reports:     reports,
		analyses:    analyses,
		users:       users,
		generator:   generator,
	}
}

// Generate drafts a suggestion for the incident. If one already exists it is
// returned as-is unless force is set, in which case the old row is replaced.
// Generation failures never surface as errors; they are recorded as a failed
// suggestion so a manager can complete the RCA by hand.
func (s *RcaWorkflowService) Generate(ctx context.Context, incidentID string, force bool) (*model.RcaAiSuggestion, error) {
	existing, err := s.suggestions.GetByIncident(ctx, incidentID)
	if err == nil && !force {
		s.logger.Info().Str("incident_id", incidentID).Msg("suggestion already exists, skipping generation")
		return existing, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	inc, err := s.fetchIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if err := s.suggestions.DeleteByIncident(ctx, incidentID); err != nil {
			return nil, err
		}
	}

	start := time.Now()

	analyses, err := s.analyses.ListByIncident(ctx, incidentID)
	if err != nil {
		return s.saveFailed(ctx, incidentID, err)
	}

	category := rca.Categorize(inc, analyses)
	confidence := rca.Confidence(inc, category, analyses)
	s.logger.Info().Str("incident_id", incidentID).Str("category", category).
		Float64("confidence", confidence).Msg("incident categorized")

	reporter, err := s.users.GetByID(ctx, inc.ReportedBy)
	if err != nil {
		return s.saveFailed(ctx, incidentID, err)
	}

	prompt := rca.BuildPrompt(category, inc, analyses, reporter.FullName, reporter.Role)

	resp, err := s.generator.GenerateRCA(ctx, prompt, reporter.Email)
	if err != nil {
		return s.saveFailed(ctx, incidentID, err)
	}

	sections := llm.ParseSections(resp.Content)

	tokens := resp.TokensUsed
	elapsed := time.Since(start).Milliseconds()
	sg := &model.RcaAiSuggestion{
		IncidentID:                incidentID,
		SuggestedFiveWhys:         sections.FiveWhys,
		SuggestedCorrectiveAction: sections.CorrectiveAction,
		SuggestedPreventiveAction: sections.PreventiveAction,
		ConfidenceScore:           confidence,
		IncidentCategory:          category,
		TemplateUsed:              category,
		Model:                     resp.Model,
		TokensUsed:                &tokens,
		ProcessingTimeMs:          &elapsed,
		Status:                    model.RcaGenerated,
	}
	if err := s.suggestions.Insert(ctx, sg); err != nil {
		return nil, err
	}

	metrics.RcaGenerated.WithLabelValues(category).Inc()
	s.logger.Info().Str("incident_id", incidentID).Int64("elapsed_ms", elapsed).
		Msg("RCA suggestion generated")
	return sg, nil
}

// saveFailed records a failed generation so the incident still carries a
// suggestion row that managers can see and retry.
func (s *RcaWorkflowService) saveFailed(ctx context.Context, incidentID string, cause error) (*model.RcaAiSuggestion, error) {
	errType := "unexpected_error"
	msg := "Generation failed: " + cause.Error()
	if isAIError(cause) {
		errType = "ai_error"
		msg = "AI service error: " + cause.Error()
	}
	metrics.RcaFailed.WithLabelValues(errType).Inc()
	s.logger.Error().Err(cause).Str("incident_id", incidentID).Msg("RCA generation failed")

	sg := &model.RcaAiSuggestion{
		IncidentID:                incidentID,
		SuggestedFiveWhys:         "RCA generation failed",
		SuggestedCorrectiveAction: "Please manually complete RCA analysis",
		SuggestedPreventiveAction: "Please manually complete RCA analysis",
		ConfidenceScore:           0,
		IncidentCategory:          model.CategoryGeneralSafety,
		TemplateUsed:              "ERROR",
		Status:                    model.RcaFailed,
		ErrorMessage:              &msg,
	}
	if err := s.suggestions.Insert(ctx, sg); err != nil {
		return nil, err
	}
	return sg, nil
}

func isAIError(err error) bool {
	return errors.Is(err, llm.ErrRateLimited) ||
		errors.Is(err, llm.ErrAuth) ||
		errors.Is(err, llm.ErrBadRequest) ||
		errors.Is(err, llm.ErrUnavailable) ||
		errors.Is(err, llm.ErrGeneration)
}

// GetSuggestion returns an incident's suggestion. Workers only see approved
// drafts; everything else stays manager-only.
func (s *RcaWorkflowService) GetSuggestion(ctx context.Context, incidentID string, caller *model.User) (*model.RcaAiSuggestion, error) {
	sg, err := s.suggestions.GetByIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if caller.Role != model.RoleManager && sg.Status != model.RcaApproved {
		return nil, fmt.Errorf("suggestion for incident %s: %w", incidentID, ErrAccessDenied)
	}
	return sg, nil
}

// MarkReviewed records that a manager has read the draft.
func (s *RcaWorkflowService) MarkReviewed(ctx context.Context, incidentID string, manager *model.User) (*model.RcaAiSuggestion, error) {
	return s.transition(ctx, incidentID, manager, model.RcaReviewed)
}

// MarkApproved endorses the draft as-is, making it visible to the reporter.
func (s *RcaWorkflowService) MarkApproved(ctx context.Context, incidentID string, manager *model.User) (*model.RcaAiSuggestion, error) {
	return s.transition(ctx, incidentID, manager, model.RcaApproved)
}

func (s *RcaWorkflowService) transition(ctx context.Context, incidentID string, manager *model.User, status string) (*model.RcaAiSuggestion, error) {
	if manager.Role != model.RoleManager {
		return nil, fmt.Errorf("suggestion review: %w", ErrAccessDenied)
	}
	sg, err := s.suggestions.GetByIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if err := s.suggestions.UpdateStatus(ctx, sg.ID, sg.Version, status, manager.ID); err != nil {
		return nil, err
	}
	s.logger.Info().Str("incident_id", incidentID).Str("status", status).
		Str("manager_id", manager.ID).Msg("suggestion status updated")
	return s.suggestions.GetByIncident(ctx, incidentID)
}

// Finalize turns the manager's final wording into the incident's RcaReport.
// The suggestion must have been reviewed or approved first. The suggestion
// ends up approved when the manager kept the draft essentially intact, and
// modified when the final text diverges from it.
func (s *RcaWorkflowService) Finalize(ctx context.Context, incidentID string, manager *model.User, fiveWhys, correctiveAction, preventiveAction string) (*model.RcaReport, error) {
	if manager.Role != model.RoleManager {
		return nil, fmt.Errorf("finalize rca: %w", ErrAccessDenied)
	}

	sg, err := s.suggestions.GetByIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if sg.Status != model.RcaReviewed && sg.Status != model.RcaApproved {
		return nil, fmt.Errorf("suggestion for incident %s is %s, not reviewed: %w",
			incidentID, sg.Status, ErrConflict)
	}

	report := &model.RcaReport{
		IncidentID:       incidentID,
		ManagerID:        manager.ID,
		FiveWhys:         fiveWhys,
		CorrectiveAction: correctiveAction,
		PreventiveAction: preventiveAction,
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, err
	}

	status := model.RcaApproved
	if contentModified(sg, fiveWhys, correctiveAction, preventiveAction) {
		status = model.RcaModified
	}
	if err := s.suggestions.UpdateStatus(ctx, sg.ID, sg.Version, status, manager.ID); err != nil {
		return nil, err
	}

	metrics.RcaApproved.WithLabelValues(sg.IncidentCategory).Inc()
	s.logger.Info().Str("incident_id", incidentID).Str("suggestion_status", status).
		Str("manager_id", manager.ID).Msg("final RCA report created")
	return report, nil
}

// contentModified reports whether the manager's final text diverges from the
// draft, judged by average word-set similarity across the three sections.
func contentModified(sg *model.RcaAiSuggestion, fiveWhys, correctiveAction, preventiveAction string) bool {
	avg := (rca.Jaccard(sg.SuggestedFiveWhys, fiveWhys) +
		rca.Jaccard(sg.SuggestedCorrectiveAction, correctiveAction) +
		rca.Jaccard(sg.SuggestedPreventiveAction, preventiveAction)) / 3
	return avg < rca.SimilarityThreshold
}

// Retry regenerates after a failed attempt.
func (s *RcaWorkflowService) Retry(ctx context.Context, incidentID string) (*model.RcaAiSuggestion, error) {
	s.logger.Info().Str("incident_id", incidentID).Msg("retrying RCA generation")
	return s.Generate(ctx, incidentID, true)
}

// PendingReview lists generated suggestions awaiting a manager.
func (s *RcaWorkflowService) PendingReview(ctx context.Context, limit int) ([]model.RcaAiSuggestion, error) {
	return s.suggestions.PendingReview(ctx, limit)
}

// RcaStatistics summarizes suggestion outcomes plus the generator backend
// configuration.
type RcaStatistics struct {
	Suggestions *SuggestionStats `json:"suggestions"`
	SuccessRate float64          `json:"success_rate"`
	Generator   map[string]any   `json:"generator"`
}

func (s *RcaWorkflowService) Statistics(ctx context.Context) (*RcaStatistics, error) {
	stats, err := s.suggestions.Stats(ctx)
	if err != nil {
		return nil, err
	}

	var rate float64
	if stats.Total > 0 {
		succeeded := stats.Total - stats.ByStatus[model.RcaFailed]
		rate = float64(succeeded) / float64(stats.Total) * 100
	}

	return &RcaStatistics{
		Suggestions: stats,
		SuccessRate: rate,
		Generator:   s.generator.Status(),
	}, nil
}

// RcaHealth is the workflow's health snapshot. Unhealthy means the generator
// backend is down or failures are piling up.
type RcaHealth struct {
	GeneratorHealthy   bool  `json:"generator_healthy"`
	RecentFailureCount int64 `json:"recent_failure_count"`
	PendingReviewCount int   `json:"pending_review_count"`
	Healthy            bool  `json:"healthy"`
}

func (s *RcaWorkflowService) Health(ctx context.Context) (*RcaHealth, error) {
	var (
		failures int64
		pending  []model.RcaAiSuggestion
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		failures, err = s.suggestions.CountFailedSince(ctx, time.Now().Add(-24*time.Hour))
		return err
	})
	g.Go(func() error {
		var err error
		pending, err = s.suggestions.PendingReview(ctx, 100)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	generatorHealthy := s.generator.Healthy()
	return &RcaHealth{
		GeneratorHealthy:   generatorHealthy,
		RecentFailureCount: failures,
		PendingReviewCount: len(pending),
		Healthy:            generatorHealthy && failures < 10,
	}, nil
}

func (s *RcaWorkflowService) fetchIncident(ctx context.Context, id string) (*model.Incident, error) {
	inc, err := scanIncident(s.db.QueryRow(ctx,
		`SELECT `+incidentColumns+` FROM incidents WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("incident %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get incident: %w", err)
	}
	return &inc, nil
}
