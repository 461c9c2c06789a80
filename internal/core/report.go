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

type ReportService struct {
	db DB
}

func NewReportService(db DB) *ReportService {
	return &ReportService{db: db}
}

// Create stores the finalized report. Exactly one report may exist per
// incident; a second attempt returns ErrConflict.
func (s *ReportService) Create(ctx context.Context, r *model.RcaReport) error {
	r.ID = platform.NewID()
	r.CreatedAt = time.Now()

	_, err := s.db.Exec(ctx,
		`INSERT INTO rca_reports (id, incident_id, manager_id, five_whys,
		                          corrective_action, preventive_action, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.IncidentID, r.ManagerID, r.FiveWhys,
		r.CorrectiveAction, r.PreventiveAction, r.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("report for incident %s: %w", r.IncidentID, ErrConflict)
		}
		return fmt.Errorf("create rca report: %w", err)
	}
	return nil
}

// GetByIncident returns an incident's finalized report.
func (s *ReportService) GetByIncident(ctx context.Context, incidentID string) (*model.RcaReport, error) {
	var r model.RcaReport
	err := s.db.QueryRow(ctx,
		`SELECT id, incident_id, manager_id, five_whys, corrective_action, preventive_action, created_at
		 FROM rca_reports WHERE incident_id = $1`, incidentID,
	).Scan(&r.ID, &r.IncidentID, &r.ManagerID, &r.FiveWhys,
		&r.CorrectiveAction, &r.PreventiveAction, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("report for incident %s: %w", incidentID, ErrNotFound)
		}
		return nil, fmt.Errorf("get rca report: %w", err)
	}
	return &r, nil
}

// Exists reports whether an incident already has a finalized report.
func (s *ReportService) Exists(ctx context.Context, incidentID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM rca_reports WHERE incident_id = $1)`, incidentID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check rca report: %w", err)
	}
	return exists, nil
}
