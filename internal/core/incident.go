package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/marcusj/safetrack/internal/jobs"
	"github.com/marcusj/safetrack/internal/metrics"
	"github.com/marcusj/safetrack/internal/model"
	"github.com/marcusj/safetrack/internal/platform"
)

// Enqueuer dispatches post-commit background work. Satisfied by *jobs.Pool.
type Enqueuer interface {
	Enqueue(job jobs.Job) bool
}

var validStatuses = map[string]bool{
	model.IncidentOpen:        true,
	model.IncidentInProgress:  true,
	model.IncidentUnderReview: true,
	model.IncidentResolved:    true,
	model.IncidentClosed:      true,
	model.IncidentCancelled:   true,
}

var validSeverities = map[string]bool{
	model.SeverityLow:      true,
	model.SeverityMedium:   true,
	model.SeverityHigh:     true,
	model.SeverityCritical: true,
}

type IncidentService struct {
	db         DB
	enqueuer   Enqueuer
	enrich     *EnrichmentService
	transcribe *TranscriptionService
	rcaFlow    *RcaWorkflowService
}

func NewIncidentService(db DB, enqueuer Enqueuer, enrich *EnrichmentService, transcribe *TranscriptionService, rcaFlow *RcaWorkflowService) *IncidentService {
	return &IncidentService{db: db, enqueuer: enqueuer, enrich: enrich, transcribe: transcribe, rcaFlow: rcaFlow}
}

// Create persists a new incident and dispatches the post-commit jobs. New
// incidents always start open regardless of what the caller supplied.
func (s *IncidentService) Create(ctx context.Context, inc *model.Incident) error {
	if !inc.ValidCoordinates() {
		return fmt.Errorf("create incident: coordinates out of range: %w", ErrInvalid)
	}
	if !validSeverities[inc.Severity] {
		return fmt.Errorf("create incident: unknown severity %q: %w", inc.Severity, ErrInvalid)
	}

	inc.ID = platform.NewName("inc")
	inc.Status = model.IncidentOpen
	inc.ReportedAt = time.Now()

	_, err := s.db.Exec(ctx,
		`INSERT INTO incidents (id, reported_by, title, description, severity, status,
		                        latitude, longitude, location_description, reported_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		inc.ID, inc.ReportedBy, inc.Title, inc.Description, inc.Severity, inc.Status,
		inc.Latitude, inc.Longitude, inc.LocationDescription, inc.ReportedAt,
	)
	if err != nil {
		return fmt.Errorf("create incident: %w", err)
	}

	for i, url := range inc.ImageURLs {
		_, err = s.db.Exec(ctx,
			`INSERT INTO incident_image_urls (incident_id, position, url) VALUES ($1, $2, $3)`,
			inc.ID, i, url,
		)
		if err != nil {
			return fmt.Errorf("create incident image url: %w", err)
		}
	}
	for i, url := range inc.AudioURLs {
		_, err = s.db.Exec(ctx,
			`INSERT INTO incident_audio_urls (incident_id, position, url) VALUES ($1, $2, $3)`,
			inc.ID, i, url,
		)
		if err != nil {
			return fmt.Errorf("create incident audio url: %w", err)
		}
	}

	metrics.IncidentsCreated.Inc()
	s.dispatchPostCommitJobs(inc)
	return nil
}

// dispatchPostCommitJobs enqueues media enrichment for the incident's media
// plus one RCA draft generation per incident. A full queue is tolerated: the
// reprocess and retry endpoints pick up the slack later.
func (s *IncidentService) dispatchPostCommitJobs(inc *model.Incident) {
	if s.enqueuer == nil {
		return
	}
	id := inc.ID
	if len(inc.ImageURLs) > 0 && s.enrich != nil {
		s.enqueuer.Enqueue(jobs.Job{
			Name: "enrich-incident-images",
			Run: func(ctx context.Context) error {
				return s.enrich.ProcessIncidentImages(ctx, id)
			},
		})
	}
	if len(inc.AudioURLs) > 0 && s.transcribe != nil {
		s.enqueuer.Enqueue(jobs.Job{
			Name: "transcribe-incident-audio",
			Run: func(ctx context.Context) error {
				return s.transcribe.ProcessIncidentAudio(ctx, id)
			},
		})
	}
	if s.rcaFlow != nil {
		s.enqueuer.Enqueue(jobs.Job{
			Name: "generate-rca",
			Run: func(ctx context.Context) error {
				_, err := s.rcaFlow.Generate(ctx, id, false)
				return err
			},
		})
	}
}

const incidentColumns = `id, reported_by, title, description, severity, status,
	latitude, longitude, location_description, assigned_to, reported_at, updated_at, updated_by`

func scanIncident(row interface{ Scan(dest ...any) error }) (model.Incident, error) {
	var inc model.Incident
	err := row.Scan(&inc.ID, &inc.ReportedBy, &inc.Title, &inc.Description, &inc.Severity,
		&inc.Status, &inc.Latitude, &inc.Longitude, &inc.LocationDescription,
		&inc.AssignedTo, &inc.ReportedAt, &inc.UpdatedAt, &inc.UpdatedBy)
	return inc, err
}

// GetByID returns an incident with its media URL lists. Workers can only
// fetch their own incidents; managers see everything.
func (s *IncidentService) GetByID(ctx context.Context, id string, caller *model.User) (*model.Incident, error) {
	inc, err := scanIncident(s.db.QueryRow(ctx,
		`SELECT `+incidentColumns+` FROM incidents WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("incident %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get incident: %w", err)
	}

	if caller != nil && caller.Role != model.RoleManager && inc.ReportedBy != caller.ID {
		return nil, fmt.Errorf("incident %s: %w", id, ErrAccessDenied)
	}

	if err := s.loadMediaURLs(ctx, &inc); err != nil {
		return nil, err
	}
	return &inc, nil
}

func (s *IncidentService) loadMediaURLs(ctx context.Context, inc *model.Incident) error {
	imageRows, err := s.db.Query(ctx,
		`SELECT url FROM incident_image_urls WHERE incident_id = $1 ORDER BY position`, inc.ID)
	if err != nil {
		return fmt.Errorf("list incident image urls: %w", err)
	}
	defer imageRows.Close()
	for imageRows.Next() {
		var url string
		if err := imageRows.Scan(&url); err != nil {
			return fmt.Errorf("scan image url: %w", err)
		}
		inc.ImageURLs = append(inc.ImageURLs, url)
	}

	audioRows, err := s.db.Query(ctx,
		`SELECT url FROM incident_audio_urls WHERE incident_id = $1 ORDER BY position`, inc.ID)
	if err != nil {
		return fmt.Errorf("list incident audio urls: %w", err)
	}
	defer audioRows.Close()
	for audioRows.Next() {
		var url string
		if err := audioRows.Scan(&url); err != nil {
			return fmt.Errorf("scan audio url: %w", err)
		}
		inc.AudioURLs = append(inc.AudioURLs, url)
	}
	return nil
}

// IncidentFilters narrows List results.
type IncidentFilters struct {
	Status     string
	Severity   string
	ReportedBy string
}

// List returns incidents newest first with cursor pagination. Workers are
// forced onto their own incidents regardless of the ReportedBy filter.
func (s *IncidentService) List(ctx context.Context, caller *model.User, filters IncidentFilters, limit int, cursor string) ([]model.Incident, bool, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if caller != nil && caller.Role != model.RoleManager {
		filters.ReportedBy = caller.ID
	}

	query := `SELECT ` + incidentColumns + ` FROM incidents`

	var conditions []string
	var args []any
	argN := 1

	if filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argN))
		args = append(args, filters.Status)
		argN++
	}
	if filters.Severity != "" {
		conditions = append(conditions, fmt.Sprintf("severity = $%d", argN))
		args = append(args, filters.Severity)
		argN++
	}
	if filters.ReportedBy != "" {
		conditions = append(conditions, fmt.Sprintf("reported_by = $%d", argN))
		args = append(args, filters.ReportedBy)
		argN++
	}
	if cursor != "" {
		conditions = append(conditions, fmt.Sprintf("reported_at < (SELECT reported_at FROM incidents WHERE id = $%d)", argN))
		args = append(args, cursor)
		argN++
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += fmt.Sprintf(" ORDER BY reported_at DESC LIMIT $%d", argN)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	var incidents []model.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan incident: %w", err)
		}
		incidents = append(incidents, inc)
	}

	hasMore := len(incidents) > limit
	if hasMore {
		incidents = incidents[:limit]
	}
	return incidents, hasMore, nil
}

// UpdateStatus transitions an incident. Manager only; every transition is
// appended to the status history.
func (s *IncidentService) UpdateStatus(ctx context.Context, id, newStatus string, actor *model.User, reason *string) error {
	if actor == nil || actor.Role != model.RoleManager {
		return fmt.Errorf("update incident status: %w", ErrAccessDenied)
	}
	if !validStatuses[newStatus] {
		return fmt.Errorf("update incident status: unknown status %q: %w", newStatus, ErrInvalid)
	}

	var oldStatus string
	err := s.db.QueryRow(ctx, `SELECT status FROM incidents WHERE id = $1`, id).Scan(&oldStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("incident %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("get incident status: %w", err)
	}

	now := time.Now()
	_, err = s.db.Exec(ctx,
		`UPDATE incidents SET status = $1, updated_at = $2, updated_by = $3 WHERE id = $4`,
		newStatus, now, actor.ID, id,
	)
	if err != nil {
		return fmt.Errorf("update incident status: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO incident_status_history (id, incident_id, old_status, new_status, changed_by, changed_at, reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		platform.NewID(), id, oldStatus, newStatus, actor.ID, now, reason,
	)
	if err != nil {
		return fmt.Errorf("create status history: %w", err)
	}
	return nil
}

// Assign sets the assignee. Manager only.
func (s *IncidentService) Assign(ctx context.Context, id, assigneeID string, actor *model.User) error {
	if actor == nil || actor.Role != model.RoleManager {
		return fmt.Errorf("assign incident: %w", ErrAccessDenied)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE incidents SET assigned_to = $1, updated_at = $2, updated_by = $3 WHERE id = $4`,
		assigneeID, time.Now(), actor.ID, id,
	)
	if err != nil {
		return fmt.Errorf("assign incident: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("incident %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListStatusHistory returns an incident's transitions oldest first.
func (s *IncidentService) ListStatusHistory(ctx context.Context, incidentID string) ([]model.StatusHistory, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, incident_id, old_status, new_status, changed_by, changed_at, reason
		 FROM incident_status_history WHERE incident_id = $1 ORDER BY changed_at`, incidentID)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	defer rows.Close()

	var history []model.StatusHistory
	for rows.Next() {
		var h model.StatusHistory
		if err := rows.Scan(&h.ID, &h.IncidentID, &h.OldStatus, &h.NewStatus,
			&h.ChangedBy, &h.ChangedAt, &h.Reason); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		history = append(history, h)
	}
	return history, nil
}
