package core

import (
	"github.com/rs/zerolog"

	"github.com/marcusj/safetrack/internal/ratelimit"
)

type Services struct {
	User          *UserService
	Incident      *IncidentService
	Analysis      *AnalysisService
	Suggestion    *SuggestionService
	Report        *ReportService
	Enrichment    *EnrichmentService
	Transcription *TranscriptionService
	RcaFlow       *RcaWorkflowService
}

// Deps carries the external collaborators the services are wired around.
type Deps struct {
	Logger      zerolog.Logger
	Blobs       BlobStore
	Vision      VisionClient
	Generator   RcaGenerator
	Limiter     *ratelimit.Limiter
	Enqueuer    Enqueuer
	Transcriber Transcriber
	BcryptCost  int
}

func NewServices(db DB, deps Deps) *Services {
	if deps.Transcriber == nil {
		deps.Transcriber = MockTranscriber{}
	}

	user := NewUserService(db, deps.BcryptCost)
	analysis := NewAnalysisService(db)
	suggestion := NewSuggestionService(db)
	report := NewReportService(db)

	enrichment := NewEnrichmentService(deps.Logger, analysis, deps.Blobs, deps.Vision, deps.Limiter)
	transcription := NewTranscriptionService(deps.Logger, db, deps.Blobs, deps.Transcriber)
	rcaFlow := NewRcaWorkflowService(deps.Logger, db, suggestion, report, analysis, user, deps.Generator)
	incident := NewIncidentService(db, deps.Enqueuer, enrichment, transcription, rcaFlow)

	return &Services{
		User:          user,
		Incident:      incident,
		Analysis:      analysis,
		Suggestion:    suggestion,
		Report:        report,
		Enrichment:    enrichment,
		Transcription: transcription,
		RcaFlow:       rcaFlow,
	}
}
