package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/marcusj/safetrack/internal/model"
	"github.com/marcusj/safetrack/internal/platform"
)

// Transcriber converts an audio recording to text. The production build
// ships a mock; a speech-to-text backend can be dropped in behind this.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (text string, confidence float64, err error)
}

// MockTranscriber returns a fixed transcript, keeping the audio pipeline
// exercisable without a speech backend.
type MockTranscriber struct{}

func (MockTranscriber) Transcribe(ctx context.Context, audio []byte) (string, float64, error) {
	return "Worker reported an unsafe condition near the loading area.", 0.85, nil
}

type TranscriptionService struct {
	logger      zerolog.Logger
	db          DB
	blobs       BlobStore
	transcriber Transcriber
}

func NewTranscriptionService(logger zerolog.Logger, db DB, blobs BlobStore, transcriber Transcriber) *TranscriptionService {
	return &TranscriptionService{
		logger:      logger.With().Str("component", "transcription").Logger(),
		db:          db,
		blobs:       blobs,
		transcriber: transcriber,
	}
}

// ProcessIncidentAudio transcribes each audio attachment that has no row
// yet. Idempotent per recording.
func (s *TranscriptionService) ProcessIncidentAudio(ctx context.Context, incidentID string) error {
	rows, err := s.db.Query(ctx,
		`SELECT url FROM incident_audio_urls WHERE incident_id = $1 ORDER BY position`, incidentID)
	if err != nil {
		return fmt.Errorf("list incident audio urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return fmt.Errorf("scan audio url: %w", err)
		}
		urls = append(urls, url)
	}

	for _, url := range urls {
		if err := s.processOne(ctx, incidentID, url); err != nil {
			s.logger.Error().Err(err).Str("incident_id", incidentID).Str("audio_url", url).
				Msg("audio transcription failed")
		}
	}
	return nil
}

func (s *TranscriptionService) processOne(ctx context.Context, incidentID, audioURL string) error {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM voice_transcriptions WHERE incident_id = $1 AND audio_url = $2)`,
		incidentID, audioURL,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check transcription: %w", err)
	}
	if exists {
		return nil
	}

	vt := &model.VoiceTranscription{
		IncidentID: incidentID,
		AudioURL:   audioURL,
		CreatedAt:  time.Now(),
	}

	audio, err := s.blobs.DownloadBytes(ctx, audioURL)
	if err != nil {
		msg := "Failed to download audio: " + err.Error()
		vt.ErrorMessage = &msg
		return s.insert(ctx, vt)
	}

	text, confidence, err := s.transcriber.Transcribe(ctx, audio)
	if err != nil {
		msg := "Transcription error: " + err.Error()
		vt.ErrorMessage = &msg
		return s.insert(ctx, vt)
	}

	now := time.Now()
	vt.TranscriptionText = &text
	vt.ConfidenceScore = &confidence
	vt.Processed = true
	vt.ProcessedAt = &now
	return s.insert(ctx, vt)
}

func (s *TranscriptionService) insert(ctx context.Context, vt *model.VoiceTranscription) error {
	vt.ID = platform.NewID()
	_, err := s.db.Exec(ctx,
		`INSERT INTO voice_transcriptions (id, incident_id, audio_url, transcription_text,
		                                   confidence_score, processed, processed_at, error_message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		vt.ID, vt.IncidentID, vt.AudioURL, vt.TranscriptionText,
		vt.ConfidenceScore, vt.Processed, vt.ProcessedAt, vt.ErrorMessage, vt.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("insert transcription: %w", err)
	}
	return nil
}

// ListByIncident returns an incident's transcriptions, newest first.
func (s *TranscriptionService) ListByIncident(ctx context.Context, incidentID string) ([]model.VoiceTranscription, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, incident_id, audio_url, transcription_text, confidence_score,
		        processed, processed_at, error_message, created_at
		 FROM voice_transcriptions WHERE incident_id = $1 ORDER BY created_at DESC`, incidentID)
	if err != nil {
		return nil, fmt.Errorf("list transcriptions: %w", err)
	}
	defer rows.Close()

	var transcriptions []model.VoiceTranscription
	for rows.Next() {
		var vt model.VoiceTranscription
		if err := rows.Scan(&vt.ID, &vt.IncidentID, &vt.AudioURL, &vt.TranscriptionText,
			&vt.ConfidenceScore, &vt.Processed, &vt.ProcessedAt, &vt.ErrorMessage, &vt.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transcription: %w", err)
		}
		transcriptions = append(transcriptions, vt)
	}
	return transcriptions, nil
}
