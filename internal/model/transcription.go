package model

import "time"

// VoiceTranscription mirrors ImageAnalysis for audio attachments: one row per
// (incident_id, audio_url), terminal success or terminal failure.
type VoiceTranscription struct {
	ID                string     `json:"id" db:"id"`
	IncidentID        string     `json:"incident_id" db:"incident_id"`
	AudioURL          string     `json:"audio_url" db:"audio_url"`
	TranscriptionText *string    `json:"transcription_text,omitempty" db:"transcription_text"`
	ConfidenceScore   *float64   `json:"confidence_score,omitempty" db:"confidence_score"`
	Processed         bool       `json:"processed" db:"processed"`
	ProcessedAt       *time.Time `json:"processed_at,omitempty" db:"processed_at"`
	ErrorMessage      *string    `json:"error_message,omitempty" db:"error_message"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}
