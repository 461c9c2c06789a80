package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/marcusj/safetrack/internal/metrics"
	"github.com/marcusj/safetrack/internal/model"
	"github.com/marcusj/safetrack/internal/ratelimit"
	"github.com/marcusj/safetrack/internal/vision"
)

// BlobStore is the object-storage surface the enrichment pipeline needs.
// Satisfied by *blob.Store.
type BlobStore interface {
	Exists(ctx context.Context, objectURL string) (bool, error)
	DownloadBytes(ctx context.Context, objectURL string) ([]byte, error)
}

// VisionClient analyzes one image. Satisfied by *vision.Client.
type VisionClient interface {
	Analyze(ctx context.Context, imageBytes []byte) *vision.Result
}

// EnrichmentService runs vision analysis over incident images and records
// one terminal analysis row per image.
type EnrichmentService struct {
	logger   zerolog.Logger
	analyses *AnalysisService
	blobs    BlobStore
	vision   VisionClient
	limiter  *ratelimit.Limiter
}

func NewEnrichmentService(logger zerolog.Logger, analyses *AnalysisService, blobs BlobStore, visionClient VisionClient, limiter *ratelimit.Limiter) *EnrichmentService {
	return &EnrichmentService{
		logger:   logger.With().Str("component", "enrichment").Logger(),
		analyses: analyses,
		blobs:    blobs,
		vision:   visionClient,
		limiter:  limiter,
	}
}

// ProcessIncidentImages analyzes every image of the incident. Idempotent:
// images with an existing row are skipped, and one bad image never stops the
// rest.
func (s *EnrichmentService) ProcessIncidentImages(ctx context.Context, incidentID string) error {
	rows, err := s.analyses.db.Query(ctx,
		`SELECT url FROM incident_image_urls WHERE incident_id = $1 ORDER BY position`, incidentID)
	if err != nil {
		return fmt.Errorf("list incident image urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return fmt.Errorf("scan image url: %w", err)
		}
		urls = append(urls, url)
	}

	s.logger.Info().Str("incident_id", incidentID).Int("images", len(urls)).
		Msg("starting image processing")

	for i, url := range urls {
		s.logger.Info().Str("image_url", url).Msgf("processing image %d/%d", i+1, len(urls))
		if _, err := s.ProcessSingleImage(ctx, incidentID, url); err != nil {
			s.logger.Error().Err(err).Str("incident_id", incidentID).Str("image_url", url).
				Msg("image processing failed")
			// Unexpected errors still get a terminal row, best effort.
			if _, ferr := s.saveFailed(ctx, incidentID, url, "Processing error: "+err.Error()); ferr != nil {
				s.logger.Error().Err(ferr).Str("image_url", url).Msg("record processing failure")
			}
		}
	}
	return nil
}

// ProcessSingleImage analyzes one image and writes a terminal row. If a row
// already exists it is returned untouched. Download and analysis failures
// become failed rows, not errors; only storage problems surface as errors.
func (s *EnrichmentService) ProcessSingleImage(ctx context.Context, incidentID, imageURL string) (*model.ImageAnalysis, error) {
	existing, err := s.analyses.GetByIncidentAndURL(ctx, incidentID, imageURL)
	if err == nil {
		s.logger.Info().Str("image_url", imageURL).Msg("image already processed, skipping")
		return existing, nil
	}

	start := time.Now()
	defer func() {
		metrics.ImageProcessingDuration.Observe(time.Since(start).Seconds())
	}()

	imageBytes := s.download(ctx, imageURL)
	if len(imageBytes) == 0 {
		return s.saveFailed(ctx, incidentID, imageURL, "Failed to download from S3")
	}

	if !s.limiter.Allow(ratelimit.ServiceKey, ratelimit.VisionAPI) {
		metrics.RateLimitRejections.WithLabelValues(ratelimit.VisionAPI.Name).Inc()
		return s.saveFailed(ctx, incidentID, imageURL, "Vision API rate limit exceeded")
	}

	result := s.vision.Analyze(ctx, imageBytes)
	if !result.Success {
		metrics.VisionCalls.WithLabelValues("error").Inc()
		return s.saveFailed(ctx, incidentID, imageURL, result.ErrorMessage)
	}
	metrics.VisionCalls.WithLabelValues("success").Inc()

	return s.saveSuccessful(ctx, incidentID, imageURL, result)
}

// ReprocessFailed deletes failed rows for an incident and runs each image
// again. Returns how many were retried.
func (s *EnrichmentService) ReprocessFailed(ctx context.Context, incidentID string) (int, error) {
	failed, err := s.analyses.ListFailed(ctx, incidentID)
	if err != nil {
		return 0, err
	}

	var count int
	for _, a := range failed {
		if err := s.analyses.Delete(ctx, a.ID); err != nil {
			s.logger.Error().Err(err).Str("analysis_id", a.ID).Msg("delete failed analysis")
			continue
		}
		if _, err := s.ProcessSingleImage(ctx, a.IncidentID, a.ImageURL); err != nil {
			s.logger.Error().Err(err).Str("image_url", a.ImageURL).Msg("reprocess image")
			continue
		}
		count++
	}

	s.logger.Info().Str("incident_id", incidentID).Int("reprocessed", count).
		Msg("reprocessing completed")
	return count, nil
}

func (s *EnrichmentService) download(ctx context.Context, imageURL string) []byte {
	exists, err := s.blobs.Exists(ctx, imageURL)
	if err != nil || !exists {
		s.logger.Warn().Err(err).Str("image_url", imageURL).Msg("image not found in object storage")
		return nil
	}
	data, err := s.blobs.DownloadBytes(ctx, imageURL)
	if err != nil {
		s.logger.Error().Err(err).Str("image_url", imageURL).Msg("download image")
		return nil
	}
	return data
}

func (s *EnrichmentService) saveSuccessful(ctx context.Context, incidentID, imageURL string, result *vision.Result) (*model.ImageAnalysis, error) {
	tags := strings.Join(result.SafetyTags, ", ")
	if tags == "" {
		tags = "No safety-specific tags detected"
	}

	labelParts := make([]string, 0, len(result.AllLabels))
	for _, l := range result.AllLabels {
		labelParts = append(labelParts, fmt.Sprintf("%s (%.2f)", l.Description, l.Score))
	}

	a := &model.ImageAnalysis{
		IncidentID:  incidentID,
		ImageURL:    imageURL,
		Tags:        tags,
		AllLabels:   strings.Join(labelParts, ", "),
		Processed:   true,
		ProcessedAt: time.Now(),
	}
	if result.Text != "" {
		text := result.Text
		a.TextDetected = &text
	}
	confidence := result.Confidence
	a.ConfidenceScore = &confidence

	if err := s.analyses.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *EnrichmentService) saveFailed(ctx context.Context, incidentID, imageURL, errorMessage string) (*model.ImageAnalysis, error) {
	if errorMessage == "" {
		errorMessage = "Unknown error"
	}
	a := &model.ImageAnalysis{
		IncidentID:   incidentID,
		ImageURL:     imageURL,
		Tags:         "PROCESSING_FAILED",
		AllLabels:    "Error: " + errorMessage,
		Processed:    false,
		ProcessedAt:  time.Now(),
		ErrorMessage: &errorMessage,
	}
	if err := s.analyses.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}
