// Package vision calls an image-annotation backend to label incident photos
// and extract safety-relevant tags and visible text.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/marcusj/safetrack/internal/config"
)

// Label is a single annotation with its confidence score.
type Label struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// Object is a localized object detection.
type Object struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Result is the outcome of analyzing one image. Analyze never returns a Go
// error: backend failures come back as Success=false with ErrorMessage set,
// so the enrichment pipeline can persist them without special-casing.
type Result struct {
	Success      bool
	SafetyTags   []string
	AllLabels    []Label
	Objects      []Object
	Text         string
	Confidence   float64
	ErrorMessage string
}

// Client talks to the vision annotation API over REST.
type Client struct {
	logger     zerolog.Logger
	httpClient *http.Client
	apiURL     string
	apiKey     string
	enabled    bool
	mockMode   bool
}

func NewClient(logger zerolog.Logger, cfg *config.Config) *Client {
	return &Client{
		logger:     logger.With().Str("component", "vision-client").Logger(),
		httpClient: &http.Client{Timeout: cfg.VisionTimeout},
		apiURL:     strings.TrimSuffix(cfg.VisionAPIURL, "/"),
		apiKey:     cfg.VisionAPIKey,
		enabled:    cfg.VisionEnabled,
		mockMode:   cfg.VisionMockMode,
	}
}

// Annotation request/response wire types, matching the Google Vision REST
// surface (images:annotate).
type annotateRequest struct {
	Requests []annotateImageRequest `json:"requests"`
}

type annotateImageRequest struct {
	Image    annotateImage     `json:"image"`
	Features []annotateFeature `json:"features"`
}

type annotateImage struct {
	Content string `json:"content"`
}

type annotateFeature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults,omitempty"`
}

type annotateResponse struct {
	Responses []annotateImageResponse `json:"responses"`
}

type annotateImageResponse struct {
	LabelAnnotations []struct {
		Description string  `json:"description"`
		Score       float64 `json:"score"`
	} `json:"labelAnnotations"`
	LocalizedObjectAnnotations []struct {
		Name  string  `json:"name"`
		Score float64 `json:"score"`
	} `json:"localizedObjectAnnotations"`
	TextAnnotations []struct {
		Description string `json:"description"`
	} `json:"textAnnotations"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Analyze labels one image. Failures are reported in the Result, never as an
// error return.
func (c *Client) Analyze(ctx context.Context, imageBytes []byte) *Result {
	if !c.enabled || c.mockMode || c.apiKey == "" {
		if c.apiKey == "" && c.enabled && !c.mockMode {
			c.logger.Warn().Msg("vision API key not configured, using mock analysis")
		}
		return mockResult()
	}

	reqBody := annotateRequest{
		Requests: []annotateImageRequest{{
			Image: annotateImage{Content: base64.StdEncoding.EncodeToString(imageBytes)},
			Features: []annotateFeature{
				{Type: "LABEL_DETECTION", MaxResults: 20},
				{Type: "OBJECT_LOCALIZATION", MaxResults: 10},
				{Type: "SAFE_SEARCH_DETECTION"},
				{Type: "TEXT_DETECTION"},
			},
		}},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return failure("encode annotation request: " + err.Error())
	}

	url := c.apiURL + "/v1/images:annotate?key=" + c.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return failure("build annotation request: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failure("Vision API connection failed: " + err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure("read annotation response: " + err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return failure(fmt.Sprintf("Vision API returned status %d", resp.StatusCode))
	}

	var decoded annotateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return failure("decode annotation response: " + err.Error())
	}
	if len(decoded.Responses) == 0 {
		return failure("Vision API returned no responses")
	}

	ir := decoded.Responses[0]
	if ir.Error != nil {
		return failure(ir.Error.Message)
	}

	allLabels := make([]Label, 0, len(ir.LabelAnnotations))
	for _, a := range ir.LabelAnnotations {
		allLabels = append(allLabels, Label{Description: a.Description, Score: a.Score})
	}

	objects := make([]Object, 0, len(ir.LocalizedObjectAnnotations))
	for _, o := range ir.LocalizedObjectAnnotations {
		objects = append(objects, Object{Name: o.Name, Score: o.Score})
	}

	// Only the first text annotation holds the full detected text block.
	text := ""
	if len(ir.TextAnnotations) > 0 {
		text = ir.TextAnnotations[0].Description
	}
	if len(text) > 500 {
		text = text[:500]
	}

	var confidence float64
	if len(allLabels) > 0 {
		var sum float64
		for _, l := range allLabels {
			sum += l.Score
		}
		confidence = sum / float64(len(allLabels))
	}

	safetyTags := FilterSafetyLabels(allLabels)

	c.logger.Info().
		Int("safety_tags", len(safetyTags)).
		Int("total_labels", len(allLabels)).
		Msg("vision analysis completed")

	return &Result{
		Success:    true,
		SafetyTags: safetyTags,
		AllLabels:  allLabels,
		Objects:    objects,
		Text:       text,
		Confidence: confidence,
	}
}

func failure(msg string) *Result {
	return &Result{Success: false, ErrorMessage: msg}
}

// mockResult is returned when the backend is disabled or unconfigured, so
// the rest of the pipeline behaves realistically in development.
func mockResult() *Result {
	return &Result{
		Success: true,
		SafetyTags: []string{
			"Construction site", "Hard hat", "Safety vest", "Industrial equipment", "Workplace",
		},
		AllLabels: []Label{
			{Description: "Construction site", Score: 0.95},
			{Description: "Hard hat", Score: 0.88},
			{Description: "Safety vest", Score: 0.82},
			{Description: "Industrial equipment", Score: 0.79},
			{Description: "Workplace", Score: 0.76},
		},
		Objects: []Object{
			{Name: "Person", Score: 0.92},
			{Name: "Building", Score: 0.85},
		},
		Text:       "SAFETY FIRST - HARD HATS REQUIRED",
		Confidence: 0.84,
	}
}
