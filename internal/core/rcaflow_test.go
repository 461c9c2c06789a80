package core

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/marcusj/safetrack/internal/llm"
	"github.com/marcusj/safetrack/internal/model"
)

// fakeGenerator stands in for the AI backend.
type fakeGenerator struct {
	resp    *llm.Response
	err     error
	healthy bool
	prompts []string
}

func (f *fakeGenerator) GenerateRCA(ctx context.Context, prompt, userKey string) (*llm.Response, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeGenerator) Healthy() bool          { return f.healthy }
func (f *fakeGenerator) Status() map[string]any { return map[string]any{"enabled": true} }

func newRcaFlow(db DB, gen RcaGenerator) *RcaWorkflowService {
	return NewRcaWorkflowService(zerolog.Nop(), db,
		NewSuggestionService(db), NewReportService(db), NewAnalysisService(db),
		NewUserService(db, 0), gen)
}

func sqlContains(sub string) any {
	return mock.MatchedBy(func(sql string) bool { return strings.Contains(sql, sub) })
}

func suggestionScan(id string, version int64, status string) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = id
		*(dest[1].(*int64)) = version
		*(dest[2].(*string)) = "inc-1"
		*(dest[3].(*string)) = "1. Why did the spill occur? The valve seal failed."
		*(dest[4].(*string)) = "Replace the valve seal and clean the ramp."
		*(dest[5].(*string)) = "Add the valve to the weekly inspection round."
		*(dest[6].(*float64)) = 0.7
		*(dest[7].(*string)) = model.CategoryChemicalExposure
		*(dest[8].(*string)) = model.CategoryChemicalExposure
		*(dest[9].(*string)) = "gpt-3.5-turbo"
		*(dest[12].(*string)) = status
		*(dest[13].(*time.Time)) = time.Now()
		return nil
	}
}

const wellFormedRca = `FIVE WHYS ANALYSIS:
1. Why did the spill occur? The valve seal failed.
2. Why did the seal fail? It was past its service life.

CORRECTIVE ACTIONS:
- Replace the valve seal and clean the ramp.

PREVENTIVE ACTIONS:
- Add the valve to the weekly inspection round.
`

// ---------- Generate ----------

func TestRcaWorkflowService_Generate_Success(t *testing.T) {
	db := &mockDB{}
	gen := &fakeGenerator{resp: &llm.Response{
		Content:    wellFormedRca,
		TokensUsed: 321,
		Model:      "gpt-3.5-turbo",
		Success:    true,
	}}
	svc := newRcaFlow(db, gen)
	ctx := context.Background()

	db.On("QueryRow", ctx, sqlContains("FROM rca_ai_suggestions"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }})
	db.On("QueryRow", ctx, sqlContains("FROM incidents"), mock.Anything).
		Return(&mockRow{scanFunc: incidentScan("inc-1", "usr-1")})
	db.On("Query", ctx, sqlContains("FROM image_analysis"), mock.Anything).
		Return(newEmptyMockRows(), nil)
	db.On("QueryRow", ctx, sqlContains("FROM users"), mock.Anything).
		Return(userRow(t, "hunter22"))

	var insertArgs []any
	db.On("Exec", ctx, sqlContains("INSERT INTO rca_ai_suggestions"), mock.Anything).
		Run(func(args mock.Arguments) { insertArgs = args.Get(2).([]any) }).
		Return(execTag("INSERT", 1), nil)

	sg, err := svc.Generate(ctx, "inc-1", false)
	require.NoError(t, err)

	assert.Equal(t, model.RcaGenerated, sg.Status)
	assert.Equal(t, sg.IncidentCategory, sg.TemplateUsed)
	assert.Contains(t, sg.SuggestedFiveWhys, "valve seal failed")
	assert.Contains(t, sg.SuggestedCorrectiveAction, "Replace the valve seal")
	assert.Contains(t, sg.SuggestedPreventiveAction, "weekly inspection")
	require.NotNil(t, sg.TokensUsed)
	assert.Equal(t, 321, *sg.TokensUsed)
	require.NotNil(t, sg.ProcessingTimeMs)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "INCIDENT DETAILS:")
	assert.Contains(t, gen.prompts[0], "Anna Berg")

	require.Len(t, insertArgs, 15)
	assert.Equal(t, model.RcaGenerated, insertArgs[12])
}

func TestRcaWorkflowService_Generate_ExistingWithoutForce(t *testing.T) {
	db := &mockDB{}
	gen := &fakeGenerator{}
	svc := newRcaFlow(db, gen)
	ctx := context.Background()

	db.On("QueryRow", ctx, sqlContains("FROM rca_ai_suggestions"), mock.Anything).
		Return(&mockRow{scanFunc: suggestionScan("sug-1", 0, model.RcaGenerated)})

	sg, err := svc.Generate(ctx, "inc-1", false)
	require.NoError(t, err)
	assert.Equal(t, "sug-1", sg.ID)
	assert.Empty(t, gen.prompts)
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestRcaWorkflowService_Generate_ForceReplacesExisting(t *testing.T) {
	db := &mockDB{}
	gen := &fakeGenerator{resp: &llm.Response{Content: wellFormedRca, TokensUsed: 100, Model: "gpt-3.5-turbo", Success: true}}
	svc := newRcaFlow(db, gen)
	ctx := context.Background()

	db.On("QueryRow", ctx, sqlContains("FROM rca_ai_suggestions"), mock.Anything).
		Return(&mockRow{scanFunc: suggestionScan("sug-1", 0, model.RcaFailed)})
	db.On("QueryRow", ctx, sqlContains("FROM incidents"), mock.Anything).
		Return(&mockRow{scanFunc: incidentScan("inc-1", "usr-1")})
	db.On("Exec", ctx, sqlContains("DELETE FROM rca_ai_suggestions"), mock.Anything).
		Return(execTag("DELETE", 1), nil)
	db.On("Query", ctx, sqlContains("FROM image_analysis"), mock.Anything).
		Return(newEmptyMockRows(), nil)
	db.On("QueryRow", ctx, sqlContains("FROM users"), mock.Anything).
		Return(userRow(t, "hunter22"))
	db.On("Exec", ctx, sqlContains("INSERT INTO rca_ai_suggestions"), mock.Anything).
		Return(execTag("INSERT", 1), nil)

	sg, err := svc.Generate(ctx, "inc-1", true)
	require.NoError(t, err)
	assert.Equal(t, model.RcaGenerated, sg.Status)
	require.Len(t, gen.prompts, 1)
	db.AssertExpectations(t)
}

func TestRcaWorkflowService_Generate_FailureWritesFailedRow(t *testing.T) {
	db := &mockDB{}
	gen := &fakeGenerator{err: fmt.Errorf("AI backend unavailable: %w", llm.ErrUnavailable)}
	svc := newRcaFlow(db, gen)
	ctx := context.Background()

	db.On("QueryRow", ctx, sqlContains("FROM rca_ai_suggestions"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }})
	db.On("QueryRow", ctx, sqlContains("FROM incidents"), mock.Anything).
		Return(&mockRow{scanFunc: incidentScan("inc-1", "usr-1")})
	db.On("Query", ctx, sqlContains("FROM image_analysis"), mock.Anything).
		Return(newEmptyMockRows(), nil)
	db.On("QueryRow", ctx, sqlContains("FROM users"), mock.Anything).
		Return(userRow(t, "hunter22"))
	db.On("Exec", ctx, sqlContains("INSERT INTO rca_ai_suggestions"), mock.Anything).
		Return(execTag("INSERT", 1), nil)

	sg, err := svc.Generate(ctx, "inc-1", false)
	require.NoError(t, err)

	assert.Equal(t, model.RcaFailed, sg.Status)
	assert.Equal(t, "RCA generation failed", sg.SuggestedFiveWhys)
	assert.Equal(t, "Please manually complete RCA analysis", sg.SuggestedCorrectiveAction)
	assert.Equal(t, model.CategoryGeneralSafety, sg.IncidentCategory)
	assert.Equal(t, "ERROR", sg.TemplateUsed)
	require.NotNil(t, sg.ErrorMessage)
	assert.Contains(t, *sg.ErrorMessage, "AI service error:")
}

func TestRcaWorkflowService_Generate_IncidentNotFound(t *testing.T) {
	db := &mockDB{}
	svc := newRcaFlow(db, &fakeGenerator{})
	ctx := context.Background()

	db.On("QueryRow", ctx, sqlContains("FROM rca_ai_suggestions"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }})
	db.On("QueryRow", ctx, sqlContains("FROM incidents"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }})

	_, err := svc.Generate(ctx, "inc-missing", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

// ---------- Review transitions ----------

func TestRcaWorkflowService_MarkReviewed_WorkerDenied(t *testing.T) {
	svc := newRcaFlow(&mockDB{}, &fakeGenerator{})

	worker := &model.User{ID: "usr-1", Role: model.RoleWorker}
	_, err := svc.MarkReviewed(context.Background(), "inc-1", worker)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestRcaWorkflowService_MarkReviewed_Success(t *testing.T) {
	db := &mockDB{}
	svc := newRcaFlow(db, &fakeGenerator{})
	ctx := context.Background()

	db.On("QueryRow", ctx, sqlContains("FROM rca_ai_suggestions"), mock.Anything).
		Return(&mockRow{scanFunc: suggestionScan("sug-1", 2, model.RcaGenerated)})

	var updateArgs []any
	db.On("Exec", ctx, sqlContains("UPDATE rca_ai_suggestions"), mock.Anything).
		Run(func(args mock.Arguments) { updateArgs = args.Get(2).([]any) }).
		Return(execTag("UPDATE", 1), nil)

	manager := &model.User{ID: "usr-m", Role: model.RoleManager}
	_, err := svc.MarkReviewed(ctx, "inc-1", manager)
	require.NoError(t, err)

	require.Len(t, updateArgs, 5)
	assert.Equal(t, model.RcaReviewed, updateArgs[0])
	assert.Equal(t, "usr-m", updateArgs[2])
	assert.EqualValues(t, 2, updateArgs[4])
}

// ---------- GetSuggestion visibility ----------

func TestRcaWorkflowService_GetSuggestion_Visibility(t *testing.T) {
	tests := []struct {
		name    string
		role    string
		status  string
		wantErr bool
	}{
		{"manager sees draft", model.RoleManager, model.RcaGenerated, false},
		{"manager sees failed", model.RoleManager, model.RcaFailed, false},
		{"worker blocked from draft", model.RoleWorker, model.RcaGenerated, true},
		{"worker blocked from reviewed", model.RoleWorker, model.RcaReviewed, true},
		{"worker sees approved", model.RoleWorker, model.RcaApproved, false},
		{"worker blocked from modified", model.RoleWorker, model.RcaModified, true},
		{"worker blocked from failed", model.RoleWorker, model.RcaFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &mockDB{}
			svc := newRcaFlow(db, &fakeGenerator{})
			ctx := context.Background()

			db.On("QueryRow", ctx, sqlContains("FROM rca_ai_suggestions"), mock.Anything).
				Return(&mockRow{scanFunc: suggestionScan("sug-1", 0, tt.status)})

			caller := &model.User{ID: "usr-1", Role: tt.role}
			_, err := svc.GetSuggestion(ctx, "inc-1", caller)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrAccessDenied)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// ---------- Finalize ----------

func TestRcaWorkflowService_Finalize_KeptDraftStaysApproved(t *testing.T) {
	db := &mockDB{}
	svc := newRcaFlow(db, &fakeGenerator{})
	ctx := context.Background()

	db.On("QueryRow", ctx, sqlContains("FROM rca_ai_suggestions"), mock.Anything).
		Return(&mockRow{scanFunc: suggestionScan("sug-1", 1, model.RcaReviewed)})
	db.On("Exec", ctx, sqlContains("INSERT INTO rca_reports"), mock.Anything).
		Return(execTag("INSERT", 1), nil)

	var updateArgs []any
	db.On("Exec", ctx, sqlContains("UPDATE rca_ai_suggestions"), mock.Anything).
		Run(func(args mock.Arguments) { updateArgs = args.Get(2).([]any) }).
		Return(execTag("UPDATE", 1), nil)

	manager := &model.User{ID: "usr-m", Role: model.RoleManager}
	report, err := svc.Finalize(ctx, "inc-1", manager,
		"1. Why did the spill occur? The valve seal failed.",
		"Replace the valve seal and clean the ramp.",
		"Add the valve to the weekly inspection round.")
	require.NoError(t, err)
	assert.Equal(t, "usr-m", report.ManagerID)
	assert.NotEmpty(t, report.ID)

	require.Len(t, updateArgs, 5)
	assert.Equal(t, model.RcaApproved, updateArgs[0])
}

func TestRcaWorkflowService_Finalize_RewrittenDraftMarkedModified(t *testing.T) {
	db := &mockDB{}
	svc := newRcaFlow(db, &fakeGenerator{})
	ctx := context.Background()

	db.On("QueryRow", ctx, sqlContains("FROM rca_ai_suggestions"), mock.Anything).
		Return(&mockRow{scanFunc: suggestionScan("sug-1", 1, model.RcaApproved)})
	db.On("Exec", ctx, sqlContains("INSERT INTO rca_reports"), mock.Anything).
		Return(execTag("INSERT", 1), nil)

	var updateArgs []any
	db.On("Exec", ctx, sqlContains("UPDATE rca_ai_suggestions"), mock.Anything).
		Run(func(args mock.Arguments) { updateArgs = args.Get(2).([]any) }).
		Return(execTag("UPDATE", 1), nil)

	manager := &model.User{ID: "usr-m", Role: model.RoleManager}
	_, err := svc.Finalize(ctx, "inc-1", manager,
		"Root cause traced to missing maintenance budget approval.",
		"Escalate maintenance funding to site leadership.",
		"Quarterly audit of deferred maintenance items.")
	require.NoError(t, err)

	require.Len(t, updateArgs, 5)
	assert.Equal(t, model.RcaModified, updateArgs[0])
}

func TestRcaWorkflowService_Finalize_RequiresReviewedSuggestion(t *testing.T) {
	db := &mockDB{}
	svc := newRcaFlow(db, &fakeGenerator{})
	ctx := context.Background()

	db.On("QueryRow", ctx, sqlContains("FROM rca_ai_suggestions"), mock.Anything).
		Return(&mockRow{scanFunc: suggestionScan("sug-1", 0, model.RcaGenerated)})

	manager := &model.User{ID: "usr-m", Role: model.RoleManager}
	_, err := svc.Finalize(ctx, "inc-1", manager, "a", "b", "c")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestRcaWorkflowService_Finalize_WorkerDenied(t *testing.T) {
	svc := newRcaFlow(&mockDB{}, &fakeGenerator{})

	worker := &model.User{ID: "usr-1", Role: model.RoleWorker}
	_, err := svc.Finalize(context.Background(), "inc-1", worker, "a", "b", "c")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

// ---------- Health ----------

func TestRcaWorkflowService_Health(t *testing.T) {
	tests := []struct {
		name        string
		genHealthy  bool
		failures    int64
		wantHealthy bool
	}{
		{"healthy", true, 0, true},
		{"generator down", false, 0, false},
		{"too many failures", true, 12, false},
		{"just under the failure cap", true, 9, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &mockDB{}
			svc := newRcaFlow(db, &fakeGenerator{healthy: tt.genHealthy})
			ctx := context.Background()

			db.On("QueryRow", ctx, sqlContains("COUNT(*)"), mock.Anything).
				Return(&mockRow{scanFunc: func(dest ...any) error {
					*(dest[0].(*int64)) = tt.failures
					return nil
				}})
			db.On("Query", ctx, sqlContains("FROM rca_ai_suggestions"), mock.Anything).
				Return(newEmptyMockRows(), nil)

			health, err := svc.Health(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHealthy, health.Healthy)
			assert.Equal(t, tt.failures, health.RecentFailureCount)
		})
	}
}

// ---------- Statistics ----------

func TestRcaWorkflowService_Statistics(t *testing.T) {
	db := &mockDB{}
	svc := newRcaFlow(db, &fakeGenerator{})
	ctx := context.Background()

	statRow := func(status, category string, count int64) func(dest ...any) error {
		return func(dest ...any) error {
			*(dest[0].(*string)) = status
			*(dest[1].(*string)) = category
			*(dest[2].(*int64)) = count
			return nil
		}
	}
	db.On("Query", ctx, sqlContains("GROUP BY"), mock.Anything).Return(newMockRows(
		statRow(model.RcaGenerated, model.CategoryPPEViolation, 3),
		statRow(model.RcaFailed, model.CategoryGeneralSafety, 1),
	), nil)
	db.On("QueryRow", ctx, sqlContains("AVG"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*float64)) = 900
			*(dest[1].(*float64)) = 350
			return nil
		}})

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats.Suggestions.Total)
	assert.InDelta(t, 75.0, stats.SuccessRate, 0.001)
	assert.Equal(t, map[string]any{"enabled": true}, stats.Generator)
}
