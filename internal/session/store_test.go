package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/compliance-guard-backend/internal/domain/compliance"
)

func newTestStore(t *testing.T, clock compliance.Clock) *MemoryStore {
	t.Helper()
	return NewMemoryStore(DefaultConfig(), zaptest.NewLogger(t), WithClock(clock))
}

func TestCreateSession(t *testing.T) {
	clock := &compliance.MockClock{CurrentTime: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := newTestStore(t, clock)
	ctx := context.Background()

	id, err := store.Create(ctx, "acme-corp", "compliance_check")
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err, "session IDs must be valid UUIDs")

	record, ok := store.Get(ctx, id)
	require.True(t, ok)
	assert.Equal(t, "acme-corp", record.CompanyID)
	assert.Equal(t, "compliance_check", record.WorkflowType)
	assert.Equal(t, StatusActive, record.Status)
	assert.Equal(t, "initialized", record.CurrentStep)
	assert.Equal(t, 0, record.Progress)
	assert.NotNil(t, record.Context)
}

func TestGetTouchesActiveOnly(t *testing.T) {
	clock := &compliance.MockClock{CurrentTime: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := newTestStore(t, clock)
	ctx := context.Background()

	id, err := store.Create(ctx, "acme-corp", "compliance_check")
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	record, ok := store.Get(ctx, id)
	require.True(t, ok)
	assert.Equal(t, clock.Now(), record.LastActivity, "reading an active session refreshes last_activity")

	require.True(t, store.End(ctx, id, StatusCompleted))
	endedAt := clock.Now()

	clock.Advance(10 * time.Minute)
	record, ok = store.Get(ctx, id)
	require.True(t, ok)
	assert.Equal(t, endedAt, record.LastActivity, "reading an ended session must not touch it")
}

func TestGetNotFound(t *testing.T) {
	store := newTestStore(t, &compliance.MockClock{CurrentTime: time.Now()})

	record, ok := store.Get(context.Background(), uuid.New().String())
	assert.False(t, ok)
	assert.Nil(t, record)
}

func TestUpdateContextShallowMerge(t *testing.T) {
	clock := &compliance.MockClock{CurrentTime: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := newTestStore(t, clock)
	ctx := context.Background()

	id, err := store.Create(ctx, "acme-corp", "compliance_check")
	require.NoError(t, err)

	require.True(t, store.UpdateContext(ctx, id, map[string]any{
		"regulatory": map[string]any{"gdpr": "checked", "hipaa": "pending"},
		"mode":       "full",
	}))
	require.True(t, store.UpdateContext(ctx, id, map[string]any{
		"regulatory": map[string]any{"hipaa": "checked"},
		"mode":       "quick",
	}))

	record, ok := store.Get(ctx, id)
	require.True(t, ok)
	assert.Equal(t, "quick", record.Context["mode"], "non-map values overwrite")
	regulatory := record.Context["regulatory"].(map[string]any)
	assert.Equal(t, "checked", regulatory["gdpr"], "merged map keeps untouched keys")
	assert.Equal(t, "checked", regulatory["hipaa"], "merged map takes updated keys")
}

func TestUpdateContextUnknownSession(t *testing.T) {
	store := newTestStore(t, &compliance.MockClock{CurrentTime: time.Now()})
	assert.False(t, store.UpdateContext(context.Background(), "missing", map[string]any{"k": "v"}))
}

func TestRecordInteractionProgressRatchet(t *testing.T) {
	clock := &compliance.MockClock{CurrentTime: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := newTestStore(t, clock)
	ctx := context.Background()

	id, err := store.Create(ctx, "acme-corp", "compliance_check")
	require.NoError(t, err)

	require.True(t, store.RecordInteraction(ctx, id, "risk_assessor", nil, nil, 120*time.Millisecond))
	record, _ := store.Get(ctx, id)
	assert.Equal(t, 75, record.Progress)
	assert.Equal(t, "completed_risk_assessor", record.CurrentStep)

	// An earlier stage recorded later never moves progress backwards.
	require.True(t, store.RecordInteraction(ctx, id, "regulation_monitor", nil, nil, 80*time.Millisecond))
	record, _ = store.Get(ctx, id)
	assert.Equal(t, 75, record.Progress)
	assert.Equal(t, "completed_regulation_monitor", record.CurrentStep)

	require.True(t, store.RecordInteraction(ctx, id, "report_generator", nil, nil, 90*time.Millisecond))
	record, _ = store.Get(ctx, id)
	assert.Equal(t, 100, record.Progress)
	assert.Len(t, record.Interactions, 3)
	assert.Equal(t, []string{"risk_assessor", "regulation_monitor", "report_generator"}, record.StagesUsed)
}

func TestRecordInteractionStoresSummariesNotPayloads(t *testing.T) {
	clock := &compliance.MockClock{CurrentTime: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := newTestStore(t, clock)
	ctx := context.Background()

	id, err := store.Create(ctx, "acme-corp", "compliance_check")
	require.NoError(t, err)

	input := map[string]any{"company_id": "acme-corp"}
	output := map[string]any{
		"overall_score":   87,
		"risk_assessment": map[string]any{"level": "low"},
		"recommendations": []string{"rotate keys"},
	}
	require.True(t, store.RecordInteraction(ctx, id, "compliance_analyzer", input, output, 50*time.Millisecond))

	record, _ := store.Get(ctx, id)
	interaction := record.Interactions[0]
	assert.True(t, interaction.InputSummary.HasCompanyData)
	assert.True(t, interaction.OutputSummary.HasComplianceScore)
	assert.True(t, interaction.OutputSummary.HasRiskAssessment)
	assert.True(t, interaction.OutputSummary.HasRecommendations)
	assert.Positive(t, interaction.OutputSummary.SizeEstimate)
}

func TestEndSessionExactlyOnce(t *testing.T) {
	clock := &compliance.MockClock{CurrentTime: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := newTestStore(t, clock)
	ctx := context.Background()

	id, err := store.Create(ctx, "acme-corp", "compliance_check")
	require.NoError(t, err)
	require.True(t, store.RecordInteraction(ctx, id, "regulation_monitor", nil, nil, 100*time.Millisecond))
	require.True(t, store.RecordInteraction(ctx, id, "compliance_analyzer", nil, nil, 300*time.Millisecond))

	clock.Advance(30 * time.Minute)
	require.True(t, store.End(ctx, id, StatusCompleted))
	assert.False(t, store.End(ctx, id, StatusFailed), "a session can be ended at most once")

	record, ok := store.Get(ctx, id)
	require.True(t, ok, "ended sessions stay retrievable from history")
	assert.Equal(t, StatusCompleted, record.Status)
	require.NotNil(t, record.FinalMetrics)
	assert.Equal(t, 2, record.FinalMetrics.TotalStagesUsed)
	assert.Equal(t, 2, record.FinalMetrics.TotalInteractions)
	assert.Equal(t, 200*time.Millisecond, record.FinalMetrics.AverageProcessingTime)
	assert.InDelta(t, 30.0, record.FinalMetrics.DurationMinutes, 0.01)
	assert.Equal(t, 100, record.FinalMetrics.SuccessRate)

	assert.Empty(t, store.Active(ctx))
}

func TestEndFailedSessionSuccessRate(t *testing.T) {
	clock := &compliance.MockClock{CurrentTime: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := newTestStore(t, clock)
	ctx := context.Background()

	id, err := store.Create(ctx, "acme-corp", "compliance_check")
	require.NoError(t, err)
	require.True(t, store.End(ctx, id, StatusFailed))

	record, _ := store.Get(ctx, id)
	assert.Equal(t, 0, record.FinalMetrics.SuccessRate)
}

func TestHistoryBound(t *testing.T) {
	clock := &compliance.MockClock{CurrentTime: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(Config{HistoryLimit: 3}, zaptest.NewLogger(t), WithClock(clock))
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := store.Create(ctx, fmt.Sprintf("company-%d", i), "compliance_check")
		require.NoError(t, err)
		require.True(t, store.End(ctx, id, StatusCompleted))
		ids = append(ids, id)
		clock.Advance(time.Minute)
	}

	for _, id := range ids[:2] {
		_, ok := store.Get(ctx, id)
		assert.False(t, ok, "oldest ended sessions are evicted first")
	}
	for _, id := range ids[2:] {
		_, ok := store.Get(ctx, id)
		assert.True(t, ok)
	}
}

func TestSessionsForCompanyNewestFirst(t *testing.T) {
	clock := &compliance.MockClock{CurrentTime: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := newTestStore(t, clock)
	ctx := context.Background()

	first, err := store.Create(ctx, "acme-corp", "compliance_check")
	require.NoError(t, err)
	require.True(t, store.End(ctx, first, StatusCompleted))

	clock.Advance(time.Hour)
	second, err := store.Create(ctx, "acme-corp", "compliance_check")
	require.NoError(t, err)
	_, err = store.Create(ctx, "other-corp", "compliance_check")
	require.NoError(t, err)

	records := store.SessionsForCompany(ctx, "acme-corp")
	require.Len(t, records, 2)
	assert.Equal(t, second, records[0].SessionID)
	assert.Equal(t, first, records[1].SessionID)
}

func TestGetReturnsIsolatedCopy(t *testing.T) {
	clock := &compliance.MockClock{CurrentTime: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := newTestStore(t, clock)
	ctx := context.Background()

	id, err := store.Create(ctx, "acme-corp", "compliance_check")
	require.NoError(t, err)
	require.True(t, store.UpdateContext(ctx, id, map[string]any{"nested": map[string]any{"k": "original"}}))

	record, _ := store.Get(ctx, id)
	record.Context["nested"].(map[string]any)["k"] = "mutated"
	record.Errors = append(record.Errors, "mutated")

	fresh, _ := store.Get(ctx, id)
	assert.Equal(t, "original", fresh.Context["nested"].(map[string]any)["k"])
	assert.Empty(t, fresh.Errors)
}
