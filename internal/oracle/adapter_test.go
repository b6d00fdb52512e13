package oracle

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safebites/safebites-api/internal/model"
	"github.com/safebites/safebites-api/pkg/anthropic"
)

// fakeClient returns a canned reply or error and records the last request.
type fakeClient struct {
	reply   string
	err     error
	lastReq anthropic.MessageRequest
}

func (f *fakeClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: f.reply}},
	}, nil
}

func items(texts ...string) []model.ScoredReviewItem {
	out := make([]model.ScoredReviewItem, len(texts))
	for i, text := range texts {
		out[i] = model.ScoredReviewItem{Text: text, Source: model.SourcePublic}
	}
	return out
}

func TestAnalyze_EmptyInputSkipsCollaborator(t *testing.T) {
	t.Parallel()

	client := &fakeClient{err: eris.New("must not be called")}
	a := New(client, "test-model", time.Second)

	got := a.Analyze(context.Background(), nil)
	assert.Zero(t, got.Score)
	assert.Equal(t, summaryNoData, got.Summary)
	assert.Equal(t, FailureNone, got.Failure)
}

func TestAnalyze_ParsesReply(t *testing.T) {
	t.Parallel()

	client := &fakeClient{reply: `{"score": 8, "summary": "Dedicated fryer and careful staff."}`}
	a := New(client, "test-model", time.Second)

	got := a.Analyze(context.Background(), items("dedicated fryer"))
	assert.Equal(t, 8.0, got.Score)
	assert.Equal(t, "Dedicated fryer and careful staff.", got.Summary)
	assert.Equal(t, FailureNone, got.Failure)
}

func TestAnalyze_ReplyWithSurroundingText(t *testing.T) {
	t.Parallel()

	client := &fakeClient{reply: "Here is my analysis:\n{\"score\": 6, \"summary\": \"Mixed signals.\"}\nThanks!"}
	a := New(client, "test-model", time.Second)

	got := a.Analyze(context.Background(), items("ok"))
	assert.Equal(t, 6.0, got.Score)
}

func TestAnalyze_MissingFieldsDefault(t *testing.T) {
	t.Parallel()

	client := &fakeClient{reply: `{}`}
	a := New(client, "test-model", time.Second)

	got := a.Analyze(context.Background(), items("something"))
	assert.Equal(t, float64(defaultScore), got.Score)
	assert.Equal(t, summaryMissing, got.Summary)
	assert.Equal(t, FailureNone, got.Failure)
}

func TestAnalyze_ScoreClamped(t *testing.T) {
	t.Parallel()

	client := &fakeClient{reply: `{"score": 14, "summary": "over-enthusiastic"}`}
	a := New(client, "test-model", time.Second)

	got := a.Analyze(context.Background(), items("x"))
	assert.Equal(t, 10.0, got.Score)
}

func TestAnalyze_TransportFailureDegrades(t *testing.T) {
	t.Parallel()

	client := &fakeClient{err: eris.New("connection refused")}
	a := New(client, "test-model", time.Second)

	got := a.Analyze(context.Background(), items("x"))
	assert.Zero(t, got.Score)
	assert.Equal(t, summaryUnavailable, got.Summary)
	assert.Equal(t, FailureTransport, got.Failure)
}

func TestAnalyze_GarbageReplyDegrades(t *testing.T) {
	t.Parallel()

	client := &fakeClient{reply: "I cannot answer that."}
	a := New(client, "test-model", time.Second)

	got := a.Analyze(context.Background(), items("x"))
	assert.Zero(t, got.Score)
	assert.Equal(t, summaryUnavailable, got.Summary)
	assert.Equal(t, FailureParse, got.Failure)
}

func TestAnalyze_LabelsItemsByTrust(t *testing.T) {
	t.Parallel()

	client := &fakeClient{reply: `{"score": 7, "summary": "ok"}`}
	a := New(client, "test-model", time.Second)

	a.Analyze(context.Background(), []model.ScoredReviewItem{
		{Text: "totally safe", Source: model.SourceCommunityPremium, Sensitivity: "celiac"},
		{Text: "nice menu", Source: model.SourcePublic},
	})

	require.Len(t, client.lastReq.Messages, 1)
	body := client.lastReq.Messages[0].Content
	assert.Contains(t, body, "- [community/premium celiac] totally safe")
	assert.Contains(t, body, "- [public] nice menu")
	assert.Contains(t, client.lastReq.System, "Celiac")
}
