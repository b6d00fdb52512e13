// Package oracle adapts the ranked review sequence into a bounded prompt
// for the language-model collaborator and parses its reply defensively.
// The adapter never fails the pipeline: every failure mode degrades to a
// zero score the composite engine knows how to handle.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/safebites/safebites-api/internal/model"
	"github.com/safebites/safebites-api/pkg/anthropic"
)

const systemPrompt = `You are an expert dietician specializing in Celiac Disease and gluten safety. Analyze the following restaurant reviews and determine if this place is safe for someone with Celiac Disease.

Each review is prefixed with its source label. Weight them as follows:
- [community/premium] reports come from vetted reporters with diagnosed sensitivities; weight them highest.
- [community/standard] reports come from registered community members; weight them next.
- [public] reviews are general-audience; weight them last.

Focus on signals like 'cross-contamination', 'dedicated fryer', 'separate prep area', and 'got sick'. Treat any report of illness as strongly negative. Do not score above 8 unless the evidence supports a fully dedicated gluten-free facility.

Return a JSON object with exactly two keys: 'score' (an integer 0-10, where 10 is perfectly safe and 1 is dangerous) and 'summary' (a concise 2-sentence explanation of the rating).`

// Degraded-mode outputs. An empty input set and a failed call are both
// represented as score 0 so the composite engine falls into its
// lower-confidence branch.
const (
	summaryNoData      = "No reviews available to analyze."
	summaryUnavailable = "AI analysis currently unavailable."
	summaryMissing     = "No summary available."
)

// defaultScore is used when the oracle reply parses but omits the score.
const defaultScore = 5

// FailureKind classifies why an assessment was degraded, for observability.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureTransport FailureKind = "transport"
	FailureParse     FailureKind = "parse"
)

// Assessment is the oracle's answer: a safety score in [0,10] and a short
// summary. Score 0 means no analysis happened (no data, or failure).
type Assessment struct {
	Score   float64
	Summary string
	Failure FailureKind
}

// Adapter invokes the language-model collaborator with a bounded timeout.
type Adapter struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
}

// New creates an Adapter. The timeout bounds the single long-blocking call
// of the review-detail path.
func New(client anthropic.Client, modelID string, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Adapter{client: client, model: modelID, timeout: timeout}
}

// Analyze scores the ranked review sequence. An empty input returns the
// no-data assessment without invoking the collaborator.
func (a *Adapter) Analyze(ctx context.Context, items []model.ScoredReviewItem) Assessment {
	if len(items) == 0 {
		return Assessment{Score: 0, Summary: summaryNoData}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: 512,
		System:    systemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: "Here are the reviews:\n" + formatItems(items)},
		},
	})
	if err != nil {
		zap.L().Warn("oracle: analysis call failed",
			zap.Int("items", len(items)),
			zap.Error(err),
		)
		return Assessment{Score: 0, Summary: summaryUnavailable, Failure: FailureTransport}
	}

	assessment, ok := parseReply(resp.Text())
	if !ok {
		zap.L().Warn("oracle: unparseable reply", zap.String("model", a.model))
		return Assessment{Score: 0, Summary: summaryUnavailable, Failure: FailureParse}
	}
	return assessment
}

// formatItems renders the labeled text block sent to the oracle.
func formatItems(items []model.ScoredReviewItem) string {
	var b strings.Builder
	for _, item := range items {
		label := item.Source.Label()
		if item.Sensitivity != "" {
			label += " " + item.Sensitivity
		}
		fmt.Fprintf(&b, "- [%s] %s\n", label, item.Text)
	}
	return b.String()
}

// oracleReply mirrors the JSON object the prompt asks for. Pointer fields
// distinguish "absent" from zero values.
type oracleReply struct {
	Score   *float64 `json:"score"`
	Summary *string  `json:"summary"`
}

// parseReply extracts the JSON object from the reply text. A reply with no
// JSON at all is a parse failure; a JSON reply missing keys falls back to
// per-field defaults.
func parseReply(text string) (Assessment, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Assessment{}, false
	}

	var reply oracleReply
	if err := json.Unmarshal([]byte(text[start:end+1]), &reply); err != nil {
		return Assessment{}, false
	}

	out := Assessment{Score: defaultScore, Summary: summaryMissing}
	if reply.Score != nil {
		out.Score = *reply.Score
	}
	if reply.Summary != nil && *reply.Summary != "" {
		out.Summary = *reply.Summary
	}

	if out.Score < 0 {
		out.Score = 0
	}
	if out.Score > 10 {
		out.Score = 10
	}
	return out, true
}
