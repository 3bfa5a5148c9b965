// Package selector implements the Hybrid Selector (spec §4.9): combines
// the Keyword Scorer's always-available lexical score with the Advisor
// Client's optional confidence-scored ranking under a weighted policy,
// with a mandatory keyword-only fallback whenever the advisor is
// unavailable or the chosen (top-combined) candidate's own advisor
// confidence sits below policy threshold.
package selector

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kubilitics/mcp-gateway/internal/advisor"
	"github.com/kubilitics/mcp-gateway/internal/gwerr"
	"github.com/kubilitics/mcp-gateway/internal/keyword"
	"github.com/kubilitics/mcp-gateway/internal/model"
)

// Policy is the weighted-combination and fallback configuration (spec
// §6.2 `router` config section).
type Policy struct {
	AdvisorWeight    float64 // weight given to the advisor's score in [0,1]; keyword gets 1-AdvisorWeight
	MinConfidence    float64 // if the top combined candidate's advisor confidence is below this, selection falls back to keyword-only
	AdvisorTimeout   time.Duration
	TopNForAdvisor   int // only the top-N keyword candidates are sent to the advisor (cost control)
}

// AdvisorClient is the subset of advisor.Client the selector needs,
// narrowed to an interface so tests can stub it.
type AdvisorClient interface {
	Rank(ctx context.Context, taskText string, candidates []model.Tool) ([]advisor.Ranking, error)
}

// Selector combines keyword and advisor scoring per Policy.
type Selector struct {
	advisorClient AdvisorClient
	policy        Policy
}

// New builds a Selector. advisorClient may be nil, in which case every
// Select call uses keyword_fallback (equivalent to an always-Unavailable
// advisor, without the network round trip).
func New(advisorClient AdvisorClient, policy Policy) *Selector {
	return &Selector{advisorClient: advisorClient, policy: policy}
}

// Select ranks candidates against taskText and returns a Selection
// recording which method actually decided the winner (spec §4.9).
func (s *Selector) Select(ctx context.Context, taskText string, tools []model.Tool) (model.Selection, error) {
	start := time.Now()
	sel := model.Selection{ID: uuid.NewString(), TaskText: taskText}

	if len(tools) == 0 {
		return sel, gwerr.New(gwerr.NoToolsAvailable, "no tools available for selection")
	}

	keywordRanked := keyword.Rank(taskText, tools)
	sel.Candidates = keywordRanked

	if s.advisorClient == nil {
		s.fallbackToKeyword(&sel)
		sel.DurationMs = time.Since(start).Milliseconds()
		return sel, nil
	}

	topN := s.policy.TopNForAdvisor
	if topN <= 0 || topN > len(keywordRanked) {
		topN = len(keywordRanked)
	}
	advisorPool := make([]model.Tool, 0, topN)
	for _, c := range keywordRanked[:topN] {
		advisorPool = append(advisorPool, c.Tool)
	}

	advisorStart := time.Now()
	rankings, err := s.advisorClient.Rank(ctx, taskText, advisorPool)
	sel.AdvisorLatencyMs = time.Since(advisorStart).Milliseconds()

	if err != nil {
		// Advisor timeout or unavailability is a low-confidence vote, not a
		// hard failure (DESIGN.md, implementation decision 2): fall back cleanly.
		s.fallbackToKeyword(&sel)
		sel.DurationMs = time.Since(start).Milliseconds()
		return sel, nil
	}

	byFQN := make(map[string]advisor.Ranking, len(rankings))
	for _, r := range rankings {
		byFQN[r.ToolFQN] = r
	}

	for i := range sel.Candidates {
		fqn := sel.Candidates[i].Tool.FullyQualifiedName()
		if r, ok := byFQN[fqn]; ok {
			sel.Candidates[i].AdvisorScore = r.Confidence
			sel.Candidates[i].AdvisorReason = r.Reason
		}
	}

	combined := make([]model.Candidate, len(sel.Candidates))
	copy(combined, sel.Candidates)
	for i := range combined {
		combined[i].Combined = s.policy.AdvisorWeight*combined[i].AdvisorScore +
			(1-s.policy.AdvisorWeight)*combined[i].KeywordScore
	}
	sortByCombinedDescending(combined)

	top := combined[0]
	sel.AdvisorConfidence = top.AdvisorScore

	// The gate is on the candidate that would actually win, not an
	// aggregate across the whole field: a confident winner next to a
	// noisy tail must still go hybrid.
	if top.AdvisorScore < s.policy.MinConfidence {
		sel.LowConfidence = true
		s.fallbackToKeyword(&sel)
		sel.DurationMs = time.Since(start).Milliseconds()
		return sel, nil
	}

	sel.Candidates = combined
	sel.Method = model.MethodHybrid
	markTopChosen(&sel)
	if top.Combined < 0.1 {
		// The winner's advisor confidence cleared the bar but its combined
		// score is still weak; keep the hybrid winner but flag it.
		sel.LowConfidence = true
	}

	sel.DurationMs = time.Since(start).Milliseconds()
	return sel, nil
}

func (s *Selector) fallbackToKeyword(sel *model.Selection) {
	for i := range sel.Candidates {
		sel.Candidates[i].Combined = sel.Candidates[i].KeywordScore
	}
	sortByCombinedDescending(sel.Candidates)
	sel.Method = model.MethodKeywordFallback
	markTopChosen(sel)
}

func sortByCombinedDescending(candidates []model.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Combined > candidates[j].Combined
	})
}

func markTopChosen(sel *model.Selection) {
	for i := range sel.Candidates {
		sel.Candidates[i].Chosen = i == 0
	}
}
