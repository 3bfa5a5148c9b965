// Package keyword implements the gateway's deterministic lexical tool
// scorer (spec §4.7 Keyword Scorer): weighted Jaccard similarity between
// task-text tokens and the normalized tokens of a tool's local name,
// description, and declared keywords, boosted by an exact local-name
// substring match and capped at 1.0, with ties broken by ascending
// keyword count so a narrowly described tool outranks a vaguely
// described one at equal similarity.
//
// This is the fallback path the Hybrid Selector always has available when
// the advisor is unreachable (spec §4.9), so it is written with no
// dependency on anything that can itself fail: no I/O, no randomness, no
// clock reads.
package keyword

import (
	"sort"
	"strings"

	"github.com/kubilitics/mcp-gateway/internal/model"
)

const substringBoost = 0.15

// stopwords is the fixed list dropped during tokenization so filler
// words never inflate the Jaccard overlap between task text and a
// tool's name/description.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "to": true,
	"in": true, "on": true, "for": true, "and": true, "or": true,
	"is": true, "are": true, "was": true, "were": true, "with": true,
	"by": true, "at": true, "from": true, "as": true, "that": true,
	"this": true, "it": true, "be": true, "do": true, "does": true,
}

// Score returns the keyword-only relevance of a tool against free-text
// taskText, in [0, 1].
func Score(taskText string, tool model.Tool) float64 {
	taskTokens := tokenize(taskText)
	toolTokens := DeriveTokens(tool.LocalName, tool.Description, tool.Keywords)
	if len(taskTokens) == 0 || len(toolTokens) == 0 {
		return 0
	}

	score := weightedJaccard(toSet(taskTokens), toSet(toolTokens))

	if tool.LocalName != "" && strings.Contains(strings.ToLower(taskText), strings.ToLower(tool.LocalName)) {
		score += substringBoost
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// Rank scores every candidate tool and returns them sorted by descending
// score; ties are broken by ascending keyword count (spec §4.7 "tie-break
// by keyword-count ascending" — a tool declaring fewer, more specific
// keywords is preferred over one with a broad keyword list at equal
// similarity).
func Rank(taskText string, tools []model.Tool) []model.Candidate {
	out := make([]model.Candidate, 0, len(tools))
	for _, tool := range tools {
		out = append(out, model.Candidate{Tool: tool, KeywordScore: Score(taskText, tool)})
	}
	stableSortByScoreThenKeywordCount(out)
	return out
}

// DeriveTokens normalizes and unions a tool's local name, description,
// and any keywords the upstream server declared into the "derived set of
// normalized tokens" a Tool's keywords field holds (spec §3). The
// upstream client calls this once at discovery time to populate
// model.Tool.Keywords; Score calls it again on every lookup so scoring
// stays correct even for a model.Tool assembled without that field
// pre-populated (as the test fixtures here do).
func DeriveTokens(localName, description string, declared []string) []string {
	set := make(map[string]bool)
	for _, tok := range tokenize(localName) {
		set[tok] = true
	}
	for _, tok := range tokenize(description) {
		set[tok] = true
	}
	for _, kw := range declared {
		for _, tok := range tokenize(kw) {
			set[tok] = true
		}
	}
	out := make([]string, 0, len(set))
	for tok := range set {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

func toSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = true
	}
	return set
}

func weightedJaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if b[w] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func stableSortByScoreThenKeywordCount(candidates []model.Candidate) {
	// Insertion sort: the candidate lists here are small (a handful of
	// tools per task), and stability is easier to reason about than
	// wiring a custom less-func into sort.Slice for a two-key order.
	for i := 1; i < len(candidates); i++ {
		j := i
		for j > 0 && less(candidates[j], candidates[j-1]) {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
			j--
		}
	}
}

func less(a, b model.Candidate) bool {
	if a.KeywordScore != b.KeywordScore {
		return a.KeywordScore > b.KeywordScore
	}
	return len(a.Tool.Keywords) < len(b.Tool.Keywords)
}
