package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kubilitics/mcp-gateway/internal/model"
)

func TestScoreZeroWhenNoOverlap(t *testing.T) {
	tool := model.Tool{Keywords: []string{"billing", "invoice"}}
	assert.Zero(t, Score("search for documents", tool))
}

func TestScoreRewardsOverlap(t *testing.T) {
	tool := model.Tool{Keywords: []string{"search", "document", "index"}}
	score := Score("search documents in the index", tool)
	assert.Greater(t, score, 0.0)
}

func TestScoreAppliesLocalNameSubstringBoost(t *testing.T) {
	base := model.Tool{LocalName: "archive", Description: "zips files", Keywords: []string{"search"}}
	withoutName := Score("please search now", model.Tool{Description: base.Description, Keywords: base.Keywords})
	withName := Score("please archive search now", base)

	assert.Greater(t, withName, withoutName)
}

func TestScoreCapsAtOne(t *testing.T) {
	tool := model.Tool{LocalName: "search", Keywords: []string{"search"}}
	assert.LessOrEqual(t, Score("search search", tool), 1.0)
}

func TestScoreFoldsInNameAndDescription(t *testing.T) {
	tool := model.Tool{LocalName: "invoices", Description: "manage customer billing records"}
	score := Score("look up billing records", tool)
	assert.Greater(t, score, 0.0)
}

func TestScoreDropsStopwords(t *testing.T) {
	tool := model.Tool{LocalName: "lookup", Description: "the tool for and of billing"}
	withStopwords := Score("the billing for and of the records", tool)
	withoutStopwords := Score("billing records", tool)
	assert.Equal(t, withoutStopwords, withStopwords)
}

func TestRankOrdersByDescendingScore(t *testing.T) {
	tools := []model.Tool{
		{LocalName: "weak", Keywords: []string{"zzz"}},
		{LocalName: "strong", Keywords: []string{"search", "document"}},
	}
	ranked := Rank("search documents", tools)
	assert.Equal(t, "strong", ranked[0].Tool.LocalName)
}

func TestRankTieBreaksByAscendingKeywordCount(t *testing.T) {
	tools := []model.Tool{
		// Every "broad" keyword normalises to the single token "search", so
		// both tools score 0.5 and only the keyword count separates them.
		{LocalName: "broad", Keywords: []string{"search", "the search", "search for", "for the search"}},
		{LocalName: "narrow", Keywords: []string{"search"}},
	}
	ranked := Rank("search", tools)
	require := assert.New(t)
	require.Equal("narrow", ranked[0].Tool.LocalName, "equal similarity should prefer fewer, more specific keywords")
}

func TestEmptyInputsScoreZero(t *testing.T) {
	assert.Zero(t, Score("", model.Tool{Keywords: []string{"x"}}))
	assert.Zero(t, Score("task text", model.Tool{}))
}
