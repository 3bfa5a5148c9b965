package model

import "time"

// SelectionMethod is how the Hybrid Selector arrived at its answer.
type SelectionMethod string

const (
	MethodHybrid           SelectionMethod = "hybrid"
	MethodAdvisorOnly      SelectionMethod = "advisor_only"
	MethodKeywordFallback  SelectionMethod = "keyword_fallback"
)

// Candidate is one tool considered by the Hybrid Selector for a single
// Selection (spec §3 Selection).
type Candidate struct {
	Tool          Tool
	KeywordScore  float64
	AdvisorScore  float64
	AdvisorReason string
	Combined      float64
	Chosen        bool
}

// Selection is a single decision the Hybrid Selector made (spec §3, §4.9).
type Selection struct {
	ID                string
	TaskText          string
	Candidates        []Candidate
	Method            SelectionMethod
	AdvisorLatencyMs  int64
	AdvisorConfidence float64
	DurationMs        int64
	LowConfidence      bool
}

// Top returns the chosen candidate, if any.
func (s Selection) Top() (Candidate, bool) {
	for _, c := range s.Candidates {
		if c.Chosen {
			return c, true
		}
	}
	return Candidate{}, false
}

// Invocation is the record of one end-to-end router call (spec §3).
type Invocation struct {
	ID              string
	TaskText        string
	SelectionID     string
	ArgumentsBuilt  map[string]any
	TargetService   string
	Result          any
	ErrorKind       string
	TotalLatencyMs  int64
	WakeRequired    bool
	WakeLatencyMs   int64
	StartedAt       time.Time
}

// MetricSample is one ingested metric datapoint (spec §3).
type MetricSample struct {
	Name        string
	Tags        map[string]string
	Value       float64
	TimestampMs int64
}

// FeatureFlag is a single named on/off switch (spec §3).
type FeatureFlag struct {
	Category       string
	Name           string
	DefaultValue   bool
	EnvOverrideKey string
}

// FlagSource records where a flag's current value came from, for the
// Control API's GET /flags response.
type FlagSource string

const (
	SourceDefault FlagSource = "default"
	SourceEnv     FlagSource = "env"
	SourceRuntime FlagSource = "runtime"
)
