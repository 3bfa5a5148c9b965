package metricsstore

import (
	"time"

	"github.com/kubilitics/mcp-gateway/internal/model"
)

// AlertKind is the closed set of alert conditions the gateway evaluates
// (spec §4.4 "required alert kinds").
type AlertKind string

const (
	AlertHighFailureStreak   AlertKind = "high_failure_streak"
	AlertLowSelectionConfidence AlertKind = "low_selection_confidence"
	AlertAdvisorDegraded     AlertKind = "advisor_degraded"
	AlertResourcePressure    AlertKind = "resource_pressure"
	AlertToolTruncation      AlertKind = "tool_truncation"
)

// AlertRule evaluates one metric name's recent samples and decides
// whether to fire. Evaluate returns ("", false) when the rule does not
// fire for this sample.
type AlertRule struct {
	Kind        AlertKind
	MetricName  string
	Window      Window
	Threshold   float64
	Cooldown    time.Duration
	Comparator  func(value, threshold float64) bool
}

// Alert is a fired alert, handed to subscribers (logging, Control API).
type Alert struct {
	Kind      AlertKind
	Metric    string
	Value     float64
	Threshold float64
	At        time.Time
}

// DefaultRules returns the gateway's built-in alert set (spec §4.4).
func DefaultRules() []AlertRule {
	return []AlertRule{
		{
			Kind: AlertHighFailureStreak, MetricName: "service.failure_streak",
			Window: Window5m, Threshold: 3, Cooldown: 5 * time.Minute,
			Comparator: func(v, t float64) bool { return v >= t },
		},
		{
			Kind: AlertLowSelectionConfidence, MetricName: "selection.confidence",
			Window: Window5m, Threshold: 0.3, Cooldown: 5 * time.Minute,
			Comparator: func(v, t float64) bool { return v < t },
		},
		{
			Kind: AlertAdvisorDegraded, MetricName: "advisor.unavailable_rate",
			Window: Window5m, Threshold: 0.5, Cooldown: 10 * time.Minute,
			Comparator: func(v, t float64) bool { return v >= t },
		},
		{
			Kind: AlertResourcePressure, MetricName: "ledger.headroom_used_pct",
			Window: Window1m, Threshold: 0.9, Cooldown: 2 * time.Minute,
			Comparator: func(v, t float64) bool { return v >= t },
		},
		{
			Kind: AlertToolTruncation, MetricName: "virtualserver.truncated_count",
			Window: Window1h, Threshold: 0, Cooldown: time.Hour,
			Comparator: func(v, t float64) bool { return v > t },
		},
	}
}

// SetRules replaces the store's alert rule set (used by tests and to
// layer custom rules onto DefaultRules()).
func (s *Store) SetRules(rules []AlertRule) {
	s.alertsMu.Lock()
	defer s.alertsMu.Unlock()
	s.rules = rules
}

// Alerts exposes fired alerts to subscribers; callers are expected to
// drain it promptly, mirroring the eventbus's non-blocking-publish
// contract elsewhere in the gateway.
func (s *Store) Alerts() <-chan Alert {
	s.alertsMu.Lock()
	defer s.alertsMu.Unlock()
	if s.alertCh == nil {
		s.alertCh = make(chan Alert, 64)
	}
	return s.alertCh
}

func (s *Store) evaluateAlerts(sample model.MetricSample) {
	s.alertsMu.Lock()
	rules := s.rules
	s.alertsMu.Unlock()

	for _, rule := range rules {
		if rule.MetricName != sample.Name {
			continue
		}
		samples := s.Query(sample.Name, rule.Window)
		value := Average(samples)
		if !rule.Comparator(value, rule.Threshold) {
			continue
		}

		s.alertsMu.Lock()
		last, fired := s.cooldown[string(rule.Kind)]
		now := time.Now()
		if fired && now.Sub(last) < rule.Cooldown {
			s.alertsMu.Unlock()
			continue // deduped: still within cooldown
		}
		s.cooldown[string(rule.Kind)] = now
		ch := s.alertCh
		s.alertsMu.Unlock()

		if ch != nil {
			select {
			case ch <- Alert{Kind: rule.Kind, Metric: sample.Name, Value: value, Threshold: rule.Threshold, At: now}:
			default:
			}
		}
	}
}
