package supervisor

import (
	"sort"
	"sync"

	"github.com/kubilitics/mcp-gateway/internal/gwerr"
	"github.com/kubilitics/mcp-gateway/internal/model"
)

// Budget is the total resource envelope the Supervisor admits RUNNING
// services against (spec §4.3 "wake ordering under resource pressure").
type Budget struct {
	MemBytes   int64
	CPUMillis  int64
	HeadroomPct float64 // fraction of Budget kept free, e.g. 0.85 means admit up to 85%
}

// admissionRequest is one pending wake/start, ordered for the queue.
type admissionRequest struct {
	service  string
	priority model.Priority
	seq      int // registration order, used as a tie-breaker (DESIGN.md, implementation decision 1)
}

// Ledger tracks reserved resources against a Budget and decides whether a
// new service may move into RUNNING (spec §4.3, §4.5).
//
// Grounded on the same registration-order-as-tiebreak idea used by
// kubilitics-backend/internal/addon/registry/search.go for stable ranking,
// applied here to wake-priority ordering instead of search relevance.
type Ledger struct {
	mu       sync.Mutex
	budget   Budget
	reserved map[string]model.Resources
	seqOf    map[string]int
	nextSeq  int
}

// NewLedger builds a Ledger against a fixed Budget.
func NewLedger(budget Budget) *Ledger {
	if budget.HeadroomPct <= 0 {
		budget.HeadroomPct = 1.0
	}
	return &Ledger{
		budget:   budget,
		reserved: make(map[string]model.Resources),
		seqOf:    make(map[string]int),
	}
}

// RegisterOrder records a service's registration sequence number, used to
// break wake-priority ties deterministically.
func (l *Ledger) RegisterOrder(service string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seqOf[service]; ok {
		return
	}
	l.seqOf[service] = l.nextSeq
	l.nextSeq++
}

func (l *Ledger) usedLocked() (mem, cpu int64) {
	for _, r := range l.reserved {
		mem += r.MemReservationBytes
		cpu += r.CPUReservationMillis
	}
	return
}

// TryReserve admits a service's resource reservation if it fits within the
// headroom-adjusted budget. Returns a ResourceExhausted error otherwise.
func (l *Ledger) TryReserve(service string, res model.Resources) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, already := l.reserved[service]; already {
		return nil // idempotent: already admitted
	}

	usedMem, usedCPU := l.usedLocked()
	memCap := int64(float64(l.budget.MemBytes) * l.budget.HeadroomPct)
	cpuCap := int64(float64(l.budget.CPUMillis) * l.budget.HeadroomPct)

	if l.budget.MemBytes > 0 && usedMem+res.MemReservationBytes > memCap {
		return gwerr.Newf(gwerr.ServiceUnavailable, "resource exhausted: %s would exceed memory headroom", service)
	}
	if l.budget.CPUMillis > 0 && usedCPU+res.CPUReservationMillis > cpuCap {
		return gwerr.Newf(gwerr.ServiceUnavailable, "resource exhausted: %s would exceed cpu headroom", service)
	}

	l.reserved[service] = res
	return nil
}

// Release frees a service's reservation (on sleep, stop, or failure).
func (l *Ledger) Release(service string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.reserved, service)
}

// WakeCandidate is one service eligible to be considered for admission,
// passed in by the Supervisor when resource pressure forces ordering.
type WakeCandidate struct {
	Service  string
	Priority model.Priority
}

var priorityRank = map[model.Priority]int{
	model.PriorityHigh:   0,
	model.PriorityNormal: 1,
	model.PriorityLow:    2,
}

// OrderWakeCandidates sorts candidates by priority (high first), then by
// registration order ascending (DESIGN.md, implementation decision 1).
func (l *Ledger) OrderWakeCandidates(candidates []WakeCandidate) []WakeCandidate {
	l.mu.Lock()
	seq := make(map[string]int, len(candidates))
	for _, c := range candidates {
		seq[c.Service] = l.seqOf[c.Service]
	}
	l.mu.Unlock()

	out := make([]WakeCandidate, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := priorityRank[out[i].Priority], priorityRank[out[j].Priority]
		if pi != pj {
			return pi < pj
		}
		return seq[out[i].Service] < seq[out[j].Service]
	})
	return out
}
