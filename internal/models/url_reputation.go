package models

import "time"

// URLReputationEntry is a persisted conclusive verdict for one URL.
type URLReputationEntry struct {
	ID            string
	URLHash       string
	IsPhishing    bool
	LastCheckedAt time.Time
}

// Verdict is the threat oracle's answer for a single URL.
type Verdict string

const (
	VerdictThreatFound  Verdict = "THREAT_FOUND"
	VerdictSafe         Verdict = "SAFE"
	VerdictInconclusive Verdict = "INCONCLUSIVE"
)

// Conclusive reports whether the verdict may be cached.
func (v Verdict) Conclusive() bool {
	return v == VerdictThreatFound || v == VerdictSafe
}
