package ticket

import (
	"strings"
)

// State is the normalized lifecycle state of a sale record. The source data
// stores status as free text with many synonyms, so all branching works on
// this tag instead of raw strings.
type State int

const (
	StateUnredeemed State = iota
	StateUsed
	StateCancelled
	StateUnknown
)

func (s State) String() string {
	switch s {
	case StateUnredeemed:
		return "unredeemed"
	case StateUsed:
		return "used"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Default synonym sets, matching what the legacy sellers write into the
// status column. Overridable through config.
var (
	DefaultUsedStatuses      = []string{"utilizado", "used", "usado", "check-in", "checkin"}
	DefaultCancelledStatuses = []string{"cancelado", "cancelled", "cancel"}
	DefaultConfirmedStatuses = []string{"confirmado", "pago", "paid", "ativo", "active", "valid", "válido", "aprovado", "approved"}
)

// StatusUsed is the canonical value written back when a ticket is redeemed.
const StatusUsed = "utilizado"

// Classifier maps a raw status string to a State. A missing status counts as
// unredeemed: old sales predate the status column and must stay scannable.
type Classifier struct {
	used      map[string]struct{}
	cancelled map[string]struct{}
	confirmed map[string]struct{}
}

func NewClassifier(used, cancelled, confirmed []string) *Classifier {
	return &Classifier{
		used:      toSet(used),
		cancelled: toSet(cancelled),
		confirmed: toSet(confirmed),
	}
}

func NewDefaultClassifier() *Classifier {
	return NewClassifier(DefaultUsedStatuses, DefaultCancelledStatuses, DefaultConfirmedStatuses)
}

func (c *Classifier) Classify(raw string) State {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return StateUnredeemed
	}
	if _, ok := c.used[normalized]; ok {
		return StateUsed
	}
	if _, ok := c.cancelled[normalized]; ok {
		return StateCancelled
	}
	if _, ok := c.confirmed[normalized]; ok {
		return StateUnredeemed
	}
	return StateUnknown
}

// TerminalSynonyms returns every status value that must block a redemption,
// in normalized form. The sale store uses this as the guard set of its
// conditional update.
func (c *Classifier) TerminalSynonyms() []string {
	out := make([]string, 0, len(c.used)+len(c.cancelled))
	for s := range c.used {
		out = append(out, s)
	}
	for s := range c.cancelled {
		out = append(out, s)
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	return set
}
