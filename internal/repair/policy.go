package repair

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"cryptodata/internal/quality"
	"cryptodata/internal/schema"
)

// Policy names a repair strategy for one defect kind
type Policy string

const (
	PolicyInterpolateLinear Policy = "interpolate-linear"
	PolicyForwardFill       Policy = "forward-fill"
	PolicyDropRow           Policy = "drop-row"
	PolicyClipToBound       Policy = "clip-to-bound"
	PolicyFlagOnly          Policy = "flag-only"
)

// ParsePolicy validates a policy name from configuration
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyInterpolateLinear, PolicyForwardFill, PolicyDropRow, PolicyClipToBound, PolicyFlagOnly:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown repair policy %q", s)
}

// Action is what was actually done to resolve a defect. A policy may
// degrade, e.g. forward-fill on a flow field records a flagged action.
type Action string

const (
	ActionInterpolated  Action = "interpolated"
	ActionForwardFilled Action = "forward_filled"
	ActionDropped       Action = "dropped"
	ActionClipped       Action = "clipped"
	ActionFlagged       Action = "flagged_only"
)

// ActionRecord is one entry of the append-only repair audit trail
type ActionRecord struct {
	ID        uuid.UUID      `json:"id"`
	Defect    quality.Defect `json:"defect"`
	Action    Action         `json:"action"`
	Policy    Policy         `json:"policy"`
	OldValue  *float64       `json:"old_value,omitempty"`
	NewValue  *float64       `json:"new_value,omitempty"`
	Note      string         `json:"note,omitempty"`
	AppliedAt time.Time      `json:"applied_at"`
}

// PolicyTable maps defect kinds to repair policies
type PolicyTable map[quality.DefectKind]Policy

// DefaultPolicies is the built-in policy table. Stale repeats stay
// flag-only because a flat market is indistinguishable from a stuck feed.
// Non-positive prices interpolate like missing values: the printed value is
// known-impossible, so it is treated as absent.
func DefaultPolicies() PolicyTable {
	return PolicyTable{
		quality.DefectMissingValue:       PolicyInterpolateLinear,
		quality.DefectMissingBar:         PolicyForwardFill,
		quality.DefectOutlier:            PolicyClipToBound,
		quality.DefectStaleRepeat:        PolicyFlagOnly,
		quality.DefectNonPositive:        PolicyInterpolateLinear,
		quality.DefectDuplicateTimestamp: PolicyDropRow,
	}
}

// PoliciesFromConfig overlays configured kind → policy pairs onto the
// default table
func PoliciesFromConfig(overrides map[string]string) (PolicyTable, error) {
	table := DefaultPolicies()
	for kind, name := range overrides {
		policy, err := ParsePolicy(name)
		if err != nil {
			return nil, err
		}
		table[quality.DefectKind(kind)] = policy
	}
	return table, nil
}

// For returns the policy for a kind, defaulting to flag-only for kinds the
// table does not know
func (p PolicyTable) For(kind quality.DefectKind) Policy {
	if policy, ok := p[kind]; ok {
		return policy
	}
	return PolicyFlagOnly
}

// fillable reports whether a field may be forward-filled across a gap.
// Levels persist between observations; flows and prices do not.
func fillable(field schema.Field) bool {
	meta, ok := schema.Lookup(field)
	return ok && meta.Class == schema.ClassLevel
}
