// Package domain provides core business rules for the leads bounded context.
package domain

// Acquisition statuses form a DAG rooted at StatusNew. Direct forward jumps
// are permitted; the two terminal statuses can never be left.
const (
	StatusNew        = "new"
	StatusContacted  = "contacted"
	StatusInterested = "interested"
	StatusQualified  = "qualified"
	StatusConverted  = "converted"
	StatusLost       = "lost"
)

// Workflow phases are the coarse-grained buckets shown to call-center
// operators, derived from the fine-grained status plus withdrawal metadata.
const (
	PhaseNewIntake  = "new_intake"
	PhaseFollowUp   = "follow_up"
	PhaseWithdrawal = "withdrawal"
)

// statusTransitions is the legal transition table. A status maps to the set
// of statuses reachable from it in one step.
var statusTransitions = map[string]map[string]bool{
	StatusNew: {
		StatusContacted:  true,
		StatusInterested: true,
		StatusQualified:  true,
		StatusConverted:  true,
		StatusLost:       true,
	},
	StatusContacted: {
		StatusInterested: true,
		StatusQualified:  true,
		StatusConverted:  true,
		StatusLost:       true,
	},
	StatusInterested: {
		StatusQualified: true,
		StatusConverted: true,
		StatusLost:      true,
	},
	StatusQualified: {
		StatusConverted: true,
		StatusLost:      true,
	},
	StatusConverted: {},
	StatusLost:      {},
}

var knownStatuses = map[string]bool{
	StatusNew:        true,
	StatusContacted:  true,
	StatusInterested: true,
	StatusQualified:  true,
	StatusConverted:  true,
	StatusLost:       true,
}

var knownPhases = map[string]bool{
	PhaseNewIntake:  true,
	PhaseFollowUp:   true,
	PhaseWithdrawal: true,
}

// IsKnownStatus reports whether the status is part of the acquisition enum.
func IsKnownStatus(status string) bool {
	return knownStatuses[status]
}

// IsKnownPhase reports whether the phase is part of the workflow enum.
func IsKnownPhase(phase string) bool {
	return knownPhases[phase]
}

// IsTerminal returns true for statuses that can never be left.
func IsTerminal(status string) bool {
	return status == StatusConverted || status == StatusLost
}

// CanTransition reports whether moving from current to target is legal.
// A no-op transition (current == target) is never legal; callers treat it
// as already-satisfied before consulting the table.
func CanTransition(current, target string) bool {
	next, ok := statusTransitions[current]
	if !ok {
		return false
	}
	return next[target]
}

// DerivePhase computes the workflow phase implied by a status.
//
// Entering lost with no withdrawal reason recorded parks the lead in the
// withdrawal phase so an operator can attach a reason. Active leads sit in
// new_intake until first contact, then follow_up. A converted lead keeps its
// last phase; it is frozen along with the status.
func DerivePhase(status string, contacted bool, currentPhase string) string {
	switch status {
	case StatusLost:
		return PhaseWithdrawal
	case StatusConverted:
		if currentPhase != "" {
			return currentPhase
		}
		return PhaseFollowUp
	case StatusNew:
		return PhaseNewIntake
	default:
		if contacted {
			return PhaseFollowUp
		}
		return PhaseNewIntake
	}
}

// ValidateStateCombination checks that a (status, phase) pair is not
// contradictory. Returns a non-empty reason string when the combination is
// invalid.
func ValidateStateCombination(status, phase string) string {
	if phase == PhaseWithdrawal && status != StatusLost {
		return "withdrawal phase requires lost status"
	}
	if status == StatusLost && phase != PhaseWithdrawal {
		return "lost status requires withdrawal phase"
	}
	if status == StatusNew && phase == PhaseFollowUp {
		return "a new lead cannot be in follow_up"
	}
	return ""
}

// Lead classification enums.

const (
	SourceWebsite    = "website"
	SourceReferral   = "referral"
	SourceWalkIn     = "walk_in"
	SourceCallCenter = "call_center"
	SourceSelfServe  = "self_serve"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

var knownSources = map[string]bool{
	SourceWebsite:    true,
	SourceReferral:   true,
	SourceWalkIn:     true,
	SourceCallCenter: true,
	SourceSelfServe:  true,
}

var knownPriorities = map[string]bool{
	PriorityLow:    true,
	PriorityMedium: true,
	PriorityHigh:   true,
	PriorityUrgent: true,
}

// IsKnownSource reports whether the source is part of the enum.
func IsKnownSource(source string) bool {
	return knownSources[source]
}

// IsKnownPriority reports whether the priority is part of the enum.
func IsKnownPriority(priority string) bool {
	return knownPriorities[priority]
}
