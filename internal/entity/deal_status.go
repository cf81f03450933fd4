package entity

import "fmt"

// DealStatus is the sponsorship pipeline stage of a deal.
type DealStatus string

const (
	DealLead            DealStatus = "Lead"
	DealContacted       DealStatus = "Contacted"
	DealQualified       DealStatus = "Qualified"
	DealProposal        DealStatus = "Proposal"
	DealNegotiating     DealStatus = "Negotiating"
	DealSigned          DealStatus = "Signed"
	DealActivationReady DealStatus = "Activation Ready"
	DealPaid            DealStatus = "Paid"
	DealChurned         DealStatus = "Churned"
)

// AllDealStatuses lists every stage in funnel order.
var AllDealStatuses = []DealStatus{
	DealLead,
	DealContacted,
	DealQualified,
	DealProposal,
	DealNegotiating,
	DealSigned,
	DealActivationReady,
	DealPaid,
	DealChurned,
}

// Valid reports whether the status is part of the enumeration.
func (s DealStatus) Valid() bool {
	for _, candidate := range AllDealStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// ParseDealStatus validates a raw status string.
func ParseDealStatus(raw string) (DealStatus, error) {
	status := DealStatus(raw)
	if !status.Valid() {
		return "", fmt.Errorf("unknown deal status %q", raw)
	}
	return status, nil
}

// TransitionOrigin tells the guard who is asking for a transition.
type TransitionOrigin int

const (
	// OriginManual is a user action such as a board drop or an API call.
	OriginManual TransitionOrigin = iota
	// OriginSystem is an automatic transition such as the readiness bump.
	OriginSystem
)

// GuardResult is the outcome of a transition check.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error returns the guard result as an error if not allowed, nil otherwise.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

var openStages = []DealStatus{DealLead, DealContacted, DealQualified, DealProposal, DealNegotiating}

// dealTransitions maps each status to the statuses it may move to.
var dealTransitions = map[DealStatus]map[DealStatus]TransitionOrigin{
	DealLead:            openStageTargets(DealLead),
	DealContacted:       openStageTargets(DealContacted),
	DealQualified:       openStageTargets(DealQualified),
	DealProposal:        openStageTargets(DealProposal),
	DealNegotiating:     openStageTargets(DealNegotiating),
	DealSigned:          {DealPaid: OriginManual, DealChurned: OriginManual, DealActivationReady: OriginSystem},
	DealActivationReady: {DealPaid: OriginManual, DealChurned: OriginManual},
	DealPaid:            {},
	DealChurned:         {DealLead: OriginManual},
}

func openStageTargets(from DealStatus) map[DealStatus]TransitionOrigin {
	targets := map[DealStatus]TransitionOrigin{
		DealSigned:  OriginManual,
		DealChurned: OriginManual,
	}
	for _, stage := range openStages {
		if stage != from {
			targets[stage] = OriginManual
		}
	}
	return targets
}

// AllowedTransitions returns the statuses reachable from the given status by the origin.
func AllowedTransitions(from DealStatus, origin TransitionOrigin) []DealStatus {
	targets := dealTransitions[from]
	out := make([]DealStatus, 0, len(targets))
	for _, status := range AllDealStatuses {
		required, ok := targets[status]
		if !ok {
			continue
		}
		if required == OriginSystem && origin != OriginSystem {
			continue
		}
		out = append(out, status)
	}
	return out
}

// CanTransition evaluates whether a deal may move from one status to another.
// System-only targets (Activation Ready) are rejected for manual requests.
func CanTransition(from, to DealStatus, origin TransitionOrigin) GuardResult {
	if !from.Valid() || !to.Valid() {
		return GuardResult{Reason: fmt.Sprintf("unknown status in transition %q -> %q", from, to)}
	}
	if from == to {
		return GuardResult{Reason: fmt.Sprintf("deal is already %s", to)}
	}
	required, ok := dealTransitions[from][to]
	if !ok {
		return GuardResult{Reason: fmt.Sprintf("cannot move deal from %s to %s", from, to)}
	}
	if required == OriginSystem && origin != OriginSystem {
		return GuardResult{Reason: fmt.Sprintf("%s is set automatically and cannot be chosen manually", to)}
	}
	return GuardResult{Allowed: true}
}
