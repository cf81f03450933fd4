package dto

// AgentRequest invokes one AI action. SponsorID and DealID pull persisted context
// into the call and decide where results are stored.
type AgentRequest struct {
	SponsorID *string        `json:"sponsor_id,omitempty"`
	DealID    *string        `json:"deal_id,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	Attach    bool           `json:"attach,omitempty"`
}

// AgentResponse wraps a typed agent result.
type AgentResponse struct {
	Action string `json:"action"`
	Result any    `json:"result"`
	Stored any    `json:"stored,omitempty"`
}
