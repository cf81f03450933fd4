package dto

// DealListQuery captures deal list filters from the query string.
type DealListQuery struct {
	Status    []string `query:"status"`
	EventID   string   `query:"event_id"`
	SponsorID string   `query:"sponsor_id"`
	Page      int      `query:"page"`
	PerPage   int      `query:"per_page"`
}

// DealRequest attaches a sponsor to an event.
type DealRequest struct {
	SponsorID   string  `json:"sponsor_id"`
	EventID     string  `json:"event_id"`
	Status      string  `json:"status,omitempty"`
	Level       string  `json:"level"`
	CashValue   float64 `json:"cash_value"`
	InKindValue float64 `json:"in_kind_value"`
	ContractURL *string `json:"contract_url,omitempty"`
}

// DealPatchRequest edits the commercial terms of a deal.
type DealPatchRequest struct {
	Level       *string  `json:"level,omitempty"`
	CashValue   *float64 `json:"cash_value,omitempty"`
	InKindValue *float64 `json:"in_kind_value,omitempty"`
	ContractURL *string  `json:"contract_url,omitempty"`
}

// StatusRequest moves a deal or deliverable to another status.
type StatusRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes,omitempty"`
}
