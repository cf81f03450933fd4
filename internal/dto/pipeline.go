package dto

// DragRequest starts dragging a deal card.
type DragRequest struct {
	DealID string `json:"deal_id"`
}

// ColumnRequest names a board column for hover and drop.
type ColumnRequest struct {
	Status string `json:"status"`
}
