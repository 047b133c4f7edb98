package sweepoverdue

// Result reports how many borrow records the sweep transitioned to OVERDUE.
type Result struct {
	Marked int `json:"marked"`
}
