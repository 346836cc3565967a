package model

// ProjectStats aggregates project counts per lifecycle status
type ProjectStats struct {
	Total            int64            `json:"total"`
	ByStatus         map[string]int64 `json:"by_status"`
	ByPriceStatus    map[string]int64 `json:"by_price_status"`
	PendingContracts int64            `json:"pending_contracts"`
}

// StatusCount is a grouped row from a count query
type StatusCount struct {
	Status string
	Count  int64
}
