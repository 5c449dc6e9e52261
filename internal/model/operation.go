package model

import "time"

// Operation names.
const (
	OpQuote    = "quote"
	OpTrade    = "trade"
	OpCreate   = "create_position"
	OpIncrease = "increase_liquidity"
	OpRemove   = "remove_liquidity"
)

// Operation statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// OperationRecord is one journaled run of an operation. Token amounts are
// raw integers rendered in base 10.
type OperationRecord struct {
	ID         string    `json:"id"`
	Operation  string    `json:"operation"`
	ChainID    uint64    `json:"chain_id"`
	Pool       string    `json:"pool,omitempty"`
	Owner      string    `json:"owner,omitempty"`
	PositionID string    `json:"position_id,omitempty"`
	TickLower  *int      `json:"tick_lower,omitempty"`
	TickUpper  *int      `json:"tick_upper,omitempty"`
	Liquidity  string    `json:"liquidity,omitempty"`
	Amount0    string    `json:"amount0,omitempty"`
	Amount1    string    `json:"amount1,omitempty"`
	Amount0Min string    `json:"amount0_min,omitempty"`
	Amount1Min string    `json:"amount1_min,omitempty"`
	Approvals  []string  `json:"approvals,omitempty"`
	TxHash     string    `json:"tx_hash,omitempty"`
	Status     string    `json:"status"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
