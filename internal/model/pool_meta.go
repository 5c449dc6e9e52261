package model

// PoolMeta captures a pool read with its live liquidity and price fields.
type PoolMeta struct {
	Address     string        `json:"address"`
	Token0      string        `json:"token0"`
	Token1      string        `json:"token1"`
	FeeUnits    uint32        `json:"fee_units"`
	TickSpacing int           `json:"tick_spacing"`
	Liquidity   PoolLiquidity `json:"liquidity"`
	Price       PoolPrice     `json:"price"`
}

// PoolLiquidity includes the getLiquidityState fields.
type PoolLiquidity struct {
	BaseL         string `json:"base_l"`
	ReinvestL     string `json:"reinvest_l"`
	ReinvestLLast string `json:"reinvest_l_last"`
}

// PoolPrice includes the getPoolState fields.
type PoolPrice struct {
	SqrtP              string `json:"sqrt_p"`
	CurrentTick        int    `json:"current_tick"`
	NearestCurrentTick int    `json:"nearest_current_tick"`
	Locked             bool   `json:"locked"`
}
