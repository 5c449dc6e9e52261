package subgraph

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/machinebox/graphql"
	"go.uber.org/zap"
)

// pageSize is the largest page the hosted graph node serves.
const pageSize = 1000

const positionsQuery = `query positions($owner: Bytes!, $pool: String!, $first: Int!, $after: ID!) {
  positions(
    first: $first
    orderBy: id
    orderDirection: asc
    where: {owner: $owner, pool: $pool, liquidity_gt: 0, id_gt: $after}
  ) {
    id
    liquidity
    tickLower { tickIdx }
    tickUpper { tickIdx }
  }
}`

// Position is an open position as indexed by the subgraph.
type Position struct {
	ID        *big.Int
	Liquidity *big.Int
	TickLower int
	TickUpper int
	Owner     common.Address
	Pool      common.Address
}

type positionRow struct {
	ID        string `json:"id"`
	Liquidity string `json:"liquidity"`
	TickLower struct {
		TickIdx string `json:"tickIdx"`
	} `json:"tickLower"`
	TickUpper struct {
		TickIdx string `json:"tickIdx"`
	} `json:"tickUpper"`
}

type positionsResponse struct {
	Positions []positionRow `json:"positions"`
}

// Client queries the positions subgraph.
type Client struct {
	gql    *graphql.Client
	logger *zap.Logger
}

// NewClient creates a subgraph client for endpoint. A nil httpClient uses
// http.DefaultClient.
func NewClient(endpoint string, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("subgraph url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []graphql.ClientOption{}
	if httpClient != nil {
		opts = append(opts, graphql.WithHTTPClient(httpClient))
	}
	gql := graphql.NewClient(endpoint, opts...)
	gql.Log = func(s string) { logger.Debug("subgraph", zap.String("msg", s)) }
	return &Client{gql: gql, logger: logger}, nil
}

// OpenPositions returns owner's positions in pool with non-zero liquidity,
// ordered by position id ascending.
func (c *Client) OpenPositions(ctx context.Context, owner, pool common.Address) ([]Position, error) {
	var (
		rows  []positionRow
		after string
	)
	for {
		req := graphql.NewRequest(positionsQuery)
		req.Var("owner", strings.ToLower(owner.Hex()))
		req.Var("pool", strings.ToLower(pool.Hex()))
		req.Var("first", pageSize)
		req.Var("after", after)

		var resp positionsResponse
		if err := c.gql.Run(ctx, req, &resp); err != nil {
			return nil, fmt.Errorf("query positions: %w", err)
		}
		rows = append(rows, resp.Positions...)
		if len(resp.Positions) < pageSize {
			break
		}
		after = resp.Positions[len(resp.Positions)-1].ID
	}

	positions := make([]Position, 0, len(rows))
	for _, raw := range rows {
		id, ok := new(big.Int).SetString(raw.ID, 10)
		if !ok {
			return nil, fmt.Errorf("invalid position id %q", raw.ID)
		}
		liquidity, ok := new(big.Int).SetString(raw.Liquidity, 10)
		if !ok {
			return nil, fmt.Errorf("position %s: invalid liquidity %q", raw.ID, raw.Liquidity)
		}
		if liquidity.Sign() == 0 {
			continue
		}
		lower, err := strconv.Atoi(raw.TickLower.TickIdx)
		if err != nil {
			return nil, fmt.Errorf("position %s: tick lower: %w", raw.ID, err)
		}
		upper, err := strconv.Atoi(raw.TickUpper.TickIdx)
		if err != nil {
			return nil, fmt.Errorf("position %s: tick upper: %w", raw.ID, err)
		}
		positions = append(positions, Position{
			ID:        id,
			Liquidity: liquidity,
			TickLower: lower,
			TickUpper: upper,
			Owner:     owner,
			Pool:      pool,
		})
	}

	sort.Slice(positions, func(i, j int) bool {
		return positions[i].ID.Cmp(positions[j].ID) < 0
	})

	c.logger.Debug("open positions",
		zap.String("owner", owner.Hex()),
		zap.String("pool", pool.Hex()),
		zap.Int("returned", len(rows)),
		zap.Int("open", len(positions)),
	)
	return positions, nil
}
