package workflow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elasticOps/internal/config"
	"elasticOps/internal/dex"
	"elasticOps/internal/elastic"
	"elasticOps/internal/model"
	"elasticOps/internal/subgraph"
)

var (
	usdc      = elastic.Token{Address: common.HexToAddress(config.DefaultToken0Address), Decimals: 6, Symbol: "USDC.e"}
	knc       = elastic.Token{Address: common.HexToAddress(config.DefaultToken1Address), Decimals: 18, Symbol: "KNC"}
	testOwner = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	testNow   = time.Unix(1_700_000_000, 0)
)

type fakeChain struct {
	code       map[common.Address][]byte
	outputs    map[string][]interface{}
	errs       map[string]error
	allowances map[common.Address]*big.Int
	calls      []ethereum.CallMsg
}

func (f *fakeChain) CodeAt(_ context.Context, account common.Address, _ *big.Int) ([]byte, error) {
	return f.code[account], nil
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls = append(f.calls, msg)
	for _, get := range []func() (abi.ABI, error){dex.PoolABI, dex.TicksFeesReaderABI, dex.ERC20ABI, elastic.QuoterABI} {
		parsed, err := get()
		if err != nil {
			return nil, err
		}
		method, err := parsed.MethodById(msg.Data[:4])
		if err != nil {
			continue
		}
		if err := f.errs[method.Name]; err != nil {
			return nil, err
		}
		if method.Name == "allowance" {
			allowance := f.allowances[*msg.To]
			if allowance == nil {
				allowance = new(big.Int)
			}
			return method.Outputs.Pack(allowance)
		}
		values, ok := f.outputs[method.Name]
		if !ok {
			return nil, fmt.Errorf("no output for %s", method.Name)
		}
		return method.Outputs.Pack(values...)
	}
	return nil, fmt.Errorf("unknown selector %x", msg.Data[:4])
}

func (f *fakeChain) methodCalls(name string) []ethereum.CallMsg {
	var out []ethereum.CallMsg
	for _, get := range []func() (abi.ABI, error){dex.PoolABI, dex.TicksFeesReaderABI, dex.ERC20ABI, elastic.QuoterABI} {
		parsed, _ := get()
		method, ok := parsed.Methods[name]
		if !ok {
			continue
		}
		for _, call := range f.calls {
			if string(call.Data[:4]) == string(method.ID) {
				out = append(out, call)
			}
		}
	}
	return out
}

type sentCall struct {
	to   common.Address
	data []byte
}

type fakeWallet struct {
	chain    *fakeChain
	sent     []sentCall
	index    map[common.Hash]int
	sendErr  func(to common.Address, data []byte) error
	revertAt map[int]bool
	mintID   *big.Int
}

func newFakeWallet(chain *fakeChain) *fakeWallet {
	return &fakeWallet{chain: chain, index: map[common.Hash]int{}, revertAt: map[int]bool{}}
}

func (w *fakeWallet) From() common.Address { return testOwner }

func (w *fakeWallet) Send(_ context.Context, to common.Address, data []byte, value *big.Int) (*types.Transaction, error) {
	if w.sendErr != nil {
		if err := w.sendErr(to, data); err != nil {
			return nil, err
		}
	}
	n := len(w.sent)
	w.sent = append(w.sent, sentCall{to: to, data: data})
	tx := types.NewTx(&types.LegacyTx{Nonce: uint64(n), To: &to, Value: value, Data: data, Gas: 21000})
	w.index[tx.Hash()] = n

	if amount, ok := decodeApprove(data); ok && !w.revertAt[n] {
		w.chain.allowances[to] = amount
	}
	return tx, nil
}

func (w *fakeWallet) WaitMined(_ context.Context, tx *types.Transaction) (*types.Receipt, error) {
	n, ok := w.index[tx.Hash()]
	if !ok {
		return nil, errors.New("unknown tx")
	}
	receipt := &types.Receipt{TxHash: tx.Hash(), BlockNumber: big.NewInt(int64(100 + n)), Status: types.ReceiptStatusSuccessful}
	if w.revertAt[n] {
		receipt.Status = types.ReceiptStatusFailed
		return receipt, nil
	}
	if w.mintID != nil && *tx.To() == testSettings().PositionManager {
		receipt.Logs = []*types.Log{{
			Address: *tx.To(),
			Topics: []common.Hash{
				transferTopic,
				{},
				common.BytesToHash(testOwner.Bytes()),
				common.BigToHash(w.mintID),
			},
		}}
	}
	return receipt, nil
}

func decodeApprove(data []byte) (*big.Int, bool) {
	parsed, err := dex.ERC20ABI()
	if err != nil || len(data) < 4 {
		return nil, false
	}
	method, err := parsed.MethodById(data[:4])
	if err != nil || method.Name != "approve" {
		return nil, false
	}
	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, false
	}
	return values[1].(*big.Int), true
}

type fakeIndex struct {
	positions []subgraph.Position
	err       error
	calls     int
}

func (f *fakeIndex) OpenPositions(context.Context, common.Address, common.Address) ([]subgraph.Position, error) {
	f.calls++
	return f.positions, f.err
}

type memoryJournal struct {
	records []model.OperationRecord
}

func (m *memoryJournal) PutOperations(_ context.Context, records []model.OperationRecord) error {
	m.records = append(m.records, records...)
	return nil
}

func testSettings() Settings {
	return Settings{
		ChainID:         137,
		Factory:         common.HexToAddress(config.DefaultFactory),
		Quoter:          common.HexToAddress(config.DefaultQuoter),
		Router:          common.HexToAddress(config.DefaultRouter),
		PositionManager: common.HexToAddress(config.DefaultPositionManager),
		TicksFeesReader: common.HexToAddress(config.DefaultTicksFeesReader),
		InitCodeHash:    common.HexToHash(config.DefaultInitCodeHash),
		Token0:          usdc,
		Token1:          knc,
		FeeUnits:        config.DefaultFeeUnits,
		Slippage:        elastic.BasisPoints(50),
		Deadline:        10 * time.Minute,
		BandSpacings:    3,
		RemoveShare:     elastic.BasisPoints(1000),
	}
}

func testPoolAddress(t *testing.T) common.Address {
	t.Helper()
	s := testSettings()
	addr, err := elastic.ComputePoolAddress(s.Factory, s.Token0.Address, s.Token1.Address, s.FeeUnits, s.InitCodeHash)
	require.NoError(t, err)
	return addr
}

// newTestChain serves a KNC/USDC.e pool with tick spacing 8 at tick 100.
func newTestChain(t *testing.T) *fakeChain {
	t.Helper()
	sqrtP, err := elastic.GetSqrtRatioAtTick(100)
	require.NoError(t, err)
	return &fakeChain{
		code: map[common.Address][]byte{testPoolAddress(t): {0x60, 0x80}},
		outputs: map[string][]interface{}{
			"token0":                     {knc.Address},
			"token1":                     {usdc.Address},
			"swapFeeUnits":               {big.NewInt(config.DefaultFeeUnits)},
			"tickDistance":               {big.NewInt(8)},
			"getLiquidityState":          {big.NewInt(5_000_000_000), big.NewInt(1000), big.NewInt(990)},
			"getPoolState":               {sqrtP, big.NewInt(100), big.NewInt(96), false},
			"getNearestInitializedTicks": {big.NewInt(-887272), big.NewInt(887272)},
			"getTotalFeesOwedToPosition": {big.NewInt(0), big.NewInt(11)},
		},
		errs:       map[string]error{},
		allowances: map[common.Address]*big.Int{},
	}
}

func newTestService(t *testing.T, chain *fakeChain, wallet Wallet, opts ...Option) (*Service, *memoryJournal) {
	t.Helper()
	journal := &memoryJournal{}
	all := []Option{WithJournal(journal), WithClock(func() time.Time { return testNow })}
	if wallet != nil {
		all = append(all, WithWallet(wallet))
	}
	svc, err := New(testSettings(), chain, append(all, opts...)...)
	require.NoError(t, err)
	return svc, journal
}

func positionManagerABI(t *testing.T) abi.ABI {
	t.Helper()
	parsed, err := elastic.PositionManagerABI()
	require.NoError(t, err)
	return parsed
}

func TestCreatePositionBandAndApprovals(t *testing.T) {
	chain := newTestChain(t)
	wallet := newFakeWallet(chain)
	wallet.mintID = big.NewInt(4242)
	svc, journal := newTestService(t, chain, wallet)

	result, err := svc.CreatePosition(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 80, result.TickLower)
	assert.Equal(t, 128, result.TickUpper)
	assert.Equal(t, 0, (result.TickUpper-result.TickLower)%8)
	assert.Equal(t, 48, result.TickUpper-result.TickLower)
	require.NotNil(t, result.PositionID)
	assert.Equal(t, int64(4242), result.PositionID.Int64())

	require.Len(t, wallet.sent, 3)
	require.Len(t, result.Approvals, 2)

	// pool token0 is KNC; approvals follow pool token order
	amount0, ok := decodeApprove(wallet.sent[0].data)
	require.True(t, ok)
	assert.Equal(t, knc.Address, wallet.sent[0].to)
	assert.Equal(t, 0, amount0.Cmp(result.Amounts.Amount0))
	amount1, ok := decodeApprove(wallet.sent[1].data)
	require.True(t, ok)
	assert.Equal(t, usdc.Address, wallet.sent[1].to)
	assert.Equal(t, 0, amount1.Cmp(result.Amounts.Amount1))

	mint := wallet.sent[2]
	assert.Equal(t, testSettings().PositionManager, mint.to)
	var params elastic.MintParams
	name, err := elastic.DecodeCall(positionManagerABI(t), mint.data, &params)
	require.NoError(t, err)
	assert.Equal(t, "mint", name)
	assert.Equal(t, knc.Address, params.Token0)
	assert.Equal(t, int64(80), params.TickLower.Int64())
	assert.Equal(t, int64(128), params.TickUpper.Int64())
	assert.Equal(t, int64(-887272), params.TicksPrevious[0].Int64())
	assert.Equal(t, testOwner, params.Recipient)
	assert.Equal(t, testNow.Add(10*time.Minute).Unix(), params.Deadline.Int64())
	assert.Equal(t, 0, params.Amount0Desired.Cmp(result.Amounts.Amount0))
	assert.True(t, params.Amount0Min.Cmp(params.Amount0Desired) <= 0)
	assert.True(t, params.Amount1Min.Cmp(params.Amount1Desired) <= 0)

	require.Len(t, journal.records, 1)
	rec := journal.records[0]
	assert.Equal(t, model.OpCreate, rec.Operation)
	assert.Equal(t, model.StatusSucceeded, rec.Status)
	assert.Equal(t, "4242", rec.PositionID)
	assert.Len(t, rec.Approvals, 2)
	assert.Equal(t, result.TxHash.Hex(), rec.TxHash)
}

func TestCreatePositionBudgetIsOneUnitOfConfiguredToken0(t *testing.T) {
	chain := newTestChain(t)
	wallet := newFakeWallet(chain)
	svc, _ := newTestService(t, chain, wallet)

	result, err := svc.CreatePosition(context.Background())
	require.NoError(t, err)

	// configured token0 is the pool's token1: the KNC side is one USDC.e
	// converted at the pool price, so it stays near 10^6 raw
	sqrtP, err := elastic.GetSqrtRatioAtTick(100)
	require.NoError(t, err)
	want := new(big.Int).Mul(big.NewInt(1_000_000), elastic.Q192)
	want.Quo(want, new(big.Int).Mul(sqrtP, sqrtP))
	diff := new(big.Int).Sub(result.Amounts.Amount0, want)
	assert.True(t, diff.CmpAbs(big.NewInt(2)) <= 0, "amount0 %s budget %s", result.Amounts.Amount0, want)
}

func TestAllowanceSufficientSkipsApproval(t *testing.T) {
	chain := newTestChain(t)
	plenty := new(big.Int).Lsh(big.NewInt(1), 200)
	chain.allowances[knc.Address] = plenty
	chain.allowances[usdc.Address] = plenty
	wallet := newFakeWallet(chain)
	svc, _ := newTestService(t, chain, wallet)

	result, err := svc.CreatePosition(context.Background())
	require.NoError(t, err)
	require.Len(t, wallet.sent, 1)
	assert.Empty(t, result.Approvals)
	assert.Equal(t, testSettings().PositionManager, wallet.sent[0].to)
}

func TestAllowanceRaisedToExactAmount(t *testing.T) {
	chain := newTestChain(t)
	chain.allowances[knc.Address] = new(big.Int).Lsh(big.NewInt(1), 200)
	chain.allowances[usdc.Address] = big.NewInt(1)
	wallet := newFakeWallet(chain)
	svc, _ := newTestService(t, chain, wallet)

	result, err := svc.CreatePosition(context.Background())
	require.NoError(t, err)
	require.Len(t, wallet.sent, 2)
	require.Len(t, result.Approvals, 1)

	amount, ok := decodeApprove(wallet.sent[0].data)
	require.True(t, ok)
	assert.Equal(t, usdc.Address, wallet.sent[0].to)
	assert.Equal(t, 0, amount.Cmp(result.Amounts.Amount1))
	// read before the approval and read back after it
	assert.Len(t, chain.methodCalls("allowance"), 3)
}

func TestApprovalFailureAborts(t *testing.T) {
	chain := newTestChain(t)
	wallet := newFakeWallet(chain)
	wallet.revertAt[0] = true
	svc, journal := newTestService(t, chain, wallet)

	_, err := svc.CreatePosition(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrApprovalFailed)
	assert.Len(t, wallet.sent, 1)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, model.OpCreate, opErr.Op)

	require.Len(t, journal.records, 1)
	assert.Equal(t, model.StatusFailed, journal.records[0].Status)
	assert.Equal(t, "approval_failed", journal.records[0].ErrorKind)
	assert.Len(t, journal.records[0].Approvals, 1)
}

func TestMintRevertSurfaces(t *testing.T) {
	chain := newTestChain(t)
	wallet := newFakeWallet(chain)
	wallet.revertAt[2] = true
	svc, journal := newTestService(t, chain, wallet)

	result, err := svc.CreatePosition(context.Background())
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrTransactionReverted)
	assert.NotErrorIs(t, err, ErrApprovalFailed)

	require.Len(t, journal.records, 1)
	assert.Equal(t, "transaction_reverted", journal.records[0].ErrorKind)
	assert.NotEmpty(t, journal.records[0].TxHash)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	require.NotNil(t, opErr.Result)
	assert.Equal(t, model.OpCreate, opErr.Result.Operation)
	assert.Len(t, opErr.Result.Approvals, 2)
	assert.Equal(t, journal.records[0].TxHash, opErr.Result.TxHash.Hex())
	assert.Equal(t, uint64(102), opErr.Result.Block)
}

func TestEstimateRevertSurfaces(t *testing.T) {
	chain := newTestChain(t)
	wallet := newFakeWallet(chain)
	wallet.sendErr = func(to common.Address, _ []byte) error {
		if to == testSettings().PositionManager {
			return errors.New("estimate gas: execution reverted: Price slippage check")
		}
		return nil
	}
	svc, _ := newTestService(t, chain, wallet)

	_, err := svc.CreatePosition(context.Background())
	assert.ErrorIs(t, err, ErrTransactionReverted)
	assert.Equal(t, "transaction_reverted", KindName(err))
}

func TestPoolNotFound(t *testing.T) {
	chain := newTestChain(t)
	chain.code = nil
	wallet := newFakeWallet(chain)
	svc, journal := newTestService(t, chain, wallet)

	_, err := svc.CreatePosition(context.Background())
	assert.ErrorIs(t, err, ErrPoolNotFound)
	assert.Empty(t, wallet.sent)
	require.Len(t, journal.records, 1)
	assert.Equal(t, "pool_not_found", journal.records[0].ErrorKind)
}

func TestRPCUnavailable(t *testing.T) {
	chain := newTestChain(t)
	chain.errs["getPoolState"] = errors.New("dial tcp 127.0.0.1:8545: connect: connection refused")
	svc, _ := newTestService(t, chain, nil)

	_, err := svc.Quote(context.Background())
	assert.ErrorIs(t, err, ErrRPCUnavailable)
}

func TestRemoveWithoutOpenPosition(t *testing.T) {
	chain := newTestChain(t)
	wallet := newFakeWallet(chain)
	index := &fakeIndex{positions: []subgraph.Position{
		{ID: big.NewInt(3), Liquidity: new(big.Int), TickLower: 80, TickUpper: 128},
	}}
	svc, journal := newTestService(t, chain, wallet, WithPositionIndex(index))

	result, err := svc.RemoveLiquidity(context.Background())
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrNoOpenPosition)
	assert.Equal(t, 1, index.calls)
	assert.Empty(t, wallet.sent)

	require.Len(t, journal.records, 1)
	assert.Equal(t, "no_open_position", journal.records[0].ErrorKind)
}

func TestIncreaseLiquidityWithoutOpenPosition(t *testing.T) {
	chain := newTestChain(t)
	wallet := newFakeWallet(chain)
	index := &fakeIndex{}
	svc, journal := newTestService(t, chain, wallet, WithPositionIndex(index))

	result, err := svc.IncreaseLiquidity(context.Background())
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrNoOpenPosition)
	assert.Equal(t, 1, index.calls)
	assert.Empty(t, wallet.sent)
	assert.Empty(t, chain.methodCalls("allowance"))

	require.Len(t, journal.records, 1)
	assert.Equal(t, model.OpIncrease, journal.records[0].Operation)
	assert.Equal(t, "no_open_position", journal.records[0].ErrorKind)
}

func TestIncreaseLiquidityPriceAboveRange(t *testing.T) {
	chain := newTestChain(t)
	wallet := newFakeWallet(chain)
	index := &fakeIndex{positions: []subgraph.Position{
		{ID: big.NewInt(4), Liquidity: big.NewInt(7), TickLower: 0, TickUpper: 48},
	}}
	svc, journal := newTestService(t, chain, wallet, WithPositionIndex(index))

	_, err := svc.IncreaseLiquidity(context.Background())
	assert.ErrorIs(t, err, elastic.ErrPriceAboveRange)
	assert.Empty(t, wallet.sent)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, int64(4), opErr.Result.PositionID.Int64())
	assert.Equal(t, 0, opErr.Result.TickLower)
	assert.Equal(t, 48, opErr.Result.TickUpper)

	require.Len(t, journal.records, 1)
	assert.Equal(t, "internal", journal.records[0].ErrorKind)
}

func TestPositionIndexUnavailable(t *testing.T) {
	chain := newTestChain(t)
	wallet := newFakeWallet(chain)
	index := &fakeIndex{err: errors.New("graphql: indexer unavailable")}
	svc, journal := newTestService(t, chain, wallet, WithPositionIndex(index))

	_, err := svc.RemoveLiquidity(context.Background())
	assert.ErrorIs(t, err, ErrIndexUnavailable)
	assert.NotErrorIs(t, err, ErrRPCUnavailable)
	assert.Equal(t, "index_unavailable", KindName(err))
	assert.Empty(t, wallet.sent)
	require.Len(t, journal.records, 1)
	assert.Equal(t, "index_unavailable", journal.records[0].ErrorKind)

	index.err = context.DeadlineExceeded
	_, err = svc.IncreaseLiquidity(context.Background())
	assert.NotErrorIs(t, err, ErrIndexUnavailable)
	assert.Equal(t, "canceled", KindName(err))
}

func TestRemoveLiquiditySelectsLowestID(t *testing.T) {
	chain := newTestChain(t)
	wallet := newFakeWallet(chain)
	liquidity := big.NewInt(1_000_000_000_000)
	index := &fakeIndex{positions: []subgraph.Position{
		{ID: big.NewInt(9), Liquidity: big.NewInt(5), TickLower: 0, TickUpper: 200},
		{ID: big.NewInt(5), Liquidity: liquidity, TickLower: 80, TickUpper: 128},
		{ID: big.NewInt(2), Liquidity: new(big.Int), TickLower: 80, TickUpper: 128},
	}}
	svc, _ := newTestService(t, chain, wallet, WithPositionIndex(index))

	result, err := svc.RemoveLiquidity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.PositionID.Int64())
	assert.Equal(t, int64(100_000_000_000), result.Liquidity.Int64())
	assert.Equal(t, int64(11), result.FeesOwed.Amount1.Int64())
	assert.True(t, result.FeesCollected)
	assert.True(t, result.Minimums.Amount0.Cmp(result.Amounts.Amount0) <= 0)
	assert.True(t, result.Minimums.Amount1.Cmp(result.Amounts.Amount1) <= 0)

	require.Len(t, wallet.sent, 1)
	calls, err := elastic.DecodeMulticall(wallet.sent[0].data)
	require.NoError(t, err)
	require.Len(t, calls, 4)

	var remove elastic.RemoveLiquidityParams
	name, err := elastic.DecodeCall(positionManagerABI(t), calls[0], &remove)
	require.NoError(t, err)
	assert.Equal(t, "removeLiquidity", name)
	assert.Equal(t, int64(5), remove.TokenId.Int64())
	assert.Equal(t, 0, remove.Liquidity.Cmp(result.Liquidity))

	var burn elastic.BurnRTokenParams
	name, err = elastic.DecodeCall(positionManagerABI(t), calls[1], &burn)
	require.NoError(t, err)
	assert.Equal(t, "burnRTokens", name)
}

func TestRemoveLiquidityWithoutFees(t *testing.T) {
	chain := newTestChain(t)
	chain.outputs["getTotalFeesOwedToPosition"] = []interface{}{big.NewInt(0), big.NewInt(0)}
	wallet := newFakeWallet(chain)
	index := &fakeIndex{positions: []subgraph.Position{
		{ID: big.NewInt(5), Liquidity: big.NewInt(1_000_000_000_000), TickLower: 80, TickUpper: 128},
	}}
	svc, _ := newTestService(t, chain, wallet, WithPositionIndex(index))

	result, err := svc.RemoveLiquidity(context.Background())
	require.NoError(t, err)
	assert.False(t, result.FeesCollected)
	calls, err := elastic.DecodeMulticall(wallet.sent[0].data)
	require.NoError(t, err)
	assert.Len(t, calls, 3)
}

func TestIncreaseLiquidityKeepsRange(t *testing.T) {
	chain := newTestChain(t)
	wallet := newFakeWallet(chain)
	index := &fakeIndex{positions: []subgraph.Position{
		{ID: big.NewInt(12), Liquidity: big.NewInt(7), TickLower: 48, TickUpper: 160},
		{ID: big.NewInt(8), Liquidity: big.NewInt(7), TickLower: 64, TickUpper: 144},
	}}
	svc, _ := newTestService(t, chain, wallet, WithPositionIndex(index))

	result, err := svc.IncreaseLiquidity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(8), result.PositionID.Int64())
	assert.Equal(t, 64, result.TickLower)
	assert.Equal(t, 144, result.TickUpper)

	last := wallet.sent[len(wallet.sent)-1]
	var params elastic.IncreaseLiquidityParams
	name, err := elastic.DecodeCall(positionManagerABI(t), last.data, &params)
	require.NoError(t, err)
	assert.Equal(t, "addLiquidity", name)
	assert.Equal(t, int64(8), params.TokenId.Int64())
	assert.Equal(t, 0, params.Amount1Desired.Cmp(result.Amounts.Amount1))
}

func quoteOutput() elastic.QuoteOutput {
	returned, _ := new(big.Int).SetString("1234567890123456789", 10)
	return elastic.QuoteOutput{
		UsedAmount:              big.NewInt(1_000_000),
		ReturnedAmount:          returned,
		AfterSqrtP:              new(big.Int).Set(elastic.Q96),
		InitializedTicksCrossed: 1,
		GasEstimate:             big.NewInt(87000),
	}
}

func TestQuoteDisplay(t *testing.T) {
	chain := newTestChain(t)
	chain.outputs["quoteExactInputSingle"] = []interface{}{quoteOutput()}
	svc, journal := newTestService(t, chain, nil)

	quote, err := svc.Quote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", quote.UsedAmount().String())
	assert.Equal(t, "1.234567890123456789", quote.ReturnedAmount().String())
	assert.Equal(t, "1.234567890123456789", quote.ExecutionPrice().String())
	assert.Equal(t, "0.000000000001", quote.AfterPrice().String())
	assert.Equal(t, int64(1_000_000), quote.AmountIn.Int64())

	calls := chain.methodCalls("quoteExactInputSingle")
	require.Len(t, calls, 1)
	assert.Equal(t, testSettings().Quoter, *calls[0].To)
	quoterABI, err := elastic.QuoterABI()
	require.NoError(t, err)
	var params elastic.QuoteExactInputSingleParams
	_, err = elastic.DecodeCall(quoterABI, calls[0].Data, &params)
	require.NoError(t, err)
	assert.Equal(t, usdc.Address, params.TokenIn)
	assert.Equal(t, knc.Address, params.TokenOut)
	assert.Equal(t, int64(config.DefaultFeeUnits), params.FeeUnits.Int64())

	require.Len(t, journal.records, 1)
	assert.Equal(t, model.OpQuote, journal.records[0].Operation)
	assert.Empty(t, journal.records[0].Owner)
}

func TestTradeFromQuote(t *testing.T) {
	chain := newTestChain(t)
	chain.outputs["quoteExactInputSingle"] = []interface{}{quoteOutput()}
	wallet := newFakeWallet(chain)
	svc, _ := newTestService(t, chain, wallet)

	quote, err := svc.Quote(context.Background())
	require.NoError(t, err)
	result, err := svc.Trade(context.Background(), quote)
	require.NoError(t, err)

	require.Len(t, wallet.sent, 2)
	amount, ok := decodeApprove(wallet.sent[0].data)
	require.True(t, ok)
	assert.Equal(t, usdc.Address, wallet.sent[0].to)
	assert.Equal(t, int64(1_000_000), amount.Int64())

	routerABI, err := elastic.RouterABI()
	require.NoError(t, err)
	var swap elastic.ExactInputSingleParams
	name, err := elastic.DecodeCall(routerABI, wallet.sent[1].data, &swap)
	require.NoError(t, err)
	assert.Equal(t, "swapExactInputSingle", name)
	assert.Equal(t, testSettings().Router, wallet.sent[1].to)

	want := new(big.Int).Mul(quote.Output.ReturnedAmount, big.NewInt(10000))
	want.Quo(want, big.NewInt(10050))
	assert.Equal(t, 0, swap.MinAmountOut.Cmp(want))
	assert.Equal(t, 0, result.Minimums.Amount1.Cmp(want))
	assert.Equal(t, testOwner, swap.Recipient)
}

func TestStateChangesNeedWallet(t *testing.T) {
	chain := newTestChain(t)
	svc, _ := newTestService(t, chain, nil)

	_, err := svc.CreatePosition(context.Background())
	require.Error(t, err)
	assert.Equal(t, "internal", KindName(err))
}

func TestSettingsFromConfig(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	settings, err := SettingsFromConfig(cfg, 137)
	require.NoError(t, err)
	assert.Equal(t, testSettings(), settings)

	cfg.Token1.Address = cfg.Token0.Address
	_, err = SettingsFromConfig(cfg, 137)
	assert.Error(t, err)
}
