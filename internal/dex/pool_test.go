package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"elasticOps/internal/elastic"
)

type fakeCaller struct {
	code    map[common.Address][]byte
	outputs map[string][]interface{}
	callErr error
	calls   []string
}

func (f *fakeCaller) CodeAt(_ context.Context, account common.Address, _ *big.Int) ([]byte, error) {
	return f.code[account], nil
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	for _, get := range []func() (abi.ABI, error){PoolABI, TicksFeesReaderABI, ERC20ABI} {
		parsed, err := get()
		if err != nil {
			return nil, err
		}
		method, err := parsed.MethodById(msg.Data[:4])
		if err != nil {
			continue
		}
		f.calls = append(f.calls, method.Name)
		values, ok := f.outputs[method.Name]
		if !ok {
			return nil, fmt.Errorf("no output for %s", method.Name)
		}
		return method.Outputs.Pack(values...)
	}
	return nil, fmt.Errorf("unknown selector %x", msg.Data[:4])
}

var (
	testPool  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testKNC   = common.HexToAddress("0x1c954e8fe737f99f68fa1ccda3e51ebdb291948c")
	testUSDC  = common.HexToAddress("0x2791bca1f2de4661ed88a30c99a7a9449aa84174")
	testOwner = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func newPoolCaller() *fakeCaller {
	return &fakeCaller{
		code: map[common.Address][]byte{testPool: {0x60, 0x80}},
		outputs: map[string][]interface{}{
			"token0":            {testKNC},
			"token1":            {testUSDC},
			"swapFeeUnits":      {big.NewInt(100)},
			"tickDistance":      {big.NewInt(8)},
			"getLiquidityState": {big.NewInt(1000), big.NewInt(20), big.NewInt(19)},
			"getPoolState":      {big.NewInt(79228162514264337), big.NewInt(-276324), big.NewInt(-276328), false},
		},
	}
}

func TestReadPoolState(t *testing.T) {
	caller := newPoolCaller()

	state, err := ReadPoolState(context.Background(), caller, testPool)
	if err != nil {
		t.Fatalf("read pool state: %v", err)
	}
	if state.Token0 != testKNC || state.Token1 != testUSDC {
		t.Fatalf("token mismatch: %s %s", state.Token0.Hex(), state.Token1.Hex())
	}
	if state.FeeUnits != 100 || state.TickSpacing != 8 {
		t.Fatalf("fee or spacing mismatch: %d %d", state.FeeUnits, state.TickSpacing)
	}
	if state.CurrentTick != -276324 || state.NearestCurrentTick != -276328 {
		t.Fatalf("tick mismatch: %d %d", state.CurrentTick, state.NearestCurrentTick)
	}
	if state.BaseL.Int64() != 1000 || state.ReinvestL.Int64() != 20 || state.ReinvestLLast.Int64() != 19 {
		t.Fatalf("liquidity mismatch")
	}

	meta := state.Meta()
	if meta.Price.SqrtP != "79228162514264337" || meta.Liquidity.BaseL != "1000" {
		t.Fatalf("meta mismatch: %+v", meta)
	}
}

func TestReadPoolStateNotDeployed(t *testing.T) {
	caller := newPoolCaller()
	caller.code = nil

	_, err := ReadPoolState(context.Background(), caller, testPool)
	if !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("expected ErrPoolNotFound, got %v", err)
	}
	if len(caller.calls) != 0 {
		t.Fatalf("expected no calls, got %v", caller.calls)
	}
}

func TestReadPoolStateCallError(t *testing.T) {
	caller := newPoolCaller()
	rpcErr := errors.New("connection refused")
	caller.callErr = rpcErr

	_, err := ReadPoolState(context.Background(), caller, testPool)
	if !errors.Is(err, rpcErr) {
		t.Fatalf("expected wrapped rpc error, got %v", err)
	}
	if errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("rpc error must not read as pool not found")
	}
}

func TestPoolStatePoolMatchesConfiguredPair(t *testing.T) {
	state, err := ReadPoolState(context.Background(), newPoolCaller(), testPool)
	if err != nil {
		t.Fatalf("read pool state: %v", err)
	}

	usdc := elastic.Token{Address: testUSDC, Decimals: 6, Symbol: "USDC.e"}
	knc := elastic.Token{Address: testKNC, Decimals: 18, Symbol: "KNC"}
	pool, err := state.Pool(usdc, knc)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if pool.Token0.Symbol != "KNC" || pool.Token1.Decimals != 6 {
		t.Fatalf("token metadata mismatch: %+v %+v", pool.Token0, pool.Token1)
	}

	other := elastic.Token{Address: testOwner, Decimals: 18}
	if _, err := state.Pool(usdc, other); err == nil {
		t.Fatalf("expected error for a different pair")
	}
}

func TestHelperReads(t *testing.T) {
	reader := common.HexToAddress("0x8Fd8Cb948965d9305999D767A02bf79833EADbB3")
	caller := &fakeCaller{outputs: map[string][]interface{}{
		"getNearestInitializedTicks": {big.NewInt(-887272), big.NewInt(120)},
		"getTotalFeesOwedToPosition": {big.NewInt(5), big.NewInt(0)},
		"allowance":                  {big.NewInt(42)},
		"decimals":                   {uint8(6)},
		"symbol":                     {"USDC"},
		"name":                       {"USD Coin (PoS)"},
	}}
	ctx := context.Background()

	previous, next, err := NearestInitializedTicks(ctx, caller, reader, testPool, 80)
	if err != nil {
		t.Fatalf("nearest ticks: %v", err)
	}
	if previous != -887272 || next != 120 {
		t.Fatalf("ticks mismatch: %d %d", previous, next)
	}

	fees, err := TotalFeesOwed(ctx, caller, reader, testOwner, testPool, big.NewInt(9))
	if err != nil {
		t.Fatalf("fees owed: %v", err)
	}
	if fees.Amount0.Int64() != 5 || fees.Amount1.Sign() != 0 {
		t.Fatalf("fees mismatch: %+v", fees)
	}

	allowance, err := Allowance(ctx, caller, testUSDC, testOwner, testPool)
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if allowance.Int64() != 42 {
		t.Fatalf("allowance mismatch: %s", allowance)
	}

	meta, err := FetchTokenMeta(ctx, caller, testUSDC, nil)
	if err != nil {
		t.Fatalf("token meta: %v", err)
	}
	if meta.Decimals != 6 || meta.Symbol != "USDC" || meta.Name != "USD Coin (PoS)" {
		t.Fatalf("token meta mismatch: %+v", meta)
	}
}

func TestPackApprove(t *testing.T) {
	data, err := PackApprove(testPool, big.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("pack approve: %v", err)
	}
	parsed, err := ERC20ABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		t.Fatalf("method: %v", err)
	}
	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if method.Name != "approve" || values[0].(common.Address) != testPool || values[1].(*big.Int).Int64() != 1_000_000 {
		t.Fatalf("approve mismatch: %s %v", method.Name, values)
	}
}
