package main

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"elasticOps/internal/config"
	"elasticOps/internal/elastic"
	"elasticOps/internal/model"
	"elasticOps/internal/workflow"
)

func testPrintSettings() workflow.Settings {
	return workflow.Settings{
		Token0: elastic.Token{Address: common.HexToAddress(config.DefaultToken0Address), Decimals: 6, Symbol: "USDC.e"},
		Token1: elastic.Token{Address: common.HexToAddress(config.DefaultToken1Address), Decimals: 18, Symbol: "KNC"},
	}
}

func removeResult() *workflow.Result {
	return &workflow.Result{
		Operation:  model.OpRemove,
		PositionID: big.NewInt(5),
		TickLower:  80,
		TickUpper:  128,
		Liquidity:  big.NewInt(1000),
		Amounts:    elastic.TokenAmounts{Amount0: big.NewInt(2_000_000_000_000_000_000), Amount1: big.NewInt(1_500_000)},
		Minimums:   elastic.TokenAmounts{Amount0: big.NewInt(1_990_000_000_000_000_000), Amount1: big.NewInt(1_492_500)},
		FeesOwed:   elastic.TokenAmounts{Amount0: new(big.Int), Amount1: new(big.Int)},
		TxHash:     common.HexToHash("0x01"),
		Block:      42,
	}
}

func TestPrintPositionFees(t *testing.T) {
	var buf bytes.Buffer
	printPosition(&buf, testPrintSettings(), removeResult())
	out := buf.String()
	if strings.Contains(out, "fees collected") {
		t.Fatalf("zero fees printed as collected:\n%s", out)
	}
	if !strings.Contains(out, "amounts:        2 KNC / 1.5 USDC.e") {
		t.Fatalf("amounts not in pool token order:\n%s", out)
	}

	r := removeResult()
	r.FeesOwed.Amount1 = big.NewInt(11)
	r.FeesCollected = true
	buf.Reset()
	printPosition(&buf, testPrintSettings(), r)
	if !strings.Contains(buf.String(), "fees collected: 0 KNC / 0.000011 USDC.e") {
		t.Fatalf("collected fees missing:\n%s", buf.String())
	}
}

func TestPrintPartial(t *testing.T) {
	r := &workflow.Result{
		Approvals: []common.Hash{common.HexToHash("0xaa")},
		TxHash:    common.HexToHash("0xbb"),
		Block:     7,
	}
	err := fmt.Errorf("create: %w", &workflow.OpError{Kind: workflow.ErrTransactionReverted, Err: errors.New("tx failed"), Result: r})

	var buf bytes.Buffer
	printPartial(&buf, err)
	out := buf.String()
	if !strings.Contains(out, "approval tx:    "+r.Approvals[0].Hex()) {
		t.Fatalf("approval missing:\n%s", out)
	}
	if !strings.Contains(out, r.TxHash.Hex()+" (block 7)") {
		t.Fatalf("tx missing:\n%s", out)
	}

	buf.Reset()
	printPartial(&buf, errors.New("plain"))
	if buf.Len() != 0 {
		t.Fatalf("unexpected output for plain error: %q", buf.String())
	}
}
