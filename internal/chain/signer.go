package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"go.uber.org/zap"
)

// Backend is the node surface the signer needs to submit and track
// transactions. *Client satisfies it.
type Backend interface {
	bind.DeployBackend
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// FeeCaps are the flat EIP-1559 fee parameters used for every transaction.
type FeeCaps struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// GweiFeeCaps converts gwei amounts into FeeCaps.
func GweiFeeCaps(maxFeeGwei, maxPriorityFeeGwei uint64) FeeCaps {
	gwei := big.NewInt(params.GWei)
	return FeeCaps{
		MaxFeePerGas:         new(big.Int).Mul(new(big.Int).SetUint64(maxFeeGwei), gwei),
		MaxPriorityFeePerGas: new(big.Int).Mul(new(big.Int).SetUint64(maxPriorityFeeGwei), gwei),
	}
}

// Signer signs and submits dynamic fee transactions from a single key.
type Signer struct {
	backend Backend
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
	fees    FeeCaps
	logger  *zap.Logger
}

// NewSigner parses a hex private key (with or without 0x).
func NewSigner(backend Backend, hexKey string, chainID *big.Int, fees FeeCaps, logger *zap.Logger) (*Signer, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is nil")
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("chain id is required")
	}
	if fees.MaxFeePerGas == nil || fees.MaxPriorityFeePerGas == nil {
		return nil, fmt.Errorf("fee caps are required")
	}
	if fees.MaxPriorityFeePerGas.Cmp(fees.MaxFeePerGas) > 0 {
		return nil, fmt.Errorf("max priority fee %s exceeds max fee %s", fees.MaxPriorityFeePerGas, fees.MaxFeePerGas)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Signer{
		backend: backend,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		chainID: new(big.Int).Set(chainID),
		fees:    fees,
		logger:  logger,
	}, nil
}

// From returns the signer's address.
func (s *Signer) From() common.Address {
	return s.from
}

// Send builds, signs and broadcasts a transaction calling to with data.
// The gas limit comes from eth_estimateGas, so a call that would revert
// fails here before anything is broadcast.
func (s *Signer) Send(ctx context.Context, to common.Address, data []byte, value *big.Int) (*types.Transaction, error) {
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := s.backend.PendingNonceAt(ctx, s.from)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}

	gas, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:      s.from,
		To:        &to,
		GasFeeCap: s.fees.MaxFeePerGas,
		GasTipCap: s.fees.MaxPriorityFeePerGas,
		Value:     value,
		Data:      data,
	})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.chainID,
		Nonce:     nonce,
		GasTipCap: s.fees.MaxPriorityFeePerGas,
		GasFeeCap: s.fees.MaxFeePerGas,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}

	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send tx: %w", err)
	}

	s.logger.Debug("tx sent",
		zap.String("hash", signed.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", gas),
	)
	return signed, nil
}

// WaitMined blocks until tx is included or ctx is done.
func (s *Signer) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, s.backend, tx)
}
