package elastic

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SortTokens orders a token pair the way the factory stores it.
func SortTokens(tokenA, tokenB common.Address) (common.Address, common.Address, error) {
	switch bytes.Compare(tokenA.Bytes(), tokenB.Bytes()) {
	case 0:
		return common.Address{}, common.Address{}, fmt.Errorf("identical token addresses: %s", tokenA.Hex())
	case -1:
		return tokenA, tokenB, nil
	default:
		return tokenB, tokenA, nil
	}
}

// ComputePoolAddress derives the CREATE2 address of the pool for a token
// pair and fee tier. The token arguments may be given in either order.
func ComputePoolAddress(factory, tokenA, tokenB common.Address, feeUnits uint32, initCodeHash common.Hash) (common.Address, error) {
	token0, token1, err := SortTokens(tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}

	salt, err := poolSalt(token0, token1, feeUnits)
	if err != nil {
		return common.Address{}, err
	}

	var salt32 [32]byte
	copy(salt32[:], salt.Bytes())
	return crypto.CreateAddress2(factory, salt32, initCodeHash.Bytes()), nil
}

var saltArgs = func() abi.Arguments {
	addressTy, _ := abi.NewType("address", "", nil)
	uint24Ty, _ := abi.NewType("uint24", "", nil)
	return abi.Arguments{{Type: addressTy}, {Type: addressTy}, {Type: uint24Ty}}
}()

func poolSalt(token0, token1 common.Address, feeUnits uint32) (common.Hash, error) {
	encoded, err := saltArgs.Pack(token0, token1, new(big.Int).SetUint64(uint64(feeUnits)))
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack pool salt: %w", err)
	}
	return crypto.Keccak256Hash(encoded), nil
}
