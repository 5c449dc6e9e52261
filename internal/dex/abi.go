package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const poolABIJSON = `[
  {
    "inputs": [],
    "name": "token0",
    "outputs": [{"internalType": "contract IERC20", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "token1",
    "outputs": [{"internalType": "contract IERC20", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "swapFeeUnits",
    "outputs": [{"internalType": "uint24", "name": "", "type": "uint24"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "tickDistance",
    "outputs": [{"internalType": "int24", "name": "", "type": "int24"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getLiquidityState",
    "outputs": [
      {"internalType": "uint128", "name": "baseL", "type": "uint128"},
      {"internalType": "uint128", "name": "reinvestL", "type": "uint128"},
      {"internalType": "uint128", "name": "reinvestLLast", "type": "uint128"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getPoolState",
    "outputs": [
      {"internalType": "uint160", "name": "sqrtP", "type": "uint160"},
      {"internalType": "int24", "name": "currentTick", "type": "int24"},
      {"internalType": "int24", "name": "nearestCurrentTick", "type": "int24"},
      {"internalType": "bool", "name": "locked", "type": "bool"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const ticksFeesReaderABIJSON = `[
  {
    "inputs": [
      {"internalType": "contract IPoolStorage", "name": "pool", "type": "address"},
      {"internalType": "int24", "name": "tick", "type": "int24"}
    ],
    "name": "getNearestInitializedTicks",
    "outputs": [
      {"internalType": "int24", "name": "previous", "type": "int24"},
      {"internalType": "int24", "name": "next", "type": "int24"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "contract IBasePositionManager", "name": "posManager", "type": "address"},
      {"internalType": "contract IPoolStorage", "name": "pool", "type": "address"},
      {"internalType": "uint256", "name": "tokenId", "type": "uint256"}
    ],
    "name": "getTotalFeesOwedToPosition",
    "outputs": [
      {"internalType": "uint256", "name": "token0Owed", "type": "uint256"},
      {"internalType": "uint256", "name": "token1Owed", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	poolABI     abi.ABI
	poolABIOnce sync.Once
	poolABIErr  error

	ticksFeesReaderABI     abi.ABI
	ticksFeesReaderABIOnce sync.Once
	ticksFeesReaderABIErr  error
)

// PoolABI returns the parsed pool ABI.
func PoolABI() (abi.ABI, error) {
	poolABIOnce.Do(func() {
		poolABI, poolABIErr = abi.JSON(strings.NewReader(poolABIJSON))
	})
	return poolABI, poolABIErr
}

// TicksFeesReaderABI returns the parsed ticks/fees reader helper ABI.
func TicksFeesReaderABI() (abi.ABI, error) {
	ticksFeesReaderABIOnce.Do(func() {
		ticksFeesReaderABI, ticksFeesReaderABIErr = abi.JSON(strings.NewReader(ticksFeesReaderABIJSON))
	})
	return ticksFeesReaderABI, ticksFeesReaderABIErr
}
