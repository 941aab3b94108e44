package common

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Ledger is the state surface native components read and write. It is
// satisfied by core/state.Manager.
type Ledger interface {
	Balance(addr ethcommon.Address, asset string) (*big.Int, error)
	Transfer(from, to ethcommon.Address, asset string, amount *big.Int) error
	Mint(to ethcommon.Address, asset string, amount *big.Int) error
	Burn(from ethcommon.Address, asset string, amount *big.Int) error
	TotalSupply(asset string) (*big.Int, error)

	KVPut(key []byte, value interface{}) error
	KVGet(key []byte, out interface{}) (bool, error)
	KVDelete(key []byte) error
}
