package state

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	balancePrefix = []byte("balance/")
	supplyPrefix  = []byte("supply/")
)

// Asset symbols are case-sensitive: ETH and ibETH are distinct assets.
func balanceKey(addr common.Address, asset string) []byte {
	asset = strings.TrimSpace(asset)
	buf := make([]byte, 0, len(balancePrefix)+len(asset)+1+common.AddressLength)
	buf = append(buf, balancePrefix...)
	buf = append(buf, asset...)
	buf = append(buf, ':')
	return append(buf, addr.Bytes()...)
}

func supplyKey(asset string) []byte {
	asset = strings.TrimSpace(asset)
	buf := make([]byte, 0, len(supplyPrefix)+len(asset))
	buf = append(buf, supplyPrefix...)
	return append(buf, asset...)
}
