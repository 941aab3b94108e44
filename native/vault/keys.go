package vault

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

var goblinPrefix = []byte("vault/goblin/")

func goblinKey(goblin common.Address) []byte {
	buf := make([]byte, 0, len(goblinPrefix)+common.AddressLength)
	buf = append(buf, goblinPrefix...)
	return append(buf, goblin.Bytes()...)
}

func shareKey(goblin common.Address, positionID uint64) []byte {
	buf := goblinKey(goblin)
	buf = append(buf, "/share/"...)
	return binary.BigEndian.AppendUint64(buf, positionID)
}
