package lending

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

var (
	poolPrefix     = []byte("lending/pool/")
	positionPrefix = []byte("lending/position/")
	vaultPrefix    = []byte("lending/vault/")
)

func poolStateKey(bank common.Address) []byte {
	buf := make([]byte, 0, len(poolPrefix)+common.AddressLength+6)
	buf = append(buf, poolPrefix...)
	buf = append(buf, bank.Bytes()...)
	return append(buf, "/state"...)
}

func poolConfigKey(bank common.Address) []byte {
	buf := make([]byte, 0, len(poolPrefix)+common.AddressLength+7)
	buf = append(buf, poolPrefix...)
	buf = append(buf, bank.Bytes()...)
	return append(buf, "/config"...)
}

func positionKey(bank common.Address, id uint64) []byte {
	buf := make([]byte, 0, len(positionPrefix)+common.AddressLength+8)
	buf = append(buf, positionPrefix...)
	buf = append(buf, bank.Bytes()...)
	return binary.BigEndian.AppendUint64(buf, id)
}

func vaultConfigKey(bank, vault common.Address) []byte {
	buf := make([]byte, 0, len(vaultPrefix)+2*common.AddressLength)
	buf = append(buf, vaultPrefix...)
	buf = append(buf, bank.Bytes()...)
	return append(buf, vault.Bytes()...)
}
