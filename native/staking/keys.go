package staking

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

var (
	rewardsPoolPrefix = []byte("staking/rewards/")
	chefPrefix        = []byte("staking/chef/")
)

func rewardsPoolKey(pool common.Address) []byte {
	buf := make([]byte, 0, len(rewardsPoolPrefix)+common.AddressLength)
	buf = append(buf, rewardsPoolPrefix...)
	return append(buf, pool.Bytes()...)
}

func rewardsAccountKey(pool, holder common.Address) []byte {
	buf := rewardsPoolKey(pool)
	buf = append(buf, "/account/"...)
	return append(buf, holder.Bytes()...)
}

func chefKey(chef common.Address) []byte {
	buf := make([]byte, 0, len(chefPrefix)+common.AddressLength)
	buf = append(buf, chefPrefix...)
	return append(buf, chef.Bytes()...)
}

func chefPoolKey(chef common.Address, pid uint64) []byte {
	buf := chefKey(chef)
	buf = append(buf, "/pool/"...)
	return binary.BigEndian.AppendUint64(buf, pid)
}

func chefUserKey(chef common.Address, pid uint64, holder common.Address) []byte {
	buf := chefPoolKey(chef, pid)
	buf = append(buf, "/user/"...)
	return append(buf, holder.Bytes()...)
}
