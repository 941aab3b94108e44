package common

import ethcommon "github.com/ethereum/go-ethereum/common"

// Ownable gates admin-only operations on a single owner address.
type Ownable struct {
	owner ethcommon.Address
}

func NewOwnable(owner ethcommon.Address) Ownable {
	return Ownable{owner: owner}
}

func (o *Ownable) Owner() ethcommon.Address { return o.owner }

// OnlyOwner returns ErrNotOwner unless caller owns the component.
func (o *Ownable) OnlyOwner(caller ethcommon.Address) error {
	if caller != o.owner {
		return ErrNotOwner
	}
	return nil
}

// TransferOwnership hands the component to next.
func (o *Ownable) TransferOwnership(caller, next ethcommon.Address) error {
	if err := o.OnlyOwner(caller); err != nil {
		return err
	}
	o.owner = next
	return nil
}
