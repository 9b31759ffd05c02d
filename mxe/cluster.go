package mxe

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

var errRemoteKeyUnset = errors.New("remote public key is not set")

// ProgramCluster reads the cluster public key from the program contract.
type ProgramCluster struct {
	contract *bind.BoundContract
}

func NewProgramCluster(program common.Address, caller bind.ContractCaller) *ProgramCluster {
	return &ProgramCluster{
		contract: bind.NewBoundContract(program, ProgramABI, caller, nil, nil),
	}
}

// RemotePublicKey calls mxePublicKey() at the latest block.
func (c *ProgramCluster) RemotePublicKey(ctx context.Context) ([32]byte, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "mxePublicKey"); err != nil {
		return [32]byte{}, fmt.Errorf("failed to call mxePublicKey: %w", err)
	}
	if len(out) != 1 {
		return [32]byte{}, fmt.Errorf("unexpected mxePublicKey output count %d", len(out))
	}

	key := *abi.ConvertType(out[0], new([32]byte)).(*[32]byte)
	if key == ([32]byte{}) {
		return [32]byte{}, errRemoteKeyUnset
	}
	return key, nil
}
