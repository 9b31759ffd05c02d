package mxe

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/confidential-move-client/interfaces"
	"github.com/stretchr/testify/require"
)

var testProgram = common.HexToAddress("0x00000000000000000000000000000000000a11ce")

func settlementLog(t *testing.T, program common.Address, offset uint64, player common.Address, status uint8) *types.Log {
	t.Helper()
	event := ProgramABI.Events[GameMineEventName]
	data, err := event.Inputs.NonIndexed().Pack(status)
	require.NoError(t, err)

	return &types.Log{
		Address: program,
		Topics: []common.Hash{
			event.ID,
			common.BigToHash(new(big.Int).SetUint64(offset)),
			common.BytesToHash(player.Bytes()),
		},
		Data: data,
	}
}

type staticKeys struct {
	kp  *interfaces.KeyPair
	err error
}

func (s *staticKeys) KeyPair(context.Context, interfaces.Identity) (*interfaces.KeyPair, error) {
	if s.err != nil {
		return nil, s.err
	}
	kp := *s.kp
	return &kp, nil
}

type messageOnlyIdentity struct{}

func (messageOnlyIdentity) PublicIdentifier() []byte { return common.HexToAddress("0x01").Bytes() }

func (messageOnlyIdentity) SignMessage(context.Context, []byte) ([]byte, error) {
	return []byte("sig"), nil
}
