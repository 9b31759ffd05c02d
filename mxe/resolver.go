package mxe

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// SettlementEvent is a decoded program event from a finalized receipt.
type SettlementEvent struct {
	Name      string         `json:"name"`
	Status    uint8          `json:"status"`
	HasStatus bool           `json:"-"`
	Fields    map[string]any `json:"fields"`
	Log       types.Log      `json:"-"`
}

// EventResolver decodes program events out of receipts.
type EventResolver struct {
	abi     abi.ABI
	program common.Address
}

func NewEventResolver(program common.Address) *EventResolver {
	return &EventResolver{abi: ProgramABI, program: program}
}

// Resolve returns the last log of receipt decodable as eventName. It returns
// false, not an error, when there is no such log.
func (r *EventResolver) Resolve(receipt *types.Receipt, eventName string) (*SettlementEvent, bool) {
	return r.ResolveMatching(receipt, eventName, nil)
}

// ResolveMatching is Resolve restricted to events accepted by match. A nil
// match accepts every event.
func (r *EventResolver) ResolveMatching(receipt *types.Receipt, eventName string, match func(*SettlementEvent) bool) (*SettlementEvent, bool) {
	if receipt == nil || len(receipt.Logs) == 0 {
		return nil, false
	}
	event, ok := r.abi.Events[eventName]
	if !ok {
		return nil, false
	}

	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}

	var found *SettlementEvent
	for _, lg := range receipt.Logs {
		if lg == nil || lg.Removed || lg.Address != r.program {
			continue
		}
		if len(lg.Topics) != len(indexed)+1 || lg.Topics[0] != event.ID {
			continue
		}

		fields := make(map[string]any)
		if err := r.abi.UnpackIntoMap(fields, eventName, lg.Data); err != nil {
			continue
		}
		if err := abi.ParseTopicsIntoMap(fields, indexed, lg.Topics[1:]); err != nil {
			continue
		}

		candidate := &SettlementEvent{Name: eventName, Fields: fields, Log: *lg}
		if status, ok := fields["status"].(uint8); ok {
			candidate.Status = status
			candidate.HasStatus = true
		}
		if match != nil && !match(candidate) {
			continue
		}
		found = candidate
	}
	return found, found != nil
}

// ComputationOffset returns the indexed computation offset of the event, if any.
func (e *SettlementEvent) ComputationOffset() (uint64, bool) {
	offset, ok := e.Fields["computationOffset"].(uint64)
	return offset, ok
}
