package mxe

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Event names of the program ABI.
const (
	GameMineEventName        = "GameMineEvent"
	ComputationFinalizedName = "ComputationFinalized"
)

const programABIJSON = `[
	{
		"type": "function",
		"name": "mine",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "computationOffset", "type": "uint64"},
			{"name": "choice", "type": "bytes32"},
			{"name": "pubKey", "type": "bytes32"},
			{"name": "nonce", "type": "uint128"},
			{"name": "accounts", "type": "address[]"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "mxePublicKey",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "bytes32"}]
	},
	{
		"type": "event",
		"name": "GameMineEvent",
		"anonymous": false,
		"inputs": [
			{"name": "computationOffset", "type": "uint64", "indexed": true},
			{"name": "player", "type": "address", "indexed": true},
			{"name": "status", "type": "uint8", "indexed": false}
		]
	},
	{
		"type": "event",
		"name": "ComputationFinalized",
		"anonymous": false,
		"inputs": [
			{"name": "computationOffset", "type": "uint64", "indexed": true},
			{"name": "success", "type": "bool", "indexed": false}
		]
	}
]`

// ProgramABI is the interface of the on-chain game program.
var ProgramABI = mustParseABI(programABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
