package mxe

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// DefaultClusterOffset selects the computation cluster serving the program.
const DefaultClusterOffset uint32 = 1078779259

// CompDefName is the computation definition queued by a move.
const CompDefName = "mine"

const (
	seedComputation   = "ComputationAccount"
	seedCluster       = "Cluster"
	seedMXE           = "MXEAccount"
	seedMempool       = "Mempool"
	seedExecutingPool = "Execpool"
	seedCompDef       = "ComputationDefinitionAccount"
)

// AccountSet is every account a queued computation touches, in call order.
type AccountSet struct {
	Computation   common.Address
	Cluster       common.Address
	MXE           common.Address
	Mempool       common.Address
	ExecutingPool common.Address
	CompDef       common.Address
	Payer         common.Address
}

// List returns the accounts in the order the program expects them.
func (a AccountSet) List() []common.Address {
	return []common.Address{a.Computation, a.Cluster, a.MXE, a.Mempool, a.ExecutingPool, a.CompDef, a.Payer}
}

// DeriveAccounts computes the account set of one computation.
func DeriveAccounts(program common.Address, clusterOffset uint32, computationOffset uint64, payer common.Address) AccountSet {
	return AccountSet{
		Computation:   ComputationAddress(program, computationOffset),
		Cluster:       ClusterAddress(program, clusterOffset),
		MXE:           deriveAddress(program, seedMXE, nil),
		Mempool:       deriveAddress(program, seedMempool, nil),
		ExecutingPool: deriveAddress(program, seedExecutingPool, nil),
		CompDef:       CompDefAddress(program, CompDefOffset(CompDefName)),
		Payer:         payer,
	}
}

// ComputationAddress derives the account of a queued computation.
func ComputationAddress(program common.Address, computationOffset uint64) common.Address {
	return deriveAddress(program, seedComputation, binary.LittleEndian.AppendUint64(nil, computationOffset))
}

// ClusterAddress derives the account of a computation cluster.
func ClusterAddress(program common.Address, clusterOffset uint32) common.Address {
	return deriveAddress(program, seedCluster, binary.LittleEndian.AppendUint32(nil, clusterOffset))
}

// CompDefAddress derives the account of a computation definition.
func CompDefAddress(program common.Address, compDefOffset uint32) common.Address {
	return deriveAddress(program, seedCompDef, binary.LittleEndian.AppendUint32(nil, compDefOffset))
}

// CompDefOffset is the little-endian u32 of the first four bytes of
// SHA-256(name).
func CompDefOffset(name string) uint32 {
	sum := sha256.Sum256([]byte(name))
	return binary.LittleEndian.Uint32(sum[:4])
}

func deriveAddress(program common.Address, seed string, index []byte) common.Address {
	return common.BytesToAddress(crypto.Keccak256(program.Bytes(), []byte(seed), index)[12:])
}
