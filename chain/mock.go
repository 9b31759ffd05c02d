package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/confidential-move-client/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockNetworkClient mocks the NetworkClient interface
type MockNetworkClient struct {
	mock.Mock
}

// RecentNetworkState mocks the RecentNetworkState method
func (m *MockNetworkClient) RecentNetworkState(ctx context.Context, account common.Address) (*interfaces.NetworkState, error) {
	args := m.Called(ctx, account)
	state, _ := args.Get(0).(*interfaces.NetworkState)
	return state, args.Error(1)
}

// SubmitTransaction mocks the SubmitTransaction method
func (m *MockNetworkClient) SubmitTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(common.Hash), args.Error(1)
}

// Receipt mocks the Receipt method
func (m *MockNetworkClient) Receipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	args := m.Called(ctx, txHash)
	receipt, _ := args.Get(0).(*types.Receipt)
	return receipt, args.Error(1)
}

// AwaitFinalization mocks the AwaitFinalization method
func (m *MockNetworkClient) AwaitFinalization(ctx context.Context, ref interfaces.ComputationRef, commitment interfaces.CommitmentLevel) (common.Hash, error) {
	args := m.Called(ctx, ref, commitment)
	return args.Get(0).(common.Hash), args.Error(1)
}

// MockCluster mocks the ComputationCluster interface
type MockCluster struct {
	mock.Mock
}

// RemotePublicKey mocks the RemotePublicKey method
func (m *MockCluster) RemotePublicKey(ctx context.Context) ([32]byte, error) {
	args := m.Called(ctx)
	return args.Get(0).([32]byte), args.Error(1)
}
