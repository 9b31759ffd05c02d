package keymanager

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ruteri/confidential-move-client/chain"
	"github.com/ruteri/confidential-move-client/cryptoutils"
	"github.com/ruteri/confidential-move-client/interfaces"
	"github.com/ruteri/confidential-move-client/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	interfaces.KeyValueStore
	sets    atomic.Int32
	deletes atomic.Int32
}

func (s *countingStore) Set(ctx context.Context, key string, value []byte) error {
	s.sets.Add(1)
	return s.KeyValueStore.Set(ctx, key, value)
}

func (s *countingStore) Delete(ctx context.Context, key string) error {
	s.deletes.Add(1)
	return s.KeyValueStore.Delete(ctx, key)
}

// stubDeriver wraps the real deriver, counting calls and optionally blocking
// until released.
type stubDeriver struct {
	inner   *cryptoutils.KeyDeriver
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	err     error
}

func (d *stubDeriver) Derive(ctx context.Context, identity interfaces.Identity) (*interfaces.KeyPair, error) {
	d.calls.Add(1)
	if d.started != nil {
		d.started <- struct{}{}
	}
	if d.release != nil {
		<-d.release
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.inner.Derive(ctx, identity)
}

type fixture struct {
	store   *countingStore
	vault   *cryptoutils.Vault
	deriver *stubDeriver
	manager *Manager
	wallet  *chain.Wallet
}

func newFixture(t *testing.T) *fixture {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	vault, err := cryptoutils.NewVault("test application key")
	require.NoError(t, err)
	wallet, err := chain.GenerateWallet()
	require.NoError(t, err)

	f := &fixture{
		store:   &countingStore{KeyValueStore: storage.NewMemoryStore()},
		vault:   vault,
		deriver: &stubDeriver{inner: cryptoutils.NewKeyDeriver(nil, nil, log)},
		wallet:  wallet,
	}
	f.manager = NewManager(f.store, vault, f.deriver, log)
	return f
}

func (f *fixture) recordCount(t *testing.T) int {
	keys, err := f.store.Keys(context.Background(), KeyPrefix)
	require.NoError(t, err)
	return len(keys)
}

func TestConnectDerivesAndPersists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.Equal(t, NoKeys, f.manager.State(f.wallet))
	_, err := f.manager.KeyPair(ctx, f.wallet)
	require.ErrorIs(t, err, interfaces.ErrNotReady)

	require.NoError(t, f.manager.Connect(ctx, f.wallet))
	require.Equal(t, KeysReady, f.manager.State(f.wallet))
	require.Equal(t, int32(1), f.deriver.calls.Load())
	require.Equal(t, int32(1), f.store.sets.Load())
	require.Equal(t, 1, f.recordCount(t))

	has, err := f.manager.HasKeys(ctx, f.wallet)
	require.NoError(t, err)
	require.True(t, has)

	kp, err := f.manager.KeyPair(ctx, f.wallet)
	require.NoError(t, err)
	expected, err := f.deriver.inner.Derive(ctx, f.wallet)
	require.NoError(t, err)
	require.Equal(t, expected, kp)

	raw, err := f.store.Get(ctx, StorageKey(f.wallet))
	require.NoError(t, err)
	var record EncryptedKeyRecord
	require.NoError(t, json.Unmarshal(raw, &record))
	require.NotContains(t, string(raw), kp.PublicKeyHex())
	require.NotEqual(t, record.EncryptedPrivateKey, record.EncryptedPublicKey)
}

func TestConnectIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.manager.Connect(ctx, f.wallet))
	require.NoError(t, f.manager.Connect(ctx, f.wallet))

	require.Equal(t, int32(1), f.deriver.calls.Load())
	require.Equal(t, int32(1), f.store.sets.Load())
	require.Equal(t, 1, f.recordCount(t))
}

func TestConnectWithStoredRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.manager.Connect(ctx, f.wallet))
	kp, err := f.manager.KeyPair(ctx, f.wallet)
	require.NoError(t, err)

	// A fresh process sharing the same store.
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	deriver := &stubDeriver{inner: f.deriver.inner}
	restarted := NewManager(f.store, f.vault, deriver, log)
	setsBefore := f.store.sets.Load()

	require.NoError(t, restarted.Connect(ctx, f.wallet))
	require.NoError(t, restarted.Connect(ctx, f.wallet))

	require.Equal(t, int32(0), deriver.calls.Load())
	require.Equal(t, setsBefore, f.store.sets.Load())
	require.Equal(t, 1, f.recordCount(t))

	reloaded, err := restarted.KeyPair(ctx, f.wallet)
	require.NoError(t, err)
	require.Equal(t, kp, reloaded)
}

func TestDisconnectPurges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.manager.Connect(ctx, f.wallet))
	require.NoError(t, f.manager.Disconnect(ctx))

	require.Equal(t, NoKeys, f.manager.State(f.wallet))
	has, err := f.manager.HasKeys(ctx, f.wallet)
	require.NoError(t, err)
	require.False(t, has)
	_, err = f.manager.KeyPair(ctx, f.wallet)
	require.ErrorIs(t, err, interfaces.ErrNotReady)

	require.NoError(t, f.manager.Connect(ctx, f.wallet))
	require.Equal(t, int32(2), f.deriver.calls.Load(), "reconnect re-derives")

	// Nothing connected any more after a second disconnect.
	require.NoError(t, f.manager.Disconnect(ctx))
	require.NoError(t, f.manager.Disconnect(ctx))
}

func TestDisconnectTargetsLastConnected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other, err := chain.GenerateWallet()
	require.NoError(t, err)

	require.NoError(t, f.manager.Connect(ctx, f.wallet))
	require.NoError(t, f.manager.Connect(ctx, other))
	require.NoError(t, f.manager.Disconnect(ctx))

	require.Equal(t, KeysReady, f.manager.State(f.wallet))
	require.Equal(t, NoKeys, f.manager.State(other))
}

func TestPurgeWithoutDerivation(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.manager.Purge(context.Background(), f.wallet))
	require.Equal(t, NoKeys, f.manager.State(f.wallet))
}

func TestConcurrentConnectIsNoop(t *testing.T) {
	f := newFixture(t)
	f.deriver.started = make(chan struct{}, 1)
	f.deriver.release = make(chan struct{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- f.manager.Connect(ctx, f.wallet) }()
	<-f.deriver.started
	require.Equal(t, DerivingKeys, f.manager.State(f.wallet))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.manager.Connect(ctx, f.wallet))
		}()
	}
	wg.Wait()

	close(f.deriver.release)
	require.NoError(t, <-done)
	require.Equal(t, int32(1), f.deriver.calls.Load())
	require.Equal(t, int32(1), f.store.sets.Load())
	require.Equal(t, KeysReady, f.manager.State(f.wallet))
}

func TestDerivationFailureReturnsToNoKeys(t *testing.T) {
	f := newFixture(t)
	f.deriver.err = interfaces.ErrUnsupportedSigner
	ctx := context.Background()

	err := f.manager.Connect(ctx, f.wallet)
	require.ErrorIs(t, err, interfaces.ErrUnsupportedSigner)
	require.Equal(t, NoKeys, f.manager.State(f.wallet))
	require.Equal(t, 0, f.recordCount(t))

	f.deriver.err = nil
	require.NoError(t, f.manager.Connect(ctx, f.wallet))
	require.Equal(t, KeysReady, f.manager.State(f.wallet))
}

func TestPurgeDuringDerivationDiscardsResult(t *testing.T) {
	f := newFixture(t)
	f.deriver.started = make(chan struct{}, 1)
	f.deriver.release = make(chan struct{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- f.manager.Connect(ctx, f.wallet) }()
	<-f.deriver.started

	require.NoError(t, f.manager.Disconnect(ctx))
	close(f.deriver.release)
	require.NoError(t, <-done)

	require.Equal(t, NoKeys, f.manager.State(f.wallet))
	require.Equal(t, int32(0), f.store.sets.Load())
	require.Equal(t, 0, f.recordCount(t))
}

// gatedStore blocks the first Delete until released.
type gatedStore struct {
	interfaces.KeyValueStore
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (s *gatedStore) Delete(ctx context.Context, key string) error {
	s.once.Do(func() {
		close(s.started)
		<-s.release
	})
	return s.KeyValueStore.Delete(ctx, key)
}

func TestConnectDuringPurgeRederives(t *testing.T) {
	f := newFixture(t)
	store := &gatedStore{
		KeyValueStore: storage.NewMemoryStore(),
		started:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	manager := NewManager(store, f.vault, f.deriver, nil)
	ctx := context.Background()

	require.NoError(t, manager.Connect(ctx, f.wallet))
	require.Equal(t, int32(1), f.deriver.calls.Load())

	disconnected := make(chan error, 1)
	go func() { disconnected <- manager.Disconnect(ctx) }()
	<-store.started

	connected := make(chan error, 1)
	go func() { connected <- manager.Connect(ctx, f.wallet) }()

	select {
	case <-connected:
		t.Fatal("connect finished while the purge was still deleting the record")
	case <-time.After(50 * time.Millisecond):
	}
	require.Equal(t, NoKeys, manager.State(f.wallet))

	close(store.release)
	require.NoError(t, <-disconnected)
	require.NoError(t, <-connected)

	require.Equal(t, KeysReady, manager.State(f.wallet))
	require.Equal(t, int32(2), f.deriver.calls.Load())
	has, err := manager.HasKeys(ctx, f.wallet)
	require.NoError(t, err)
	require.True(t, has)
}

func TestConnectDuringPurgeHonoursContext(t *testing.T) {
	f := newFixture(t)
	store := &gatedStore{
		KeyValueStore: storage.NewMemoryStore(),
		started:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	manager := NewManager(store, f.vault, f.deriver, nil)
	ctx := context.Background()

	go func() { _ = manager.Purge(ctx, f.wallet) }()
	<-store.started
	defer close(store.release)

	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, manager.Connect(cctx, f.wallet), context.DeadlineExceeded)
	require.Equal(t, NoKeys, manager.State(f.wallet))
	require.Equal(t, int32(0), f.deriver.calls.Load())
}

func TestUnreadableRecordIsRederived(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name    string
		corrupt func(t *testing.T, f *fixture) []byte
	}{
		{
			name: "Encrypted under another key",
			corrupt: func(t *testing.T, f *fixture) []byte {
				other, err := cryptoutils.NewVault("another application key")
				require.NoError(t, err)
				kp, err := f.deriver.inner.Derive(ctx, f.wallet)
				require.NoError(t, err)
				raw, err := sealRecord(other, f.wallet, kp)
				require.NoError(t, err)
				return raw
			},
		},
		{
			name: "Malformed JSON",
			corrupt: func(*testing.T, *fixture) []byte {
				return []byte("{not json")
			},
		},
		{
			name: "Owned by another identity",
			corrupt: func(t *testing.T, f *fixture) []byte {
				other, err := chain.GenerateWallet()
				require.NoError(t, err)
				kp, err := f.deriver.inner.Derive(ctx, other)
				require.NoError(t, err)
				raw, err := sealRecord(f.vault, other, kp)
				require.NoError(t, err)
				return raw
			},
		},
		{
			name: "Inconsistent pair",
			corrupt: func(t *testing.T, f *fixture) []byte {
				kp, err := cryptoutils.KeyPairFromSignature([]byte("unrelated"))
				require.NoError(t, err)
				kp.PublicKey[0] ^= 0xff
				raw, err := sealRecord(f.vault, f.wallet, kp)
				require.NoError(t, err)
				return raw
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, f.store.KeyValueStore.Set(ctx, StorageKey(f.wallet), tc.corrupt(t, f)))

			require.NoError(t, f.manager.Connect(ctx, f.wallet))
			require.Equal(t, KeysReady, f.manager.State(f.wallet))
			require.Equal(t, int32(1), f.deriver.calls.Load())
			require.Equal(t, int32(1), f.store.deletes.Load())

			kp, err := f.manager.KeyPair(ctx, f.wallet)
			require.NoError(t, err)
			raw, err := f.store.Get(ctx, StorageKey(f.wallet))
			require.NoError(t, err)
			reopened, err := openRecord(f.vault, f.wallet, raw)
			require.NoError(t, err)
			require.Equal(t, kp, reopened)
		})
	}
}

type failingStore struct {
	interfaces.KeyValueStore
}

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func TestStoreFailureIsReported(t *testing.T) {
	f := newFixture(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := NewManager(failingStore{KeyValueStore: storage.NewMemoryStore()}, f.vault, f.deriver, log)

	err := manager.Connect(context.Background(), f.wallet)
	require.ErrorContains(t, err, "disk on fire")
	require.Equal(t, NoKeys, manager.State(f.wallet))
	require.Equal(t, int32(0), f.deriver.calls.Load())
}

func TestClearAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other, err := chain.GenerateWallet()
	require.NoError(t, err)

	require.NoError(t, f.manager.Connect(ctx, f.wallet))
	require.NoError(t, f.manager.Connect(ctx, other))
	require.NoError(t, f.store.Set(ctx, "unrelated", []byte("keep")))

	require.NoError(t, f.manager.ClearAll(ctx))
	require.Equal(t, 0, f.recordCount(t))
	require.Equal(t, NoKeys, f.manager.State(f.wallet))
	require.Equal(t, NoKeys, f.manager.State(other))

	_, err = f.store.Get(ctx, "unrelated")
	require.NoError(t, err)
}

func TestStorageKey(t *testing.T) {
	w, err := chain.WalletFromHex("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)
	key := StorageKey(w)
	require.Equal(t, KeyPrefix, key[:len(KeyPrefix)])
	require.Equal(t, key, StorageKey(w.TransactionOnly()))
	require.Greater(t, len(key), len(KeyPrefix))
}
