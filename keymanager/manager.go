package keymanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ruteri/confidential-move-client/cryptoutils"
	"github.com/ruteri/confidential-move-client/interfaces"
	"github.com/ruteri/confidential-move-client/metrics"
)

// State is the key lifecycle state of one identity.
type State int

const (
	NoKeys State = iota
	DerivingKeys
	KeysReady
)

func (s State) String() string {
	switch s {
	case NoKeys:
		return "no_keys"
	case DerivingKeys:
		return "deriving_keys"
	case KeysReady:
		return "keys_ready"
	default:
		return "unknown"
	}
}

// Deriver derives a key pair from an identity's signature.
type Deriver interface {
	Derive(ctx context.Context, identity interfaces.Identity) (*interfaces.KeyPair, error)
}

var errDiscarded = errors.New("derivation discarded after purge")

type entry struct {
	state State
	keys  *interfaces.KeyPair
	// generation is bumped on every purge; a derivation started under an
	// older generation is never persisted.
	generation uint64
	// purged is open while a purge is deleting the record.
	purged chan struct{}
}

// Manager derives key pairs once per identity, keeps them encrypted in a
// key-value store and purges them on disconnect.
type Manager struct {
	store   interfaces.KeyValueStore
	vault   *cryptoutils.Vault
	deriver Deriver
	log     interfaces.Observer

	mu       sync.Mutex
	entries  map[string]*entry
	last     interfaces.Identity
	clearing chan struct{}
}

func NewManager(store interfaces.KeyValueStore, vault *cryptoutils.Vault, deriver Deriver, log interfaces.Observer) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store:   store,
		vault:   vault,
		deriver: deriver,
		log:     log,
		entries: make(map[string]*entry),
	}
}

func (m *Manager) entryLocked(key string) *entry {
	e, ok := m.entries[key]
	if !ok {
		e = &entry{}
		m.entries[key] = e
	}
	return e
}

// waitPurgeLocked blocks until no purge of key is deleting records. It is
// called and returns with m.mu held.
func (m *Manager) waitPurgeLocked(ctx context.Context, key string) error {
	for {
		wait := m.clearing
		if wait == nil {
			wait = m.entryLocked(key).purged
		}
		if wait == nil {
			return nil
		}

		m.mu.Unlock()
		select {
		case <-wait:
			m.mu.Lock()
		case <-ctx.Done():
			m.mu.Lock()
			return ctx.Err()
		}
	}
}

// Connect makes keys ready for identity: a stored record is decrypted,
// otherwise keys are derived, encrypted and persisted. Connecting an identity
// that is deriving or ready is a no-op. A Connect racing a purge waits for the
// record to be deleted. On failure the identity is left in NoKeys and Connect
// may be retried.
func (m *Manager) Connect(ctx context.Context, identity interfaces.Identity) error {
	key := StorageKey(identity)

	m.mu.Lock()
	if err := m.waitPurgeLocked(ctx, key); err != nil {
		m.mu.Unlock()
		return err
	}
	m.last = identity
	e := m.entryLocked(key)
	if e.state != NoKeys {
		state := e.state
		m.mu.Unlock()
		m.log.Debug("connect ignored", "identity", key, "state", state)
		return nil
	}
	e.state = DerivingKeys
	generation := e.generation
	m.mu.Unlock()

	kp, source, err := m.loadOrDerive(ctx, identity, key, generation)

	m.mu.Lock()
	defer m.mu.Unlock()

	if e.generation != generation {
		if kp != nil {
			kp.Zero()
		}
		m.log.Warn("key derivation finished after purge, discarding", "identity", key)
		return nil
	}
	if err != nil {
		e.state = NoKeys
		metrics.KeyDerivationFailures.Inc()
		m.log.Error("failed to make keys ready", "identity", key, "err", err)
		return err
	}

	e.state = KeysReady
	e.keys = kp
	metrics.KeyLoads.WithLabelValues(source).Inc()
	m.log.Info("keys ready", "identity", key, "source", source, "publicKey", kp.PublicKeyHex())
	return nil
}

func (m *Manager) loadOrDerive(ctx context.Context, identity interfaces.Identity, key string, generation uint64) (*interfaces.KeyPair, string, error) {
	source := "derived"

	raw, err := m.store.Get(ctx, key)
	switch {
	case err == nil:
		kp, openErr := openRecord(m.vault, identity, raw)
		if openErr == nil {
			return kp, "stored", nil
		}
		if !errors.Is(openErr, interfaces.ErrDecryption) {
			return nil, "", openErr
		}
		m.log.Warn("stored key record is unreadable, re-deriving", "identity", key, "err", openErr)
		if err := m.store.Delete(ctx, key); err != nil {
			return nil, "", fmt.Errorf("failed to delete unreadable record: %w", err)
		}
		source = "rederived"
	case errors.Is(err, interfaces.ErrKeyNotFound):
	default:
		return nil, "", fmt.Errorf("failed to read key record: %w", err)
	}

	kp, err := m.deriver.Derive(ctx, identity)
	if err != nil {
		return nil, "", err
	}

	record, err := sealRecord(m.vault, identity, kp)
	if err != nil {
		kp.Zero()
		return nil, "", err
	}

	// Persist under the lock so a concurrent purge either sees the record or
	// prevents the write.
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[key] == nil || m.entries[key].generation != generation {
		kp.Zero()
		return nil, "", errDiscarded
	}
	if err := m.store.Set(ctx, key, record); err != nil {
		kp.Zero()
		return nil, "", fmt.Errorf("failed to persist key record: %w", err)
	}
	return kp, source, nil
}

// Disconnect purges the keys of the last connected identity.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	identity := m.last
	m.last = nil
	m.mu.Unlock()

	if identity == nil {
		return nil
	}
	return m.Purge(ctx, identity)
}

// Purge removes the in-memory and persisted keys of identity and returns it to
// NoKeys. It does not depend on a derivation having succeeded.
func (m *Manager) Purge(ctx context.Context, identity interfaces.Identity) error {
	key := StorageKey(identity)

	m.mu.Lock()
	e := m.entryLocked(key)
	e.generation++
	e.state = NoKeys
	if e.keys != nil {
		e.keys.Zero()
		e.keys = nil
	}
	purged := make(chan struct{})
	e.purged = purged
	m.mu.Unlock()

	err := m.store.Delete(ctx, key)

	m.mu.Lock()
	if e.purged == purged {
		e.purged = nil
	}
	m.mu.Unlock()
	close(purged)

	if err != nil {
		m.log.Error("failed to delete key record", "identity", key, "err", err)
		return fmt.Errorf("failed to delete key record: %w", err)
	}

	metrics.KeyPurges.Inc()
	m.log.Info("keys purged", "identity", key)
	return nil
}

// ClearAll purges every record under KeyPrefix and all in-memory keys.
func (m *Manager) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	for _, e := range m.entries {
		e.generation++
		e.state = NoKeys
		if e.keys != nil {
			e.keys.Zero()
			e.keys = nil
		}
	}
	m.last = nil
	clearing := make(chan struct{})
	m.clearing = clearing
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.clearing == clearing {
			m.clearing = nil
		}
		m.mu.Unlock()
		close(clearing)
	}()

	keys, err := m.store.Keys(ctx, KeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to list key records: %w", err)
	}

	var errs []error
	for _, key := range keys {
		if err := m.store.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	metrics.KeyPurges.Add(float64(len(keys) - len(errs)))
	m.log.Info("all key records cleared", "count", len(keys)-len(errs))
	return errors.Join(errs...)
}

// KeyPair returns a copy of the ready keys of identity, or ErrNotReady.
func (m *Manager) KeyPair(_ context.Context, identity interfaces.Identity) (*interfaces.KeyPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[StorageKey(identity)]
	if !ok || e.state != KeysReady || e.keys == nil {
		return nil, interfaces.ErrNotReady
	}
	kp := *e.keys
	return &kp, nil
}

// HasKeys reports whether a record for identity is persisted.
func (m *Manager) HasKeys(ctx context.Context, identity interfaces.Identity) (bool, error) {
	_, err := m.store.Get(ctx, StorageKey(identity))
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// State returns the lifecycle state of identity.
func (m *Manager) State(identity interfaces.Identity) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[StorageKey(identity)]; ok {
		return e.state
	}
	return NoKeys
}
