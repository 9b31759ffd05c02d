package cryptoutils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"

	"github.com/ruteri/confidential-move-client/interfaces"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// CipherNonceSize is the size of the per-request cipher nonce.
const CipherNonceSize = 16

// FieldElementSize is the serialized width of one encrypted value.
const FieldElementSize = 32

const keystreamInfo = "mxe/cipher/v1"

// FieldPrime is 2^255 - 19, the field every value is reduced into.
var FieldPrime = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(19))

// CipherSession encrypts move values under an x25519 shared secret. A session
// serves a single submission and is discarded afterwards.
type CipherSession struct {
	shared    [32]byte
	remoteKey [32]byte
}

// OpenCipherSession combines the local private key with the remote public key.
func OpenCipherSession(localPrivateKey, remotePublicKey [32]byte) (*CipherSession, error) {
	shared, err := curve25519.X25519(localPrivateKey[:], remotePublicKey[:])
	if err != nil {
		// X25519 rejects low-order points that would yield an all-zero secret.
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidKeyMaterial, err)
	}

	s := &CipherSession{remoteKey: remotePublicKey}
	copy(s.shared[:], shared)
	return s, nil
}

// RemotePublicKey returns the remote key the session was opened with.
func (s *CipherSession) RemotePublicKey() [32]byte {
	return s.remoteKey
}

// Encrypt reduces every value into the field and masks it with one keystream
// element. Values are returned as 32-byte little-endian field elements.
func (s *CipherSession) Encrypt(values []*big.Int, nonce [CipherNonceSize]byte) ([][FieldElementSize]byte, error) {
	stream, err := s.keystream(nonce, len(values))
	if err != nil {
		return nil, err
	}

	out := make([][FieldElementSize]byte, len(values))
	for i, v := range values {
		if v == nil {
			return nil, fmt.Errorf("value %d is nil", i)
		}
		m := new(big.Int).Mod(v, FieldPrime)
		m.Add(m, stream[i])
		m.Mod(m, FieldPrime)
		out[i] = EncodeFieldElement(m)
	}
	return out, nil
}

// Decrypt is the mirrored transform of Encrypt.
func (s *CipherSession) Decrypt(blocks [][FieldElementSize]byte, nonce [CipherNonceSize]byte) ([]*big.Int, error) {
	stream, err := s.keystream(nonce, len(blocks))
	if err != nil {
		return nil, err
	}

	out := make([]*big.Int, len(blocks))
	for i, b := range blocks {
		c := DecodeFieldElement(b)
		if c.Cmp(FieldPrime) >= 0 {
			return nil, fmt.Errorf("%w: block %d is not a field element", interfaces.ErrDecryption, i)
		}
		c.Sub(c, stream[i])
		c.Mod(c, FieldPrime)
		out[i] = c
	}
	return out, nil
}

// Zero wipes the shared secret.
func (s *CipherSession) Zero() {
	for i := range s.shared {
		s.shared[i] = 0
	}
}

func (s *CipherSession) keystream(nonce [CipherNonceSize]byte, n int) ([]*big.Int, error) {
	stream := make([]*big.Int, n)
	info := make([]byte, len(keystreamInfo)+8)
	copy(info, keystreamInfo)

	buf := make([]byte, 64)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint64(info[len(keystreamInfo):], uint64(i))
		r := hkdf.New(sha256.New, s.shared[:], nonce[:], info)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("failed to expand keystream: %w", err)
		}
		// 64 bytes reduced mod p keeps the bias negligible.
		stream[i] = new(big.Int).Mod(new(big.Int).SetBytes(buf), FieldPrime)
	}
	return stream, nil
}

// NewNonce draws a fresh random cipher nonce. Nonces are never reused.
func NewNonce() ([CipherNonceSize]byte, error) {
	var nonce [CipherNonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nonce, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return nonce, nil
}

// EncodeFieldElement serializes v (assumed in [0, p)) as 32 little-endian bytes.
func EncodeFieldElement(v *big.Int) [FieldElementSize]byte {
	var out [FieldElementSize]byte
	be := v.Bytes()
	for i := 0; i < len(be) && i < FieldElementSize; i++ {
		out[i] = be[len(be)-1-i]
	}
	return out
}

// DecodeFieldElement parses 32 little-endian bytes.
func DecodeFieldElement(b [FieldElementSize]byte) *big.Int {
	be := make([]byte, FieldElementSize)
	for i := 0; i < FieldElementSize; i++ {
		be[i] = b[FieldElementSize-1-i]
	}
	return new(big.Int).SetBytes(be)
}

// NonceToUint128 interprets the nonce as a little-endian u128.
func NonceToUint128(nonce [CipherNonceSize]byte) *big.Int {
	var arr [FieldElementSize]byte
	copy(arr[:], nonce[:])
	return DecodeFieldElement(arr)
}
