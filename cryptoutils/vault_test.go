package cryptoutils

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/ruteri/confidential-move-client/interfaces"
	"github.com/stretchr/testify/require"
)

var testVaultKeys = []string{
	"short",
	"0123456789abcdef",                 // 16 bytes, used directly
	"0123456789abcdef0123456789abcdef", // 32 bytes, used directly
	"a much longer application key that gets hashed down",
	"ключ-с-юникодом",
}

// TestVaultRoundTrip tests that Decrypt inverts Encrypt for every key shape
func TestVaultRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{name: "Empty data", data: []byte{}},
		{name: "Private key", data: make([]byte, 32)},
		{name: "Binary data", data: []byte{0x00, 0x01, 0x02, 0x03, 0xFF, 0xFE, 0xFD}},
		{name: "Long data", data: []byte(strings.Repeat("secret", 500))},
	}

	for _, key := range testVaultKeys {
		for _, tc := range testCases {
			t.Run(tc.name+"/"+key, func(t *testing.T) {
				blob, err := Encrypt(tc.data, key)
				require.NoError(t, err)

				plaintext, err := Decrypt(blob, key)
				require.NoError(t, err)
				require.Equal(t, len(tc.data), len(plaintext))
				if len(tc.data) > 0 {
					require.Equal(t, tc.data, plaintext)
				}
			})
		}
	}
}

// TestVaultTamperRejection flips every bit of an encrypted blob
func TestVaultTamperRejection(t *testing.T) {
	for _, key := range testVaultKeys {
		blob, err := Encrypt([]byte("x25519 private key material"), key)
		require.NoError(t, err)

		raw, err := base64.StdEncoding.DecodeString(blob)
		require.NoError(t, err)

		for i := 0; i < len(raw)*8; i++ {
			tampered := make([]byte, len(raw))
			copy(tampered, raw)
			tampered[i/8] ^= 1 << (i % 8)

			_, err := Decrypt(base64.StdEncoding.EncodeToString(tampered), key)
			require.ErrorIs(t, err, interfaces.ErrDecryption, "bit %d with key %q", i, key)
		}
	}
}

// TestVaultNonceFreshness tests that identical inputs never produce identical blobs
func TestVaultNonceFreshness(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		blob, err := Encrypt([]byte("same plaintext"), "same key")
		require.NoError(t, err)
		_, dup := seen[blob]
		require.False(t, dup, "duplicate blob after %d trials", i)
		seen[blob] = struct{}{}
	}
}

// TestVaultWrongKey tests that a valid blob never opens under another key
func TestVaultWrongKey(t *testing.T) {
	for i, key := range testVaultKeys {
		blob, err := Encrypt([]byte("top secret"), key)
		require.NoError(t, err)

		for j, other := range testVaultKeys {
			if i == j {
				continue
			}
			plaintext, err := Decrypt(blob, other)
			require.ErrorIs(t, err, interfaces.ErrDecryption)
			require.Nil(t, plaintext)
		}
	}
}

func TestVaultMalformedInput(t *testing.T) {
	_, err := Decrypt("not base64!!", "key")
	require.ErrorIs(t, err, interfaces.ErrDecryption)

	_, err = Decrypt(base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), "key")
	require.ErrorIs(t, err, interfaces.ErrDecryption)

	_, err = Decrypt("", "key")
	require.ErrorIs(t, err, interfaces.ErrDecryption)
}

func TestNormalizeVaultKey(t *testing.T) {
	require.Len(t, NormalizeVaultKey("short"), 32)
	require.Equal(t, []byte("0123456789abcdef"), NormalizeVaultKey("0123456789abcdef"))
	require.Equal(t, []byte("0123456789abcdef0123456789abcdef"), NormalizeVaultKey("0123456789abcdef0123456789abcdef"))
	require.Equal(t, NormalizeVaultKey("short"), NormalizeVaultKey("short"))
}

func TestNewVault(t *testing.T) {
	_, err := NewVault("")
	require.ErrorIs(t, err, interfaces.ErrEmptyVaultKey)

	v, err := NewVault("application key")
	require.NoError(t, err)

	blob, err := v.Encrypt([]byte("payload"))
	require.NoError(t, err)

	plaintext, err := v.Decrypt(blob)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), plaintext)

	_, err = Decrypt(blob, "another key")
	require.ErrorIs(t, err, interfaces.ErrDecryption)
}
