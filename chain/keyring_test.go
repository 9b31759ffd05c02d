package chain

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestKeyring(t *testing.T) {
	a, err := GenerateWallet()
	require.NoError(t, err)
	b, err := GenerateWallet()
	require.NoError(t, err)

	k := NewKeyring(a, b)
	require.Equal(t, 2, k.Len())

	id, ok := k.Identity(a.Address())
	require.True(t, ok)
	require.Equal(t, a.PublicIdentifier(), id.PublicIdentifier())

	_, ok = k.Identity(common.HexToAddress("0x01"))
	require.False(t, ok)

	addrs := k.Addresses()
	require.Len(t, addrs, 2)
	require.Negative(t, addrs[0].Cmp(addrs[1]))
}

func TestLoadKeyring(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := "0x" + hex.EncodeToString(crypto.FromECDSA(key))

	k, err := LoadKeyring([]string{hexKey}, nil, "")
	require.NoError(t, err)
	_, ok := k.Identity(crypto.PubkeyToAddress(key.PublicKey))
	require.True(t, ok)

	_, err = LoadKeyring([]string{"not-a-key"}, nil, "")
	require.Error(t, err)

	_, err = LoadKeyring(nil, []string{"/nonexistent/keystore.json"}, "pw")
	require.Error(t, err)
}
