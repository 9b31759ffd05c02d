package chain

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/confidential-move-client/interfaces"
	"github.com/stretchr/testify/require"
)

func TestWalletSignMessage(t *testing.T) {
	w, err := GenerateWallet()
	require.NoError(t, err)

	msg := []byte("hello")
	sig, err := w.SignMessage(context.Background(), msg)
	require.NoError(t, err)

	again, err := w.SignMessage(context.Background(), msg)
	require.NoError(t, err)
	require.Equal(t, sig, again)

	pub, err := crypto.SigToPub(accounts.TextHash(msg), sig)
	require.NoError(t, err)
	require.Equal(t, w.Address(), crypto.PubkeyToAddress(*pub))
	require.Equal(t, w.Address(), interfaces.IdentityAddress(w))
}

func TestWalletSignTransaction(t *testing.T) {
	w, err := WalletFromHex("0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)

	to := w.Address()
	tx := types.NewTx(&types.DynamicFeeTx{ChainID: big.NewInt(5), Gas: 21000, To: &to, Value: new(big.Int)})
	signed, err := w.TransactionOnly().SignTransaction(context.Background(), tx)
	require.NoError(t, err)

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(5)), signed)
	require.NoError(t, err)
	require.Equal(t, w.Address(), sender)
}

func TestTransactionOnlyWalletCapabilities(t *testing.T) {
	w, err := GenerateWallet()
	require.NoError(t, err)

	var identity interfaces.Identity = w.TransactionOnly()
	_, isMessageSigner := identity.(interfaces.MessageSigner)
	require.False(t, isMessageSigner)
	_, isTxSigner := identity.(interfaces.TransactionSigner)
	require.True(t, isTxSigner)
	require.Equal(t, w.PublicIdentifier(), identity.PublicIdentifier())
}

func TestWalletFromKeystore(t *testing.T) {
	dir := t.TempDir()
	ks := keystore.NewKeyStore(dir, keystore.LightScryptN, keystore.LightScryptP)
	account, err := ks.NewAccount("passphrase")
	require.NoError(t, err)

	w, err := WalletFromKeystore(account.URL.Path, "passphrase")
	require.NoError(t, err)
	require.Equal(t, account.Address, w.Address())

	_, err = WalletFromKeystore(account.URL.Path, "wrong")
	require.Error(t, err)

	_, err = WalletFromKeystore(filepath.Join(dir, "missing"), "passphrase")
	require.Error(t, err)
}

func TestWalletFromHexInvalid(t *testing.T) {
	_, err := WalletFromHex("not-a-key")
	require.Error(t, err)
}
