package storage

import (
	"path/filepath"
	"testing"

	"github.com/ruteri/confidential-move-client/interfaces"
	"github.com/stretchr/testify/require"
)

func TestStoreFactory_StoreFor(t *testing.T) {
	dir := t.TempDir()
	factory := NewStoreFactory(quietLogger())

	tests := []struct {
		name    string
		uri     string
		want    string
		wantErr error
	}{
		{name: "memory", uri: "memory://", want: "memory"},
		{name: "file", uri: "file://" + filepath.Join(dir, "keys"), want: "file-keys"},
		{name: "s3", uri: "s3://ak:sk@bucket/prefix?region=eu-west-1&endpoint=http://localhost:9000", want: "s3-bucket"},
		{name: "vault", uri: "vault://token@localhost:8200/secret/mine", want: "vault-secret-mine"},
		{name: "unsupported scheme", uri: "ipfs://localhost:5001", wantErr: interfaces.ErrInvalidLocationURI},
		{name: "malformed", uri: "::not a uri", wantErr: interfaces.ErrInvalidLocationURI},
		{name: "s3 without bucket", uri: "s3:///prefix", wantErr: interfaces.ErrInvalidLocationURI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := factory.StoreFor(tt.uri)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, store.Name())
		})
	}
}

func TestStoreFactory_MirroredStoreFor(t *testing.T) {
	factory := NewStoreFactory(quietLogger())

	single, err := factory.MirroredStoreFor([]string{"memory://", "bogus://x"})
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, single)

	multi, err := factory.MirroredStoreFor([]string{"memory://", "file://" + t.TempDir()})
	require.NoError(t, err)
	require.IsType(t, &MirroredStore{}, multi)

	_, err = factory.MirroredStoreFor([]string{"bogus://x"})
	require.Error(t, err)
}
