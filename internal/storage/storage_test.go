package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreSaveOpenRoundtrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "blob-1.txt", strings.NewReader("hello")))

	reader, err := store.Open(ctx, "blob-1.txt")
	require.NoError(t, err)
	defer reader.Close()

	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestLocalStoreOpenMissingBlob(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open(context.Background(), "nope.txt")
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	for _, name := range []string{"", "../escape.txt", "a/b.txt", `a\b.txt`, "..", "a..b/../c"} {
		err := store.Save(ctx, name, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)
	}
}

func TestDownloadSignerRoundtrip(t *testing.T) {
	signer := NewDownloadSigner("test-secret", time.Minute)

	token, err := signer.Sign("blob-1.pdf")
	require.NoError(t, err)

	subject, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "blob-1.pdf", subject)
}

func TestDownloadSignerRejectsExpiredToken(t *testing.T) {
	signer := NewDownloadSigner("test-secret", -time.Minute)
	token, err := signer.Sign("blob-1.pdf")
	require.NoError(t, err)

	_, err = signer.Verify(token)
	assert.ErrorIs(t, err, ErrBadToken)
}

func TestDownloadSignerRejectsForeignToken(t *testing.T) {
	token, err := NewDownloadSigner("secret-a", time.Minute).Sign("blob-1.pdf")
	require.NoError(t, err)

	_, err = NewDownloadSigner("secret-b", time.Minute).Verify(token)
	assert.ErrorIs(t, err, ErrBadToken)
}
