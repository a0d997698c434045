package material_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/studyhub/core"
	"github.com/trezcool/studyhub/core/material"
	"github.com/trezcool/studyhub/tests"
)

func TestService_Upload(t *testing.T) {
	env, err := testutil.NewApp()
	require.NoError(t, err)
	defer func() { _ = env.Close() }()
	ctx := context.Background()
	svc := env.Materials
	max := svc.MaxUploadSize()

	tests := []struct {
		name    string
		up      material.Upload
		wantErr error
	}{
		{name: "empty", up: material.Upload{FileName: "a.txt", Body: strings.NewReader("")}, wantErr: material.ErrEmptyFile},
		{
			name:    "too large",
			up:      material.Upload{FileName: "a.txt", Size: max + 1, Body: bytes.NewReader(make([]byte, max+1))},
			wantErr: material.ErrFileTooLarge,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, "grp", "usr", tt.up)
			assert.Equal(t, tt.wantErr, err)
		})
	}
	assert.Equal(t, 0, env.DB.Count("material"))

	t.Run("at the limit", func(t *testing.T) {
		mat, err := svc.Upload(ctx, "grp", "usr", material.Upload{
			Title: "  Big one ", FileName: "big.bin", Size: max, Body: bytes.NewReader(make([]byte, max)),
		})
		require.NoError(t, err)
		assert.Equal(t, "Big one", mat.Title)
		assert.Equal(t, "application/octet-stream", mat.MimeType)
		assert.Equal(t, max, mat.FileSize)

		rc, got, err := svc.Open(ctx, mat.ID)
		require.NoError(t, err)
		defer func() { _ = rc.Close() }()
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Len(t, b, int(max))
		assert.Equal(t, mat.ID, got.ID)
	})
}

func TestService_PurgeMember(t *testing.T) {
	env, err := testutil.NewApp()
	require.NoError(t, err)
	defer func() { _ = env.Close() }()
	ctx := context.Background()
	svc := env.Materials

	up := func(userID, name string) material.Material {
		mat, err := svc.Upload(ctx, "grp", userID, material.Upload{
			FileName: name, Size: 3, ContentType: "text/plain", Body: strings.NewReader("abc"),
		})
		require.NoError(t, err)
		return mat
	}
	aliceFile := up("alice", "a.txt")
	bobFile := up("bob", "b.txt")
	_ = testutil.CreateNote(t, svc, "grp", "alice", "Summary", "Short.")

	err = env.Stores.Tx.InTx(ctx, func(ctx context.Context) error {
		return svc.PurgeMember(ctx, "grp", "alice")
	})
	require.NoError(t, err)

	list, err := svc.List(ctx, "grp", "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, bobFile.ID, list[0].ID)

	_, err = env.Blob.Open(ctx, aliceFile.FilePath)
	assert.Equal(t, core.ErrBlobNotFound, err, "file deleted after commit")
	rc, err := env.Blob.Open(ctx, bobFile.FilePath)
	require.NoError(t, err)
	_ = rc.Close()

	_, err = svc.SignedURL(ctx, aliceFile.ID)
	assert.Equal(t, material.ErrNotFound, err)
}

func TestService_Delete_rolledBack(t *testing.T) {
	env, err := testutil.NewApp()
	require.NoError(t, err)
	defer func() { _ = env.Close() }()
	ctx := context.Background()

	mat, err := env.Materials.Upload(ctx, "grp", "alice", material.Upload{
		FileName: "a.txt", Size: 3, Body: strings.NewReader("abc"),
	})
	require.NoError(t, err)

	errAbort := core.NewInvalidError("abort")
	err = env.Stores.Tx.InTx(ctx, func(ctx context.Context) error {
		if err := env.Materials.Delete(ctx, mat.ID); err != nil {
			return err
		}
		return errAbort
	})
	assert.Equal(t, errAbort, err)

	_, err = env.Materials.Get(ctx, mat.ID)
	assert.NoError(t, err)
	rc, err := env.Blob.Open(ctx, mat.FilePath)
	require.NoError(t, err, "file kept when the transaction rolls back")
	_ = rc.Close()
}
