package blobsvc

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/studyhub/core"
)

func newDisk(t *testing.T) *Disk {
	dir, err := os.MkdirTemp("", "blob-")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	d, err := NewDisk(&core.Config{
		SecretKey: "s3cr3t",
		Blob:      core.BlobConfig{Dir: dir, BaseURL: "http://localhost:8000/api/files/signed"},
	})
	require.NoError(t, err)
	return d
}

func readAll(t *testing.T, d *Disk, p string) string {
	rc, err := d.Open(context.Background(), p)
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestDisk_PutOpenDelete(t *testing.T) {
	d := newDisk(t)
	ctx := context.Background()

	require.NoError(t, d.Put(ctx, "grp/usr/1-notes.txt", strings.NewReader("hello"), 5, "text/plain"))
	assert.Equal(t, "hello", readAll(t, d, "grp/usr/1-notes.txt"))

	require.NoError(t, d.Put(ctx, "grp/usr/1-notes.txt", strings.NewReader("bye"), 3, "text/plain"))
	assert.Equal(t, "bye", readAll(t, d, "grp/usr/1-notes.txt"), "put overwrites")

	require.NoError(t, d.Delete(ctx, "grp/usr/1-notes.txt"))
	_, err := d.Open(ctx, "grp/usr/1-notes.txt")
	assert.Equal(t, core.ErrBlobNotFound, err)
	assert.Equal(t, core.ErrBlobNotFound, d.Delete(ctx, "grp/usr/1-notes.txt"))

	entries, err := os.ReadDir(filepath.Join(d.dir, "grp", "usr"))
	require.NoError(t, err)
	assert.Empty(t, entries, "no temporary file left behind")
}

func TestDisk_pathsStayInside(t *testing.T) {
	d := newDisk(t)
	ctx := context.Background()

	require.NoError(t, d.Put(ctx, "../../escape.txt", strings.NewReader("x"), 1, ""))
	_, err := os.Stat(filepath.Join(d.dir, "escape.txt"))
	assert.NoError(t, err, "parent references are resolved against the root")

	for _, p := range []string{"", "/", ".."} {
		assert.Equal(t, ErrInvalidPath, d.Put(ctx, p, strings.NewReader("x"), 1, ""), p)
	}
}

func TestDisk_SignedURL(t *testing.T) {
	d := newDisk(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	d.nowFunc = func() time.Time { return now }

	raw, err := d.SignedURL(context.Background(), "grp/usr/1-notes.txt", time.Hour)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/api/files/signed", u.Path)
	q := u.Query()
	assert.Equal(t, "grp/usr/1-notes.txt", q.Get("path"))

	tests := []struct {
		name    string
		path    string
		expires string
		sig     string
		at      time.Time
		wantErr error
	}{
		{name: "valid", path: q.Get("path"), expires: q.Get("expires"), sig: q.Get("signature"), at: now},
		{name: "last second", path: q.Get("path"), expires: q.Get("expires"), sig: q.Get("signature"), at: now.Add(time.Hour)},
		{name: "expired", path: q.Get("path"), expires: q.Get("expires"), sig: q.Get("signature"), at: now.Add(time.Hour + time.Second), wantErr: ErrInvalidSignature},
		{name: "other path", path: "grp/usr/2-secret.txt", expires: q.Get("expires"), sig: q.Get("signature"), at: now, wantErr: ErrInvalidSignature},
		{name: "extended expiry", path: q.Get("path"), expires: "99999999999", sig: q.Get("signature"), at: now, wantErr: ErrInvalidSignature},
		{name: "garbage expiry", path: q.Get("path"), expires: "soon", sig: q.Get("signature"), at: now, wantErr: ErrInvalidSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := tt.at
			d.nowFunc = func() time.Time { return at }
			assert.Equal(t, tt.wantErr, d.Verify(tt.path, tt.expires, tt.sig))
		})
	}

	other := newDisk(t)
	other.secret = []byte("another")
	other.nowFunc = func() time.Time { return now }
	assert.Equal(t, ErrInvalidSignature, other.Verify(q.Get("path"), q.Get("expires"), q.Get("signature")), "signed with another secret")
}
