package blobsvc

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/studyhub/core"
)

var (
	ErrInvalidPath      = core.NewInvalidError("invalid file path")
	ErrInvalidSignature = core.NewForbiddenError("invalid or expired signature")
)

// Disk stores files under a local directory and signs download URLs served by the API.
type Disk struct {
	dir     string
	baseURL string
	secret  []byte
	nowFunc func() time.Time
}

var _ core.BlobStorage = (*Disk)(nil) // interface compliance check

func NewDisk(conf *core.Config) (*Disk, error) {
	dir := conf.Blob.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(conf.WorkDir, dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating blob directory %s", dir)
	}
	return &Disk{
		dir:     dir,
		baseURL: conf.Blob.BaseURL,
		secret:  []byte(conf.SecretKey),
		nowFunc: time.Now,
	}, nil
}

// fullPath maps a storage path to a file under d.dir, refusing paths that escape it.
func (d *Disk) fullPath(p string) (string, error) {
	clean := path.Clean("/" + p)
	if clean == "/" {
		return "", ErrInvalidPath
	}
	return filepath.Join(d.dir, filepath.FromSlash(clean)), nil
}

func (d *Disk) Put(_ context.Context, p string, r io.Reader, _ int64, _ string) error {
	fp, err := d.fullPath(p)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return errors.Wrap(err, "creating directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(fp), ".upload-*")
	if err != nil {
		return errors.Wrap(err, "creating file")
	}
	if _, err = io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, "writing file")
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, "closing file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), fp), "moving file")
}

func (d *Disk) Open(_ context.Context, p string) (io.ReadCloser, error) {
	fp, err := d.fullPath(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fp)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.ErrBlobNotFound
		}
		return nil, err
	}
	return f, nil
}

func (d *Disk) Delete(_ context.Context, p string) error {
	fp, err := d.fullPath(p)
	if err != nil {
		return err
	}
	if err = os.Remove(fp); err != nil {
		if os.IsNotExist(err) {
			return core.ErrBlobNotFound
		}
		return err
	}
	return nil
}

// SignedURL returns `<baseURL>?path=&expires=&signature=`, checked by Verify.
func (d *Disk) SignedURL(_ context.Context, p string, expiry time.Duration) (string, error) {
	if _, err := d.fullPath(p); err != nil {
		return "", err
	}
	expires := strconv.FormatInt(d.nowFunc().Add(expiry).Unix(), 10)
	q := make(url.Values)
	q.Set("path", p)
	q.Set("expires", expires)
	q.Set("signature", d.sign(p, expires))
	return d.baseURL + "?" + q.Encode(), nil
}

// Verify checks a signature produced by SignedURL.
func (d *Disk) Verify(p, expires, signature string) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || d.nowFunc().Unix() > exp {
		return ErrInvalidSignature
	}
	if !hmac.Equal([]byte(d.sign(p, expires)), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

func (d *Disk) sign(p, expires string) string {
	mac := hmac.New(sha256.New, d.secret)
	_, _ = mac.Write([]byte(p + "\n" + expires))
	return hex.EncodeToString(mac.Sum(nil))
}
