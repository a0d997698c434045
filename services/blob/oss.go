package blobsvc

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/pkg/errors"

	"github.com/trezcool/studyhub/core"
)

// OSS stores files in an Aliyun OSS bucket.
type OSS struct {
	bucket *oss.Bucket
}

var _ core.BlobStorage = (*OSS)(nil) // interface compliance check

func NewOSS(conf *core.Config) (*OSS, error) {
	client, err := oss.New(conf.Blob.OSSEndpoint, conf.Blob.OSSAccessKey, conf.Blob.OSSSecretKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating OSS client")
	}
	bucket, err := client.Bucket(conf.Blob.OSSBucket)
	if err != nil {
		return nil, errors.Wrapf(err, "opening OSS bucket %s", conf.Blob.OSSBucket)
	}
	return &OSS{bucket: bucket}, nil
}

func (s *OSS) Put(ctx context.Context, path string, r io.Reader, _ int64, contentType string) error {
	err := s.bucket.PutObject(path, r,
		oss.WithContext(ctx),
		oss.ContentType(contentType),
		oss.ContentDisposition("inline"),
	)
	return errors.Wrapf(err, "putting object %s", path)
}

func (s *OSS) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	rc, err := s.bucket.GetObject(path, oss.WithContext(ctx))
	if err != nil {
		if isNoSuchKey(err) {
			return nil, core.ErrBlobNotFound
		}
		return nil, errors.Wrapf(err, "getting object %s", path)
	}
	return rc, nil
}

func (s *OSS) SignedURL(_ context.Context, path string, expiry time.Duration) (string, error) {
	u, err := s.bucket.SignURL(path, oss.HTTPGet, int64(expiry/time.Second))
	if err != nil {
		return "", errors.Wrapf(err, "signing url for %s", path)
	}
	return u, nil
}

func (s *OSS) Delete(ctx context.Context, path string) error {
	if err := s.bucket.DeleteObject(path, oss.WithContext(ctx)); err != nil {
		if isNoSuchKey(err) {
			return core.ErrBlobNotFound
		}
		return errors.Wrapf(err, "deleting object %s", path)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	se, ok := errors.Cause(err).(oss.ServiceError)
	return ok && (se.StatusCode == http.StatusNotFound || se.Code == "NoSuchKey")
}
