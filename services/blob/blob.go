// Package blobsvc provides the file storage backends.
package blobsvc

import (
	"github.com/pkg/errors"

	"github.com/trezcool/studyhub/core"
)

// New returns the configured storage backend.
func New(conf *core.Config) (core.BlobStorage, error) {
	switch conf.Blob.Backend {
	case "", "disk":
		return NewDisk(conf)
	case "oss":
		return NewOSS(conf)
	}
	return nil, errors.Errorf("unknown blob backend %q", conf.Blob.Backend)
}
