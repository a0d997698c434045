package material

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/studyhub/core"
)

var (
	// errors
	ErrNotFound     = core.NewNotFoundError("material not found")
	ErrNotAFile     = core.NewInvalidError("this material is not a file")
	ErrFileTooLarge = core.NewInvalidError("the file exceeds the maximum upload size")
	ErrEmptyFile    = core.NewInvalidError("the file is empty")
)

type (
	Repository interface {
		CreateMaterial(ctx context.Context, mat Material) (Material, error)
		GetMaterial(ctx context.Context, id string) (Material, error)
		// QueryMaterials returns the materials of a group, newest first. An empty kind matches all.
		QueryMaterials(ctx context.Context, groupID, kind string) ([]Material, error)
		DeleteMaterial(ctx context.Context, id string) error
		// DeleteMemberMaterials deletes the materials userID authored in groupID and returns them.
		DeleteMemberMaterials(ctx context.Context, groupID, userID string) ([]Material, error)
	}

	Service struct {
		repo      Repository
		blob      core.BlobStorage
		logger    core.Logger
		maxSize   int64
		urlExpiry time.Duration
		nowFunc   func() time.Time
	}
)

func NewService(repo Repository, blob core.BlobStorage, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		repo:      repo,
		blob:      blob,
		logger:    logger,
		maxSize:   conf.Blob.MaxUploadSize,
		urlExpiry: conf.Blob.SignedURLExpiry,
		nowFunc:   time.Now,
	}
}

func (svc *Service) MaxUploadSize() int64 {
	return svc.maxSize
}

func (svc *Service) Create(ctx context.Context, groupID, userID string, nm NewMaterial) (Material, error) {
	now := svc.nowFunc().UTC()
	return svc.repo.CreateMaterial(ctx, Material{
		ID:        uuid.New().String(),
		GroupID:   groupID,
		UserID:    userID,
		Title:     nm.Title,
		Content:   nm.Content,
		Kind:      nm.Kind,
		URL:       nm.URL,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// Upload stores the file under `{groupID}/{userID}/{unixMillis}-{name}` and records it.
func (svc *Service) Upload(ctx context.Context, groupID, userID string, up Upload) (Material, error) {
	if up.Size > svc.maxSize {
		return Material{}, ErrFileTooLarge
	}
	if up.Size == 0 {
		return Material{}, ErrEmptyFile
	}

	now := svc.nowFunc().UTC()
	fpath := FilePath(groupID, userID, up.FileName, now)
	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := svc.blob.Put(ctx, fpath, io.LimitReader(up.Body, svc.maxSize), up.Size, contentType); err != nil {
		return Material{}, errors.Wrap(err, "storing file")
	}

	title := core.CleanString(up.Title)
	if title == "" {
		title = up.FileName
	}
	mat, err := svc.repo.CreateMaterial(ctx, Material{
		ID:        uuid.New().String(),
		GroupID:   groupID,
		UserID:    userID,
		Title:     title,
		Kind:      KindFile,
		FilePath:  fpath,
		FileName:  up.FileName,
		FileSize:  up.Size,
		MimeType:  contentType,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		svc.deleteBlob(fpath)
		return Material{}, err
	}
	return mat, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Material, error) {
	return svc.repo.GetMaterial(ctx, id)
}

func (svc *Service) List(ctx context.Context, groupID, kind string) ([]Material, error) {
	return svc.repo.QueryMaterials(ctx, groupID, kind)
}

// Delete deletes the material, then its file.
func (svc *Service) Delete(ctx context.Context, id string) error {
	mat, err := svc.repo.GetMaterial(ctx, id)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteMaterial(ctx, id); err != nil {
		return err
	}
	if mat.IsFile() {
		core.AfterCommit(ctx, func() { svc.deleteBlob(mat.FilePath) })
	}
	return nil
}

// SignedURL returns a time limited download URL for a file material.
func (svc *Service) SignedURL(ctx context.Context, id string) (string, error) {
	mat, err := svc.repo.GetMaterial(ctx, id)
	if err != nil {
		return "", err
	}
	if !mat.IsFile() {
		return "", ErrNotAFile
	}
	return svc.blob.SignedURL(ctx, mat.FilePath, svc.urlExpiry)
}

// Open returns the content of a file material. The caller closes it.
func (svc *Service) Open(ctx context.Context, id string) (io.ReadCloser, Material, error) {
	mat, err := svc.repo.GetMaterial(ctx, id)
	if err != nil {
		return nil, Material{}, err
	}
	if !mat.IsFile() {
		return nil, Material{}, ErrNotAFile
	}
	rc, err := svc.blob.Open(ctx, mat.FilePath)
	if err != nil {
		return nil, Material{}, err
	}
	return rc, mat, nil
}

// PurgeMember deletes the materials userID authored in groupID.
// Their files are deleted once the enclosing transaction commits.
func (svc *Service) PurgeMember(ctx context.Context, groupID, userID string) error {
	deleted, err := svc.repo.DeleteMemberMaterials(ctx, groupID, userID)
	if err != nil {
		return errors.Wrap(err, "deleting member materials")
	}
	var paths []string
	for _, mat := range deleted {
		if mat.IsFile() {
			paths = append(paths, mat.FilePath)
		}
	}
	if len(paths) > 0 {
		core.AfterCommit(ctx, func() {
			for _, p := range paths {
				svc.deleteBlob(p)
			}
		})
	}
	return nil
}

func (svc *Service) deleteBlob(fpath string) {
	if err := svc.blob.Delete(context.Background(), fpath); err != nil && errors.Cause(err) != core.ErrBlobNotFound {
		svc.logger.Warn(fmt.Sprintf("deleting file %s: %v", fpath, err), err)
	}
}

// FilePath returns the storage path of a file uploaded by userID to groupID at t.
func FilePath(groupID, userID, fileName string, t time.Time) string {
	return path.Join(groupID, userID, fmt.Sprintf("%d-%s", t.UnixNano()/int64(time.Millisecond), SanitizeFileName(fileName)))
}

// SanitizeFileName replaces every character outside [A-Za-z0-9._-] with an underscore.
func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if len(s) > 120 {
		s = s[len(s)-120:]
	}
	return s
}
