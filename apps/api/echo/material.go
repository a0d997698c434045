package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/studyhub/core"
	"github.com/trezcool/studyhub/core/group"
	"github.com/trezcool/studyhub/core/material"
	"github.com/trezcool/studyhub/core/user"
)

type materialApi struct {
	svc      *material.Service
	groups   *group.Service
	users    *user.Service
	validate *validator.Validate
}

func registerMaterialAPI(r routes, deps ServerDeps) {
	api := materialApi{
		svc:      deps.MaterialSvc,
		groups:   deps.GroupSvc,
		users:    deps.UserSvc,
		validate: deps.Validate,
	}
	member := groupMemberMiddleware(api.users, api.groups)
	// leave room for the multipart envelope, the exact cap is checked by the service
	bodyLimit := middleware.BodyLimit(fmt.Sprintf("%dK", api.svc.MaxUploadSize()>>10+512))

	gg := r.groups
	gg.GET("/:id/materials", api.list, member)
	gg.POST("/:id/materials", api.create, member)
	gg.POST("/:id/files", api.upload, bodyLimit, member)

	mg := r.api.Group("/materials", r.jwt)
	mg.GET("/:id", api.retrieve)
	mg.DELETE("/:id", api.destroy)
	mg.GET("/:id/url", api.signedURL)
	mg.GET("/:id/download", api.download)
}

func registerFilesAPI(g *echo.Group, files SignedFiles) {
	g.GET("/files/signed", func(ctx echo.Context) error {
		p := ctx.QueryParam("path")
		if err := files.Verify(p, ctx.QueryParam("expires"), ctx.QueryParam("signature")); err != nil {
			return err
		}
		rc, err := files.Open(ctx.Request().Context(), p)
		if err != nil {
			return errors.Wrap(err, "opening file")
		}
		defer rc.Close()
		return ctx.Stream(http.StatusOK, echo.MIMEOctetStream, rc)
	})
}

func (api *materialApi) list(ctx echo.Context) error {
	mats, err := api.svc.List(ctx.Request().Context(), contextGroup(ctx).ID, ctx.QueryParam("kind"))
	if err != nil {
		return errors.Wrap(err, "listing materials")
	}
	if mats == nil {
		mats = []material.Material{}
	}
	return ctx.JSON(http.StatusOK, mats)
}

func (api *materialApi) create(ctx echo.Context) error {
	var data material.NewMaterial
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMaterial")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mat, err := api.svc.Create(ctx.Request().Context(), contextGroup(ctx).ID, contextMember(ctx).UserID, data)
	if err != nil {
		return errors.Wrap(err, "creating material")
	}
	return ctx.JSON(http.StatusCreated, mat)
}

func (api *materialApi) upload(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "file", Error: "this field is required"})
	}
	file, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer file.Close()

	title := core.CleanString(ctx.FormValue("title"))
	if title == "" {
		title = fh.Filename
	}
	mat, err := api.svc.Upload(ctx.Request().Context(), contextGroup(ctx).ID, contextMember(ctx).UserID, material.Upload{
		Title:       title,
		FileName:    fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Body:        file,
	})
	if err != nil {
		return errors.Wrap(err, "uploading file")
	}
	return ctx.JSON(http.StatusCreated, mat)
}

// visibleMaterial loads the material named by `:id` when the caller is a member of its group.
func (api *materialApi) visibleMaterial(ctx echo.Context) (material.Material, group.Member, error) {
	mat, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return material.Material{}, group.Member{}, errors.Wrap(err, "finding material")
	}
	mbr, err := requireMember(ctx, api.users, api.groups, mat.GroupID)
	if err != nil {
		return material.Material{}, group.Member{}, err
	}
	return mat, mbr, nil
}

func (api *materialApi) retrieve(ctx echo.Context) error {
	mat, _, err := api.visibleMaterial(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, mat)
}

func (api *materialApi) destroy(ctx echo.Context) error {
	mat, mbr, err := api.visibleMaterial(ctx)
	if err != nil {
		return err
	}
	if mat.UserID != mbr.UserID && !mbr.CanManage() {
		return errHttpForbidden
	}
	if err = api.svc.Delete(ctx.Request().Context(), mat.ID); err != nil {
		return errors.Wrap(err, "deleting material")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *materialApi) signedURL(ctx echo.Context) error {
	mat, _, err := api.visibleMaterial(ctx)
	if err != nil {
		return err
	}
	url, err := api.svc.SignedURL(ctx.Request().Context(), mat.ID)
	if err != nil {
		return errors.Wrap(err, "signing url")
	}
	return ctx.JSON(http.StatusOK, SignedURLResponse{URL: url})
}

func (api *materialApi) download(ctx echo.Context) error {
	if _, _, err := api.visibleMaterial(ctx); err != nil {
		return err
	}
	rc, mat, err := api.svc.Open(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "opening file")
	}
	defer rc.Close()

	ct := mat.MimeType
	if ct == "" {
		ct = echo.MIMEOctetStream
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", mat.FileName))
	return ctx.Stream(http.StatusOK, ct, rc)
}

type SignedURLResponse struct {
	URL string `json:"url"`
}
