package user

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/studyhub/core"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("user not found")
	ErrEmailExists    = core.NewConflictError("a user with this email already exists")
	ErrUsernameExists = core.NewConflictError("a user with this username already exists")
	ErrInvalidAvatar  = core.NewInvalidError("unsupported image")
)

type (
	Repository interface {
		CheckUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// GetUsers returns the users matching ids, in no particular order. Unknown ids are ignored.
		GetUsers(ctx context.Context, ids ...string) ([]User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsers(ctx context.Context, ids ...string) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		blob    core.BlobStorage
		logger  core.Logger
	}
)

func NewService(repo Repository, mailSvc core.EmailService, blob core.BlobStorage, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		blob:    blob,
		logger:  logger,
	}
}

func (svc *Service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, exclUsers...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	roles := nu.Roles
	if len(roles) == 0 {
		roles = []string{RoleStudent}
	}
	usr := User{
		ID:             uuid.New().String(),
		Name:           nu.Name,
		Username:       nu.Username,
		Email:          nu.Email,
		IsActive:       true,
		Roles:          roles,
		Subjects:       nu.Subjects,
		EducationLevel: nu.EducationLevel,
		StudyStyle:     nu.StudyStyle,
		Timezone:       nu.Timezone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetMany(ctx context.Context, ids ...string) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return svc.repo.GetUsers(ctx, ids...)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *Service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// UpdateProfile saves the study preferences of usr.
func (svc *Service) UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (User, error) {
	up.apply(&usr)
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetAvatar resizes the image read from r and stores it as the user's avatar.
// The previous avatar is deleted once the user is saved.
func (svc *Service) SetAvatar(ctx context.Context, usr User, r io.Reader) (User, error) {
	buf, err := resizeAvatar(r)
	if err != nil {
		return User{}, err
	}

	prevPath := usr.AvatarPath
	usr.AvatarPath = fmt.Sprintf("avatars/%s/%d.jpg", usr.ID, time.Now().UnixNano()/int64(time.Millisecond))
	if err = svc.blob.Put(ctx, usr.AvatarPath, buf, int64(buf.Len()), "image/jpeg"); err != nil {
		return User{}, errors.Wrap(err, "storing avatar")
	}

	usr.UpdatedAt = time.Now().UTC()
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return User{}, err
	}
	if prevPath != "" {
		if err = svc.blob.Delete(ctx, prevPath); err != nil {
			svc.logger.Warn(fmt.Sprintf("deleting previous avatar %q: %v", prevPath, err), err, usr)
		}
	}
	return usr, nil
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsers(ctx, ids...)
}

// RequestPasswordReset emails a password reset link to the active user owning `email`.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	token, err := MakeToken(usr)
	if err != nil {
		return errors.Wrap(err, "making token")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.DisplayName(), Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":     usr.DisplayName(),
			"Username": usr.Username,
			"UID":      EncodeUID(usr),
			"Token":    token,
		},
	})
	return nil
}

// ResetPassword sets a new password when the reset token is valid.
func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	invalidErr := core.NewValidationError(errors.New("invalid token"), core.FieldError{Field: "token", Error: "invalid or expired token"})

	uid, err := decodeUID(rp.UID)
	if err != nil {
		return invalidErr
	}
	usr, err := svc.GetByID(ctx, uid)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalidErr
		}
		return err
	}
	if err = verifyToken(usr, rp.Token); err != nil {
		return invalidErr
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}
