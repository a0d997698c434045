package session

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/studyhub/core"
	"github.com/trezcool/studyhub/core/group"
	"github.com/trezcool/studyhub/core/user"
)

var (
	// errors
	ErrRequestNotFound   = core.NewNotFoundError("session request not found")
	ErrNotFound          = core.NewNotFoundError("session not found")
	ErrRequestNotPending = core.NewConflictError("this session request has already been reviewed")
)

type (
	Repository interface {
		CreateRequest(ctx context.Context, req Request) (Request, error)
		GetRequest(ctx context.Context, id string) (Request, error)
		// GetRequestForUpdate is GetRequest, locking the request row until the enclosing transaction ends.
		GetRequestForUpdate(ctx context.Context, id string) (Request, error)
		// QueryRequests returns the requests of a group, newest first. An empty status matches all.
		QueryRequests(ctx context.Context, groupID, status string) ([]Request, error)
		UpdateRequest(ctx context.Context, req Request) (Request, error)

		CreateSession(ctx context.Context, sess Session) (Session, error)
		GetSession(ctx context.Context, id string) (Session, error)
		QuerySessions(ctx context.Context, groupIDs ...string) ([]Session, error)
		UpdateSession(ctx context.Context, sess Session) (Session, error)
		DeleteSession(ctx context.Context, id string) error
	}

	GroupLookup interface {
		Get(ctx context.Context, id string) (group.Group, error)
	}

	UserLookup interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo    Repository
		tx      core.Transactor
		groups  GroupLookup
		users   UserLookup
		mailSvc core.EmailService
		logger  core.Logger
		loc     *time.Location
		nowFunc func() time.Time
	}
)

func NewService(
	repo Repository,
	tx core.Transactor,
	groups GroupLookup,
	users UserLookup,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *Service {
	loc, err := location(conf.Session.Timezone)
	if err != nil {
		logger.Warn(fmt.Sprintf("session.timezone %q: %v, using the server's zone", conf.Session.Timezone, err), err)
	}
	return &Service{
		repo:    repo,
		tx:      tx,
		groups:  groups,
		users:   users,
		mailSvc: mailSvc,
		logger:  logger,
		loc:     loc,
		nowFunc: time.Now,
	}
}

// location resolves the zone session wall-clock values are read in. An empty name is the server's zone.
func location(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local, err
	}
	return loc, nil
}

// CreateRequest records a pending session proposal. Overlaps with existing sessions are not checked.
func (svc *Service) CreateRequest(ctx context.Context, groupID, userID string, nr NewRequest) (Request, error) {
	now := time.Now().UTC()
	req, err := svc.repo.CreateRequest(ctx, Request{
		ID:          uuid.New().String(),
		GroupID:     groupID,
		RequestedBy: userID,
		Topic:       nr.Topic,
		Date:        nr.Date,
		StartTime:   nr.StartTime,
		EndTime:     nr.EndTime,
		Status:      RequestPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Request{}, err
	}
	svc.notifyRequested(ctx, req)
	return req, nil
}

func (svc *Service) GetRequest(ctx context.Context, id string) (Request, error) {
	return svc.repo.GetRequest(ctx, id)
}

func (svc *Service) ListRequests(ctx context.Context, groupID, status string) ([]Request, error) {
	return svc.repo.QueryRequests(ctx, groupID, status)
}

// AcceptRequest creates the Session described by a pending request, applying the overrides,
// and marks the request accepted. Both writes commit together.
// A request that is no longer pending is refused, so retries never create a second Session.
func (svc *Service) AcceptRequest(ctx context.Context, requestID, userID string, ar AcceptRequest) (Session, error) {
	var (
		req  Request
		sess Session
	)
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if req, err = svc.repo.GetRequestForUpdate(ctx, requestID); err != nil {
			return err
		}
		if req.Status != RequestPending {
			return ErrRequestNotPending
		}

		now := time.Now().UTC()
		sess = Session{
			ID:        uuid.New().String(),
			GroupID:   req.GroupID,
			CreatedBy: userID,
			Topic:     pick(ar.Topic, req.Topic),
			Date:      pick(ar.Date, req.Date),
			StartTime: pick(ar.StartTime, req.StartTime),
			EndTime:   pick(ar.EndTime, req.EndTime),
			RequestID: req.ID,
			Status:    StatusUpcoming,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if ar.MeetingLink != nil {
			sess.MeetingLink = *ar.MeetingLink
		}
		if sess, err = svc.repo.CreateSession(ctx, sess); err != nil {
			return errors.Wrap(err, "creating session")
		}

		req.Status = RequestAccepted
		req.SessionID = sess.ID
		req.UpdatedAt = now
		if req, err = svc.repo.UpdateRequest(ctx, req); err != nil {
			return errors.Wrap(err, "updating session request")
		}
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	svc.notifyReviewed(ctx, req, sess.MeetingLink)
	return sess, nil
}

// RejectRequest marks a pending request rejected. No Session is created.
func (svc *Service) RejectRequest(ctx context.Context, requestID string) (Request, error) {
	var req Request
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if req, err = svc.repo.GetRequestForUpdate(ctx, requestID); err != nil {
			return err
		}
		if req.Status != RequestPending {
			return ErrRequestNotPending
		}
		req.Status = RequestRejected
		req.UpdatedAt = time.Now().UTC()
		req, err = svc.repo.UpdateRequest(ctx, req)
		return err
	})
	if err != nil {
		return Request{}, err
	}
	svc.notifyReviewed(ctx, req, "")
	return req, nil
}

// CreateSession creates an upcoming session without going through a Request.
func (svc *Service) CreateSession(ctx context.Context, groupID, userID string, ns NewSession) (Session, error) {
	now := time.Now().UTC()
	return svc.repo.CreateSession(ctx, Session{
		ID:          uuid.New().String(),
		GroupID:     groupID,
		CreatedBy:   userID,
		Topic:       ns.Topic,
		Date:        ns.Date,
		StartTime:   ns.StartTime,
		EndTime:     ns.EndTime,
		MeetingLink: ns.MeetingLink,
		Status:      StatusUpcoming,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) GetSession(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSession(ctx, id)
}

func (svc *Service) ListSessions(ctx context.Context, groupID string) ([]Session, error) {
	return svc.repo.QuerySessions(ctx, groupID)
}

// ListUpcoming returns the upcoming sessions of the given groups, soonest first.
func (svc *Service) ListUpcoming(ctx context.Context, groupIDs ...string) ([]Session, error) {
	if len(groupIDs) == 0 {
		return []Session{}, nil
	}
	sessions, err := svc.repo.QuerySessions(ctx, groupIDs...)
	if err != nil {
		return nil, err
	}
	return FilterUpcoming(sessions, svc.nowFunc(), svc.loc), nil
}

func (svc *Service) UpdateSession(ctx context.Context, id string, us UpdateSession) (Session, error) {
	sess, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	sess.Topic = pick(us.Topic, sess.Topic)
	sess.Date = pick(us.Date, sess.Date)
	sess.StartTime = pick(us.StartTime, sess.StartTime)
	if us.EndTime != nil {
		sess.EndTime = *us.EndTime
	}
	if us.MeetingLink != nil {
		sess.MeetingLink = *us.MeetingLink
	}
	sess.Status = pick(us.Status, sess.Status)
	sess.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSession(ctx, sess)
}

func (svc *Service) DeleteSession(ctx context.Context, id string) error {
	return svc.repo.DeleteSession(ctx, id)
}

// Notifications are best effort: failures are logged and never returned.

type requestMailData struct {
	Name          string
	RequesterName string
	GroupID       string
	GroupName     string
	Topic         string
	Date          string
	StartTime     string
	EndTime       string
}

type reviewMailData struct {
	Name        string
	GroupName   string
	Topic       string
	Status      string
	MeetingLink string
}

func (svc *Service) notifyRequested(ctx context.Context, req Request) {
	grp, err := svc.groups.Get(ctx, req.GroupID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("session request %s: loading group: %v", req.ID, err), err)
		return
	}
	if grp.OwnerID == req.RequestedBy {
		return
	}
	owner, err := svc.users.GetByID(ctx, grp.OwnerID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("session request %s: loading owner: %v", req.ID, err), err)
		return
	}
	requester, err := svc.users.GetByID(ctx, req.RequestedBy)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("session request %s: loading requester: %v", req.ID, err), err)
		return
	}
	if owner.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: owner.DisplayName(), Address: owner.Email}},
		Subject:      "New study session request",
		TemplateName: "session_request",
		TemplateData: requestMailData{
			Name:          owner.DisplayName(),
			RequesterName: requester.DisplayName(),
			GroupID:       grp.ID,
			GroupName:     grp.Name,
			Topic:         req.Topic,
			Date:          req.Date,
			StartTime:     req.StartTime,
			EndTime:       req.EndTime,
		},
	})
}

func (svc *Service) notifyReviewed(ctx context.Context, req Request, meetingLink string) {
	grp, err := svc.groups.Get(ctx, req.GroupID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("session request %s: loading group: %v", req.ID, err), err)
		return
	}
	requester, err := svc.users.GetByID(ctx, req.RequestedBy)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("session request %s: loading requester: %v", req.ID, err), err)
		return
	}
	if requester.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: requester.DisplayName(), Address: requester.Email}},
		Subject:      "Study session request " + req.Status,
		TemplateName: "session_request_reviewed",
		TemplateData: reviewMailData{
			Name:        requester.DisplayName(),
			GroupName:   grp.Name,
			Topic:       req.Topic,
			Status:      req.Status,
			MeetingLink: meetingLink,
		},
	})
}
