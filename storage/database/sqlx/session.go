package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/studyhub/core/session"
)

const (
	requestColumns = "id, group_id, requested_by, topic, date, start_time, end_time, status, session_id, created_at, updated_at"
	sessionColumns = "id, group_id, created_by, topic, date, start_time, end_time, meeting_link, request_id, status, created_at, updated_at"
)

type requestRow struct {
	ID          string      `db:"id"`
	GroupID     string      `db:"group_id"`
	RequestedBy string      `db:"requested_by"`
	Topic       string      `db:"topic"`
	Date        string      `db:"date"`
	StartTime   string      `db:"start_time"`
	EndTime     string      `db:"end_time"`
	Status      string      `db:"status"`
	SessionID   null.String `db:"session_id"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (r requestRow) toRequest() session.Request {
	return session.Request{
		ID:          r.ID,
		GroupID:     r.GroupID,
		RequestedBy: r.RequestedBy,
		Topic:       r.Topic,
		Date:        r.Date,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Status:      r.Status,
		SessionID:   r.SessionID.String,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type sessionRow struct {
	ID          string      `db:"id"`
	GroupID     string      `db:"group_id"`
	CreatedBy   string      `db:"created_by"`
	Topic       string      `db:"topic"`
	Date        string      `db:"date"`
	StartTime   string      `db:"start_time"`
	EndTime     string      `db:"end_time"`
	MeetingLink null.String `db:"meeting_link"`
	RequestID   null.String `db:"request_id"`
	Status      string      `db:"status"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (r sessionRow) toSession() session.Session {
	return session.Session{
		ID:          r.ID,
		GroupID:     r.GroupID,
		CreatedBy:   r.CreatedBy,
		Topic:       r.Topic,
		Date:        r.Date,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		MeetingLink: r.MeetingLink.String,
		RequestID:   r.RequestID.String,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type sessionRepository struct {
	db *sqlx.DB
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *sqlx.DB) session.Repository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) CreateRequest(ctx context.Context, req session.Request) (session.Request, error) {
	qb := psql.Insert("session_request").
		Columns("id", "group_id", "requested_by", "topic", "date", "start_time", "end_time", "status", "session_id",
			"created_at", "updated_at").
		Values(req.ID, req.GroupID, req.RequestedBy, req.Topic, req.Date, req.StartTime, req.EndTime, req.Status,
			nullString(req.SessionID), req.CreatedAt, req.UpdatedAt)
	if _, err := exec(ctx, repo.db, qb); err != nil {
		return session.Request{}, err
	}
	return req, nil
}

func (repo *sessionRepository) getRequest(ctx context.Context, id string, forUpdate bool) (session.Request, error) {
	qb := psql.Select(requestColumns).From("session_request").Where(sq.Eq{"id": id})
	if forUpdate && inTx(ctx) {
		qb = qb.Suffix("FOR UPDATE")
	}
	var row requestRow
	if err := get(ctx, repo.db, &row, qb); err != nil {
		return session.Request{}, notFound(err, session.ErrRequestNotFound)
	}
	return row.toRequest(), nil
}

func (repo *sessionRepository) GetRequest(ctx context.Context, id string) (session.Request, error) {
	return repo.getRequest(ctx, id, false)
}

func (repo *sessionRepository) GetRequestForUpdate(ctx context.Context, id string) (session.Request, error) {
	return repo.getRequest(ctx, id, true)
}

func (repo *sessionRepository) QueryRequests(ctx context.Context, groupID, status string) ([]session.Request, error) {
	qb := psql.Select(requestColumns).From("session_request").Where(sq.Eq{"group_id": groupID}).OrderBy("created_at DESC")
	if status != "" {
		qb = qb.Where(sq.Eq{"status": status})
	}
	var rows []requestRow
	if err := selectRows(ctx, repo.db, &rows, qb); err != nil {
		return nil, err
	}
	requests := make([]session.Request, 0, len(rows))
	for _, r := range rows {
		requests = append(requests, r.toRequest())
	}
	return requests, nil
}

func (repo *sessionRepository) UpdateRequest(ctx context.Context, req session.Request) (session.Request, error) {
	qb := psql.Update("session_request").
		SetMap(map[string]interface{}{
			"topic":      req.Topic,
			"date":       req.Date,
			"start_time": req.StartTime,
			"end_time":   req.EndTime,
			"status":     req.Status,
			"session_id": nullString(req.SessionID),
			"updated_at": req.UpdatedAt,
		}).
		Where(sq.Eq{"id": req.ID})
	n, err := exec(ctx, repo.db, qb)
	if err != nil {
		return session.Request{}, err
	}
	if n == 0 {
		return session.Request{}, session.ErrRequestNotFound
	}
	return req, nil
}

func (repo *sessionRepository) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	qb := psql.Insert("study_session").
		Columns("id", "group_id", "created_by", "topic", "date", "start_time", "end_time", "meeting_link", "request_id",
			"status", "created_at", "updated_at").
		Values(sess.ID, sess.GroupID, sess.CreatedBy, sess.Topic, sess.Date, sess.StartTime, sess.EndTime,
			nullString(sess.MeetingLink), nullString(sess.RequestID), sess.Status, sess.CreatedAt, sess.UpdatedAt)
	if _, err := exec(ctx, repo.db, qb); err != nil {
		if isUniqueViolation(err) {
			return session.Session{}, session.ErrRequestNotPending
		}
		return session.Session{}, err
	}
	return sess, nil
}

func (repo *sessionRepository) GetSession(ctx context.Context, id string) (session.Session, error) {
	var row sessionRow
	if err := get(ctx, repo.db, &row, psql.Select(sessionColumns).From("study_session").Where(sq.Eq{"id": id})); err != nil {
		return session.Session{}, notFound(err, session.ErrNotFound)
	}
	return row.toSession(), nil
}

func (repo *sessionRepository) QuerySessions(ctx context.Context, groupIDs ...string) ([]session.Session, error) {
	if len(groupIDs) == 0 {
		return []session.Session{}, nil
	}
	qb := psql.Select(sessionColumns).From("study_session").
		Where(sq.Eq{"group_id": groupIDs}).
		OrderBy("date ASC", "start_time ASC")
	var rows []sessionRow
	if err := selectRows(ctx, repo.db, &rows, qb); err != nil {
		return nil, err
	}
	sessions := make([]session.Session, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, r.toSession())
	}
	return sessions, nil
}

func (repo *sessionRepository) UpdateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	qb := psql.Update("study_session").
		SetMap(map[string]interface{}{
			"topic":        sess.Topic,
			"date":         sess.Date,
			"start_time":   sess.StartTime,
			"end_time":     sess.EndTime,
			"meeting_link": nullString(sess.MeetingLink),
			"status":       sess.Status,
			"updated_at":   sess.UpdatedAt,
		}).
		Where(sq.Eq{"id": sess.ID})
	n, err := exec(ctx, repo.db, qb)
	if err != nil {
		return session.Session{}, err
	}
	if n == 0 {
		return session.Session{}, session.ErrNotFound
	}
	return sess, nil
}

func (repo *sessionRepository) DeleteSession(ctx context.Context, id string) error {
	n, err := exec(ctx, repo.db, psql.Delete("study_session").Where(sq.Eq{"id": id}))
	if err != nil {
		return err
	}
	if n == 0 {
		return session.ErrNotFound
	}
	return nil
}
