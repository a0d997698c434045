package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/studyhub/core/session"
)

type sessionRepository struct {
	db *DB
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) session.Repository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) CreateRequest(ctx context.Context, req session.Request) (session.Request, error) {
	defer repo.db.lock(ctx)()
	repo.db.t.requests[req.ID] = req
	return req, nil
}

func (repo *sessionRepository) GetRequest(ctx context.Context, id string) (session.Request, error) {
	defer repo.db.lock(ctx)()

	req, ok := repo.db.t.requests[id]
	if !ok {
		return session.Request{}, session.ErrRequestNotFound
	}
	return req, nil
}

func (repo *sessionRepository) GetRequestForUpdate(ctx context.Context, id string) (session.Request, error) {
	return repo.GetRequest(ctx, id)
}

func (repo *sessionRepository) QueryRequests(ctx context.Context, groupID, status string) ([]session.Request, error) {
	defer repo.db.lock(ctx)()

	requests := make([]session.Request, 0)
	for _, req := range repo.db.t.requests {
		if req.GroupID == groupID && (status == "" || req.Status == status) {
			requests = append(requests, req)
		}
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].CreatedAt.After(requests[j].CreatedAt) })
	return requests, nil
}

func (repo *sessionRepository) UpdateRequest(ctx context.Context, req session.Request) (session.Request, error) {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.requests[req.ID]; !ok {
		return session.Request{}, session.ErrRequestNotFound
	}
	repo.db.t.requests[req.ID] = req
	return req, nil
}

func (repo *sessionRepository) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	defer repo.db.lock(ctx)()
	repo.db.t.sessions[sess.ID] = sess
	return sess, nil
}

func (repo *sessionRepository) GetSession(ctx context.Context, id string) (session.Session, error) {
	defer repo.db.lock(ctx)()

	sess, ok := repo.db.t.sessions[id]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	return sess, nil
}

func (repo *sessionRepository) QuerySessions(ctx context.Context, groupIDs ...string) ([]session.Session, error) {
	defer repo.db.lock(ctx)()

	in := make(map[string]bool, len(groupIDs))
	for _, id := range groupIDs {
		in[id] = true
	}
	sessions := make([]session.Session, 0)
	for _, sess := range repo.db.t.sessions {
		if in[sess.GroupID] {
			sessions = append(sessions, sess)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].Date != sessions[j].Date {
			return sessions[i].Date < sessions[j].Date
		}
		return sessions[i].StartTime < sessions[j].StartTime
	})
	return sessions, nil
}

func (repo *sessionRepository) UpdateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.sessions[sess.ID]; !ok {
		return session.Session{}, session.ErrNotFound
	}
	repo.db.t.sessions[sess.ID] = sess
	return sess, nil
}

func (repo *sessionRepository) DeleteSession(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.sessions[id]; !ok {
		return session.ErrNotFound
	}
	repo.db.t.deleteSession(id)
	return nil
}
