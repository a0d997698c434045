package group

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/studyhub/core"
	"github.com/trezcool/studyhub/core/match"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("group not found")
	ErrMemberNotFound    = core.NewNotFoundError("member not found")
	ErrAlreadyMember     = core.NewConflictError("already a member of this group")
	ErrGroupFull         = core.NewConflictError("this group is full")
	ErrGroupPrivate      = core.NewForbiddenError("this group is private")
	ErrOwnerCannotLeave  = core.NewForbiddenError("the owner cannot leave the group")
	ErrCannotRemoveOwner = core.NewForbiddenError("the owner cannot be removed from the group")
	ErrCannotChangeOwner = core.NewForbiddenError("the owner's role cannot be changed")
	ErrMaxMembersTooLow  = core.NewInvalidError("max_members cannot be lower than the current number of members")
)

type (
	Repository interface {
		CreateGroup(ctx context.Context, grp Group) (Group, error)
		// GetGroup returns the group with its MemberCount.
		GetGroup(ctx context.Context, id string) (Group, error)
		// GetGroupForUpdate is GetGroup, locking the group row until the enclosing transaction ends.
		GetGroupForUpdate(ctx context.Context, id string) (Group, error)
		QueryGroups(ctx context.Context, filter QueryFilter) ([]Group, error)
		// QueryCandidates returns every public group with its member count, the owner's timezone
		// and whether userID is already a member.
		QueryCandidates(ctx context.Context, userID string) ([]Candidate, error)
		UpdateGroup(ctx context.Context, grp Group) (Group, error)
		DeleteGroup(ctx context.Context, id string) error

		AddMember(ctx context.Context, mbr Member) (Member, error)
		GetMember(ctx context.Context, groupID, userID string) (Member, error)
		QueryMembers(ctx context.Context, groupID string) ([]Member, error)
		UpdateMember(ctx context.Context, mbr Member) (Member, error)
		DeleteMember(ctx context.Context, groupID, userID string) error
		QueryUserGroupIDs(ctx context.Context, userID string) ([]string, error)
	}

	// MemberCleaner deletes the content a member owns in a group.
	// It is called inside the transaction removing the member.
	MemberCleaner interface {
		PurgeMember(ctx context.Context, groupID, userID string) error
	}

	Candidate struct {
		Group         Group
		IsMember      bool
		OwnerTimezone string
	}

	Recommendation struct {
		Group Group   `json:"group"`
		Score float64 `json:"score"`
	}

	Service struct {
		repo     Repository
		tx       core.Transactor
		cache    *core.Cache
		cleaners []MemberCleaner
		strategy string
	}
)

// NewService returns a group Service. cleaners run in order before a membership is deleted.
func NewService(repo Repository, tx core.Transactor, cache *core.Cache, conf *core.Config, cleaners ...MemberCleaner) *Service {
	return &Service{
		repo:     repo,
		tx:       tx,
		cache:    cache,
		cleaners: cleaners,
		strategy: conf.Match.Strategy,
	}
}

// AddCleaners registers cleaners built after the Service, e.g. the ones depending on it.
func (svc *Service) AddCleaners(cleaners ...MemberCleaner) {
	svc.cleaners = append(svc.cleaners, cleaners...)
}

// Create creates the group and the owner's membership atomically.
func (svc *Service) Create(ctx context.Context, ownerID string, ng NewGroup) (Group, error) {
	now := time.Now().UTC()
	grp := Group{
		ID:          uuid.New().String(),
		Name:        ng.Name,
		Description: ng.Description,
		OwnerID:     ownerID,
		MaxMembers:  ng.MaxMembers,
		Tags:        ng.Tags,
		IsPublic:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if grp.MaxMembers == 0 {
		grp.MaxMembers = DefaultMaxMembers
	}
	if grp.Tags == nil {
		grp.Tags = []string{}
	}
	if ng.IsPublic != nil {
		grp.IsPublic = *ng.IsPublic
	}

	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if grp, err = svc.repo.CreateGroup(ctx, grp); err != nil {
			return errors.Wrap(err, "creating group")
		}
		owner := Member{GroupID: grp.ID, UserID: ownerID, Role: RoleOwner, JoinedAt: now}
		if _, err = svc.repo.AddMember(ctx, owner); err != nil {
			return errors.Wrap(err, "adding owner")
		}
		return nil
	})
	if err != nil {
		return Group{}, err
	}
	grp.MemberCount = 1

	svc.cache.Invalidate([]string{ownerID}, core.CacheGroups)
	svc.invalidateRecommendations()
	return grp, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Group, error) {
	return svc.repo.GetGroup(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Group, error) {
	return svc.repo.QueryGroups(ctx, filter)
}

// ListForUser returns the groups userID belongs to.
func (svc *Service) ListForUser(ctx context.Context, userID string) ([]Group, error) {
	if cached, ok := svc.cache.Get(userID, core.CacheGroups); ok {
		if groups, ok := cached.([]Group); ok {
			return groups, nil
		}
	}
	groups, err := svc.repo.QueryGroups(ctx, QueryFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	svc.cache.Set(userID, core.CacheGroups, groups)
	return groups, nil
}

func (svc *Service) UserGroupIDs(ctx context.Context, userID string) ([]string, error) {
	return svc.repo.QueryUserGroupIDs(ctx, userID)
}

func (svc *Service) Update(ctx context.Context, id string, ug UpdateGroup) (Group, error) {
	var grp Group
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if grp, err = svc.repo.GetGroupForUpdate(ctx, id); err != nil {
			return err
		}
		if ug.Name != nil {
			grp.Name = *ug.Name
		}
		if ug.Description != nil {
			grp.Description = *ug.Description
		}
		if ug.Tags != nil {
			grp.Tags = ug.Tags
		}
		if ug.IsPublic != nil {
			grp.IsPublic = *ug.IsPublic
		}
		if ug.MaxMembers != nil {
			if *ug.MaxMembers < grp.MemberCount {
				return ErrMaxMembersTooLow
			}
			grp.MaxMembers = *ug.MaxMembers
		}
		grp.UpdatedAt = time.Now().UTC()
		grp, err = svc.repo.UpdateGroup(ctx, grp)
		return err
	})
	if err != nil {
		return Group{}, err
	}
	svc.cache.InvalidateResource(core.CacheGroups)
	svc.invalidateRecommendations()
	return grp, nil
}

// Delete deletes the group and, through the storage cascade, everything scoped to it.
func (svc *Service) Delete(ctx context.Context, id string) error {
	if err := svc.repo.DeleteGroup(ctx, id); err != nil {
		return err
	}
	svc.cache.InvalidateResource(core.CacheGroups)
	svc.cache.InvalidateResource(core.CacheTodos)
	svc.invalidateRecommendations()
	return nil
}

// Member returns the membership of userID in groupID.
func (svc *Service) Member(ctx context.Context, groupID, userID string) (Member, error) {
	return svc.repo.GetMember(ctx, groupID, userID)
}

// IsMember reports whether userID belongs to groupID.
func (svc *Service) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	if _, err := svc.repo.GetMember(ctx, groupID, userID); err != nil {
		if errors.Cause(err) == ErrMemberNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (svc *Service) ListMembers(ctx context.Context, groupID string) ([]Member, error) {
	return svc.repo.QueryMembers(ctx, groupID)
}

// MemberIDs returns the ids of every member of groupID.
func (svc *Service) MemberIDs(ctx context.Context, groupID string) ([]string, error) {
	members, err := svc.repo.QueryMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}

// Join adds userID to a public group that is not full.
func (svc *Service) Join(ctx context.Context, groupID, userID string) (Member, error) {
	var mbr Member
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		grp, err := svc.repo.GetGroupForUpdate(ctx, groupID)
		if err != nil {
			return err
		}
		if _, err = svc.repo.GetMember(ctx, groupID, userID); err == nil {
			return ErrAlreadyMember
		} else if errors.Cause(err) != ErrMemberNotFound {
			return err
		}
		if !grp.IsPublic {
			return ErrGroupPrivate
		}
		if grp.Full() {
			return ErrGroupFull
		}
		mbr, err = svc.repo.AddMember(ctx, Member{
			GroupID:  groupID,
			UserID:   userID,
			Role:     RoleMember,
			JoinedAt: time.Now().UTC(),
		})
		return err
	})
	if err != nil {
		return Member{}, err
	}
	svc.cache.Invalidate([]string{userID}, core.CacheGroups, core.CacheTodos)
	svc.invalidateRecommendations()
	return mbr, nil
}

// Leave removes userID from the group. The owner cannot leave.
func (svc *Service) Leave(ctx context.Context, groupID, userID string) error {
	mbr, err := svc.repo.GetMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if mbr.Role == RoleOwner {
		return ErrOwnerCannotLeave
	}
	return svc.removeMember(ctx, mbr)
}

// RemoveMember removes memberID from the group. The owner cannot be removed.
func (svc *Service) RemoveMember(ctx context.Context, groupID, memberID string) error {
	mbr, err := svc.repo.GetMember(ctx, groupID, memberID)
	if err != nil {
		return err
	}
	if mbr.Role == RoleOwner {
		return ErrCannotRemoveOwner
	}
	return svc.removeMember(ctx, mbr)
}

// removeMember deletes the member's content in the group, then the membership, in one transaction.
func (svc *Service) removeMember(ctx context.Context, mbr Member) error {
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		for _, cleaner := range svc.cleaners {
			if err := cleaner.PurgeMember(ctx, mbr.GroupID, mbr.UserID); err != nil {
				return errors.Wrap(err, "purging member content")
			}
		}
		return errors.Wrap(svc.repo.DeleteMember(ctx, mbr.GroupID, mbr.UserID), "deleting member")
	})
	if err != nil {
		return err
	}
	svc.cache.Invalidate([]string{mbr.UserID}, core.CacheGroups, core.CacheTodos)
	svc.invalidateRecommendations()
	return nil
}

// SetRole changes the role of a member. Ownership cannot be transferred.
func (svc *Service) SetRole(ctx context.Context, groupID, userID, role string) (Member, error) {
	if role != RoleAdmin && role != RoleMember {
		return Member{}, core.NewValidationError(nil, core.FieldError{Field: "role", Error: "role must be one of [admin member]"})
	}
	mbr, err := svc.repo.GetMember(ctx, groupID, userID)
	if err != nil {
		return Member{}, err
	}
	if mbr.Role == RoleOwner {
		return Member{}, ErrCannotChangeOwner
	}
	mbr.Role = role
	return svc.repo.UpdateMember(ctx, mbr)
}

// Recommend ranks the public groups userID is not part of against their profile.
// An empty strategy uses the configured one.
func (svc *Service) Recommend(ctx context.Context, userID string, profile match.Profile, strategy string) ([]Recommendation, error) {
	if strategy == "" {
		strategy = svc.strategy
	}
	strategy = strings.ToLower(strategy)
	if !match.ValidStrategy(strategy) {
		strategy = match.StrategyRecommended
	}
	scorer := match.NewScorer(strategy)
	cacheRes := recommendationsResource(strategy)

	fingerprint := profileFingerprint(profile)
	if cached, ok := svc.cache.Get(userID, cacheRes); ok {
		if entry, ok := cached.(cachedRecommendations); ok && entry.profile == fingerprint {
			return entry.recs, nil
		}
	}

	rows, err := svc.repo.QueryCandidates(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying candidates")
	}
	groups := make(map[string]Group, len(rows))
	candidates := make([]match.Candidate, 0, len(rows))
	for _, row := range rows {
		groups[row.Group.ID] = row.Group
		candidates = append(candidates, match.Candidate{
			GroupID:       row.Group.ID,
			Name:          row.Group.Name,
			Tags:          row.Group.Tags,
			MemberCount:   row.Group.MemberCount,
			MaxMembers:    row.Group.MaxMembers,
			IsPublic:      row.Group.IsPublic,
			IsMember:      row.IsMember,
			OwnerTimezone: row.OwnerTimezone,
		})
	}

	results := scorer.Rank(profile, candidates)
	recs := make([]Recommendation, 0, len(results))
	for _, res := range results {
		recs = append(recs, Recommendation{Group: groups[res.Candidate.GroupID], Score: res.Score})
	}
	svc.cache.Set(userID, cacheRes, cachedRecommendations{profile: fingerprint, recs: recs})
	return recs, nil
}

// cachedRecommendations are only valid for the profile they were scored against.
type cachedRecommendations struct {
	profile string
	recs    []Recommendation
}

func profileFingerprint(p match.Profile) string {
	subjects := make([]string, len(p.Subjects))
	for i, s := range p.Subjects {
		subjects[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return strings.Join([]string{
		strings.Join(subjects, "\x1f"),
		strings.ToLower(p.EducationLevel),
		strings.ToLower(p.StudyStyle),
		p.Timezone,
	}, "\x1e")
}

func recommendationsResource(strategy string) string {
	return core.CacheRecommendations + "." + strategy
}

func (svc *Service) invalidateRecommendations() {
	svc.cache.InvalidateResource(recommendationsResource(match.StrategyRecommended))
	svc.cache.InvalidateResource(recommendationsResource(match.StrategyQuick))
}
