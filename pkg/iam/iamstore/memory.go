package iamstore

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/organization"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
)

type memoryState struct {
	users       map[kernel.UserID]user.User
	tokens      map[kernel.RefreshTokenID]auth.RefreshToken
	orgs        map[kernel.OrganizationID]organization.Organization
	memberships map[kernel.MembershipID]organization.Membership
}

// undoLog holds, newest last, the steps that put back every record a
// transaction wrote. Rolling back touches only those records, so writes
// made through Repos() while the transaction ran survive.
type undoLog struct {
	steps []func()
}

// remember records how to restore m[key] as it is now. Callers hold the
// store mutex. A nil log belongs to the non-transactional repositories.
func remember[K comparable, V any](log *undoLog, m map[K]V, key K) {
	if log == nil {
		return
	}
	prev, existed := m[key]
	log.steps = append(log.steps, func() {
		if existed {
			m[key] = prev
		} else {
			delete(m, key)
		}
	})
}

// MemoryStore keeps the IAM records in process memory. Transactions run one
// at a time and are undone record by record when they fail.
type MemoryStore struct {
	txMu  sync.Mutex
	mu    sync.Mutex
	state *memoryState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memoryState{
		users:       map[kernel.UserID]user.User{},
		tokens:      map[kernel.RefreshTokenID]auth.RefreshToken{},
		orgs:        map[kernel.OrganizationID]organization.Organization{},
		memberships: map[kernel.MembershipID]organization.Membership{},
	}}
}

func (m *MemoryStore) Repos() Repositories {
	return m.repos(nil)
}

func (m *MemoryStore) repos(log *undoLog) Repositories {
	return Repositories{
		Users:         &memUsers{m, log},
		RefreshTokens: &memTokens{m, log},
		Organizations: &memOrgs{m, log},
		Memberships:   &memMemberships{m, log},
	}
}

func (m *MemoryStore) Transact(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) (err error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	log := &undoLog{}
	defer func() {
		if p := recover(); p != nil {
			m.rollback(log)
			panic(p)
		}
		if err != nil {
			m.rollback(log)
		}
	}()

	return fn(ctx, m.repos(log))
}

func (m *MemoryStore) rollback(log *undoLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(log.steps) - 1; i >= 0; i-- {
		log.steps[i]()
	}
}

func (m *MemoryStore) with(fn func(s *memoryState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.state)
}

// ============================================================================
// Users
// ============================================================================

type memUsers struct {
	m   *MemoryStore
	log *undoLog
}

func (r *memUsers) FindByID(_ context.Context, id kernel.UserID) (*user.User, error) {
	var (
		u  user.User
		ok bool
	)
	r.m.with(func(s *memoryState) { u, ok = s.users[id] })
	if !ok {
		return nil, user.ErrUserNotFound()
	}
	return &u, nil
}

func (r *memUsers) FindByEmail(_ context.Context, email string) (*user.User, error) {
	email = user.NormalizeEmail(email)
	var found *user.User
	r.m.with(func(s *memoryState) {
		for _, u := range s.users {
			if u.Email == email {
				found = &u
				return
			}
		}
	})
	if found == nil {
		return nil, user.ErrUserNotFound()
	}
	return found, nil
}

func (r *memUsers) Create(_ context.Context, u *user.User) error {
	var err error
	r.m.with(func(s *memoryState) {
		for _, existing := range s.users {
			if strings.EqualFold(existing.Email, u.Email) {
				err = user.ErrEmailTaken()
				return
			}
		}
		remember(r.log, s.users, u.ID)
		s.users[u.ID] = *u
	})
	return err
}

func (r *memUsers) Save(_ context.Context, u *user.User) error {
	var err error
	r.m.with(func(s *memoryState) {
		if _, ok := s.users[u.ID]; !ok {
			err = user.ErrUserNotFound()
			return
		}
		remember(r.log, s.users, u.ID)
		s.users[u.ID] = *u
	})
	return err
}

// ============================================================================
// Refresh tokens
// ============================================================================

type memTokens struct {
	m   *MemoryStore
	log *undoLog
}

func (r *memTokens) Create(_ context.Context, t *auth.RefreshToken) error {
	r.m.with(func(s *memoryState) {
		remember(r.log, s.tokens, t.ID)
		s.tokens[t.ID] = *t
	})
	return nil
}

func (r *memTokens) FindByHash(_ context.Context, hash string) (*auth.RefreshToken, error) {
	var found *auth.RefreshToken
	r.m.with(func(s *memoryState) {
		for _, t := range s.tokens {
			if t.TokenHash == hash {
				found = &t
				return
			}
		}
	})
	if found == nil {
		return nil, auth.ErrInvalidToken()
	}
	return found, nil
}

// FindByHashForUpdate needs no row lock here: Transact already runs one
// transaction at a time.
func (r *memTokens) FindByHashForUpdate(ctx context.Context, hash string) (*auth.RefreshToken, error) {
	return r.FindByHash(ctx, hash)
}

func (r *memTokens) MarkRevoked(_ context.Context, id kernel.RefreshTokenID, rev auth.Revocation) (bool, error) {
	var revoked bool
	r.m.with(func(s *memoryState) {
		t, ok := s.tokens[id]
		if !ok || t.IsRevoked() {
			return
		}
		remember(r.log, s.tokens, id)
		s.tokens[id] = applyRevocation(t, rev)
		revoked = true
	})
	return revoked, nil
}

func (r *memTokens) RevokeAllActiveForUser(_ context.Context, userID kernel.UserID, rev auth.Revocation) (int64, error) {
	var n int64
	r.m.with(func(s *memoryState) {
		for id, t := range s.tokens {
			if t.UserID != userID || t.IsRevoked() {
				continue
			}
			remember(r.log, s.tokens, id)
			s.tokens[id] = applyRevocation(t, rev)
			n++
		}
	})
	return n, nil
}

func applyRevocation(t auth.RefreshToken, rev auth.Revocation) auth.RefreshToken {
	at, ip, reason := rev.At, rev.ByIP, rev.Reason
	t.RevokedAt = &at
	t.RevokedByIP = &ip
	t.Reason = &reason
	t.ReplacedByToken = rev.ReplacedBy
	return t
}

// ============================================================================
// Organizations
// ============================================================================

type memOrgs struct {
	m   *MemoryStore
	log *undoLog
}

func (r *memOrgs) Create(_ context.Context, org *organization.Organization) error {
	var err error
	r.m.with(func(s *memoryState) {
		for _, o := range s.orgs {
			if o.Slug == org.Slug {
				err = organization.ErrRegistry.New(organization.CodeSlugTaken)
				return
			}
		}
		remember(r.log, s.orgs, org.ID)
		s.orgs[org.ID] = *org
	})
	return err
}

func (r *memOrgs) FindByID(_ context.Context, id kernel.OrganizationID) (*organization.Organization, error) {
	var (
		o  organization.Organization
		ok bool
	)
	r.m.with(func(s *memoryState) { o, ok = s.orgs[id] })
	if !ok {
		return nil, organization.ErrNotFound()
	}
	return &o, nil
}

func (r *memOrgs) SlugExists(_ context.Context, slug string) (bool, error) {
	var exists bool
	r.m.with(func(s *memoryState) {
		for _, o := range s.orgs {
			if o.Slug == slug {
				exists = true
				return
			}
		}
	})
	return exists, nil
}

// ============================================================================
// Memberships
// ============================================================================

type memMemberships struct {
	m   *MemoryStore
	log *undoLog
}

func (r *memMemberships) Create(_ context.Context, m *organization.Membership) error {
	var err error
	r.m.with(func(s *memoryState) {
		for _, existing := range s.memberships {
			if existing.OrganizationID == m.OrganizationID && existing.UserID == m.UserID {
				err = organization.ErrRegistry.New(organization.CodeMembershipTaken)
				return
			}
		}
		remember(r.log, s.memberships, m.ID)
		s.memberships[m.ID] = *m
	})
	return err
}

func (r *memMemberships) FindByUser(_ context.Context, userID kernel.UserID) ([]*organization.Membership, error) {
	var out []*organization.Membership
	r.m.with(func(s *memoryState) {
		for _, m := range s.memberships {
			if m.UserID == userID {
				out = append(out, &m)
			}
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memMemberships) FindByOrganizationAndUser(_ context.Context, orgID kernel.OrganizationID, userID kernel.UserID) (*organization.Membership, error) {
	var found *organization.Membership
	r.m.with(func(s *memoryState) {
		for _, m := range s.memberships {
			if m.OrganizationID == orgID && m.UserID == userID {
				found = &m
				return
			}
		}
	})
	if found == nil {
		return nil, organization.ErrRegistry.New(organization.CodeNotAMember)
	}
	return found, nil
}

func (r *memMemberships) ListMembers(_ context.Context, orgID kernel.OrganizationID, page kernel.PaginationOptions) (kernel.Paginated[organization.Member], error) {
	var members []organization.Member
	r.m.with(func(s *memoryState) {
		for _, m := range s.memberships {
			if m.OrganizationID != orgID {
				continue
			}
			u := s.users[m.UserID]
			members = append(members, organization.Member{
				MembershipID: m.ID,
				UserID:       m.UserID,
				FirstName:    u.FirstName,
				LastName:     u.LastName,
				Email:        u.Email,
				Role:         m.Role,
				Status:       m.Status,
				JoinedAt:     m.CreatedAt,
			})
		}
	})
	slices.SortStableFunc(members, func(a, b organization.Member) int { return a.JoinedAt.Compare(b.JoinedAt) })

	total := len(members)
	start := min(max(page.Offset(), 0), total)
	end := min(start+max(page.PageSize, 0), total)
	return kernel.NewPaginated(members[start:end], page, total), nil
}
