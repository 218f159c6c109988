package users

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isabella232/xero-sso-form/internal/idp"
)

// memRepo mimics the Mongo repository: one row per email, atomic
// update-or-insert, moreInfo untouched by Upsert.
type memRepo struct {
	mu      sync.Mutex
	byEmail map[string]*User
	failAll bool
}

func newMemRepo() *memRepo {
	return &memRepo{byEmail: map[string]*User{}}
}

var errRepoDown = errors.New("datastore unavailable")

func (m *memRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errRepoDown
	}
	if u, ok := m.byEmail[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memRepo) FindBySession(ctx context.Context, session string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errRepoDown
	}
	for _, u := range m.byEmail {
		if u.Session == session {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memRepo) Upsert(ctx context.Context, u *User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errRepoDown
	}
	now := time.Now().UTC()
	if existing, ok := m.byEmail[u.Email]; ok {
		existing.FirstName = u.FirstName
		existing.LastName = u.LastName
		existing.XeroUserID = u.XeroUserID
		existing.DecodedIDToken = u.DecodedIDToken
		existing.TokenSet = u.TokenSet
		existing.ActiveTenant = u.ActiveTenant
		existing.Session = u.Session
		existing.UpdatedAt = now
		cp := *existing
		return &cp, nil
	}
	stored := *u
	stored.CreatedAt = now
	stored.UpdatedAt = now
	stored.MoreInfo = ""
	m.byEmail[u.Email] = &stored
	cp := stored
	return &cp, nil
}

func (m *memRepo) UpdateMoreInfo(ctx context.Context, email, moreInfo string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errRepoDown
	}
	u, ok := m.byEmail[email]
	if !ok {
		return nil, nil
	}
	u.MoreInfo = moreInfo
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	return &cp, nil
}

func tokenSet(claims map[string]interface{}) *idp.TokenSet {
	return &idp.TokenSet{
		AccessToken: "at",
		IDToken:     "hdr.payload.sig",
		RawClaims:   claims,
	}
}

func TestCompleteSignIn_CreatesUser(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()

	u, err := svc.CompleteSignIn(ctx, tokenSet(map[string]interface{}{
		"sub":         "sub-1",
		"xero_userid": "xid-1",
		"email":       "alice@example.com",
		"given_name":  "Alice",
		"family_name": "Smith",
	}), nil)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, "Alice", u.FirstName)
	assert.Equal(t, "Smith", u.LastName)
	assert.Equal(t, "xid-1", u.XeroUserID)
	assert.NotEmpty(t, u.Session)
	assert.Empty(t, u.MoreInfo)
	assert.Len(t, repo.byEmail, 1)
}

func TestCompleteSignIn_SecondLoginUpdatesSameRow(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()

	first, err := svc.CompleteSignIn(ctx, tokenSet(map[string]interface{}{
		"email": "alice@example.com", "given_name": "Alice", "family_name": "Smith",
	}), nil)
	require.NoError(t, err)

	second, err := svc.CompleteSignIn(ctx, tokenSet(map[string]interface{}{
		"email": "alice@example.com", "given_name": "Alicia", "family_name": "Smith",
	}), nil)
	require.NoError(t, err)

	assert.Len(t, repo.byEmail, 1, "same email must not create a second row")
	assert.Equal(t, "Alicia", second.FirstName)
	assert.NotEqual(t, first.Session, second.Session, "session must rotate on every login")

	// the old session no longer resolves
	stale, err := svc.GetBySession(ctx, first.Session)
	require.NoError(t, err)
	assert.Nil(t, stale)
}

func TestCompleteSignIn_NoEmail(t *testing.T) {
	svc := NewService(newMemRepo())
	_, err := svc.CompleteSignIn(context.Background(), tokenSet(map[string]interface{}{
		"sub": "sub-1",
	}), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoEmail))
}

func TestCompleteSignIn_RepoFailure(t *testing.T) {
	repo := newMemRepo()
	repo.failAll = true
	svc := NewService(repo)

	_, err := svc.CompleteSignIn(context.Background(), tokenSet(map[string]interface{}{
		"email": "alice@example.com",
	}), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errRepoDown))
}

func TestSaveMoreInfo(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.CompleteSignIn(ctx, tokenSet(map[string]interface{}{
		"email": "alice@example.com", "given_name": "Alice",
	}), nil)
	require.NoError(t, err)

	u, err := svc.SaveMoreInfo(ctx, "alice@example.com", "Interested in Module X")
	require.NoError(t, err)
	assert.Equal(t, "Interested in Module X", u.MoreInfo)

	// idempotent: same submission leaves the latest value, still one row
	u, err = svc.SaveMoreInfo(ctx, "alice@example.com", "Interested in Module X")
	require.NoError(t, err)
	assert.Equal(t, "Interested in Module X", u.MoreInfo)
	assert.Len(t, repo.byEmail, 1)
}

func TestSaveMoreInfo_MissingUser(t *testing.T) {
	svc := NewService(newMemRepo())
	_, err := svc.SaveMoreInfo(context.Background(), "ghost@example.com", "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}
