package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/isabella232/xero-sso-form/internal/idp"
)

// ErrNoEmail is returned when a validated token set carries no email claim;
// the record is keyed by email, so there is nothing to upsert against.
var ErrNoEmail = errors.New("identity claims contain no email")

// ErrNotFound is returned when a write targets a user that does not exist.
var ErrNotFound = errors.New("user not found")

// Service encapsulates user-related business logic
type Service struct {
	repo Repository
}

func NewService(r Repository) *Service {
	return &Service{repo: r}
}

// CompleteSignIn creates or refreshes the user row for the identity in the
// token set and rotates the session identifier. The returned user carries the
// fresh Session value the caller should bind into the cookie; on error no
// session exists and no cookie must be issued.
func (s *Service) CompleteSignIn(ctx context.Context, ts *idp.TokenSet, tenant *idp.Tenant) (*User, error) {
	ic := ts.IdentityClaims()
	if ic.Email == "" {
		return nil, ErrNoEmail
	}
	u := &User{
		Email:          ic.Email,
		FirstName:      ic.GivenName,
		LastName:       ic.FamilyName,
		XeroUserID:     ic.XeroUserID,
		DecodedIDToken: ic.Raw,
		TokenSet:       *ts,
		ActiveTenant:   tenant,
		Session:        uuid.NewString(),
	}
	updated, err := s.repo.Upsert(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("upsert user %s: %w", ic.Email, err)
	}
	return updated, nil
}

// GetBySession resolves the user holding the opaque session identifier.
// Returns (nil, nil) when no user matches.
func (s *Service) GetBySession(ctx context.Context, session string) (*User, error) {
	return s.repo.FindBySession(ctx, session)
}

// GetByEmail resolves a user by its unique email.
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.FindByEmail(ctx, email)
}

// SaveMoreInfo persists the supplementary form field. A missing user is an
// error here, not an anonymous redirect: the caller already held a resolved
// session.
func (s *Service) SaveMoreInfo(ctx context.Context, email, moreInfo string) (*User, error) {
	updated, err := s.repo.UpdateMoreInfo(ctx, email, moreInfo)
	if err != nil {
		return nil, fmt.Errorf("update moreInfo for %s: %w", email, err)
	}
	if updated == nil {
		return nil, ErrNotFound
	}
	return updated, nil
}
