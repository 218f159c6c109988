package users

import (
	"time"

	"github.com/isabella232/xero-sso-form/internal/idp"
)

// User is the persisted sign-up record, keyed by email. Identity fields are
// refreshed on every successful callback; MoreInfo is only ever written
// through the authenticated sign-up form.
type User struct {
	ID             string                 `bson:"_id,omitempty" json:"id"`
	Email          string                 `bson:"email" json:"email"`
	FirstName      string                 `bson:"firstName" json:"firstName"`
	LastName       string                 `bson:"lastName" json:"lastName"`
	XeroUserID     string                 `bson:"xeroUserId" json:"xeroUserId"`
	DecodedIDToken map[string]interface{} `bson:"decodedIdToken,omitempty" json:"decodedIdToken,omitempty"`
	TokenSet       idp.TokenSet           `bson:"tokenSet" json:"tokenSet"`
	ActiveTenant   *idp.Tenant            `bson:"activeTenant,omitempty" json:"activeTenant,omitempty"`

	// Session is the opaque identifier the signed cookie must match.
	// Regenerated on every successful callback, which implicitly revokes
	// cookies issued for the previous value.
	Session string `bson:"session" json:"session"`

	MoreInfo  string    `bson:"moreInfo" json:"moreInfo"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
