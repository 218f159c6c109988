package idp

import "time"

// TokenSet is the credential bundle returned by a successful exchange. The
// token strings are stored verbatim on the user record; the decoded ID-token
// payload travels alongside but is persisted separately.
type TokenSet struct {
	AccessToken  string    `bson:"accessToken" json:"accessToken"`
	RefreshToken string    `bson:"refreshToken,omitempty" json:"refreshToken,omitempty"`
	IDToken      string    `bson:"idToken" json:"idToken"`
	Expiry       time.Time `bson:"expiry,omitempty" json:"expiry,omitempty"`

	// RawClaims is the decoded, verified id_token payload. Set by Exchange;
	// persisted separately from the token set itself.
	RawClaims map[string]interface{} `bson:"-" json:"-"`
}

// IdentityClaims are the fields this service cares about from a validated ID
// token.
type IdentityClaims struct {
	Subject    string
	XeroUserID string
	Email      string
	GivenName  string
	FamilyName string
	Raw        map[string]interface{}
}

// IdentityClaims decodes the identity fields from the token set. The payload
// was verified during Exchange, so this is a pure transform and cannot fail;
// absent claims simply come back empty.
func (t *TokenSet) IdentityClaims() IdentityClaims {
	str := func(key string) string {
		v, _ := t.RawClaims[key].(string)
		return v
	}
	ic := IdentityClaims{
		Subject:    str("sub"),
		XeroUserID: str("xero_userid"),
		Email:      str("email"),
		GivenName:  str("given_name"),
		FamilyName: str("family_name"),
		Raw:        t.RawClaims,
	}
	if ic.XeroUserID == "" {
		ic.XeroUserID = ic.Subject
	}
	return ic
}
