package sessioncookie

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the browser cookie carrying the signed session identifier.
const CookieName = "recentSession"

// ErrNoCookie means the request carried no session cookie at all. This is the
// normal anonymous case, not a fault.
var ErrNoCookie = errors.New("no session cookie")

// ErrInvalid means a cookie was present but its signature or expiry did not
// check out (tampered or expired).
var ErrInvalid = errors.New("invalid session cookie")

// Signer issues and validates the recentSession cookie. The cookie value is a
// signed claim set wrapping the opaque session identifier; the identifier
// itself stays meaningless to the browser.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl}
}

// Issue signs the session identifier and sets the cookie with the configured
// max-age.
func (s *Signer) Issue(c *gin.Context, sessionID string) error {
	now := time.Now()
	claims := jwt.MapClaims{
		"sid": sessionID,
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return fmt.Errorf("sign session cookie: %w", err)
	}
	c.SetCookie(CookieName, signed, int(s.ttl.Seconds()), "/", "", false, true)
	return nil
}

// Read extracts and validates the session identifier from the request cookie.
// Returns ErrNoCookie when absent and ErrInvalid when present but unusable.
func (s *Signer) Read(c *gin.Context) (string, error) {
	raw, err := c.Cookie(CookieName)
	if err != nil {
		// gin only surfaces http.ErrNoCookie here
		return "", ErrNoCookie
	}

	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalid
	}
	sid, _ := claims["sid"].(string)
	if sid == "" {
		return "", ErrInvalid
	}
	return sid, nil
}

// Clear expires the cookie in the browser. The server-side session value is
// left intact; logout only revokes the browser's copy of the credential.
func (s *Signer) Clear(c *gin.Context) {
	c.SetCookie(CookieName, "", -1, "/", "", false, true)
}
