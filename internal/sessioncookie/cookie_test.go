package sessioncookie

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "cookie-test-secret-32-bytes-xxxxx"

// issueCookie runs Issue through a throwaway gin context and returns the
// Set-Cookie value.
func issueCookie(t *testing.T, s *Signer, sid string) *http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/", nil)
	require.NoError(t, s.Issue(c, sid))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func readCookie(t *testing.T, s *Signer, ck *http.Cookie) (string, error) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/sign-up", nil)
	if ck != nil {
		c.Request.AddCookie(ck)
	}
	return s.Read(c)
}

func TestIssueAndRead(t *testing.T) {
	s := NewSigner(testSecret, time.Hour)
	ck := issueCookie(t, s, "sid-123")

	assert.Equal(t, CookieName, ck.Name)
	assert.Equal(t, 3600, ck.MaxAge)
	assert.True(t, ck.HttpOnly)
	assert.NotContains(t, ck.Value, "sid-123", "session id must not appear in clear")

	sid, err := readCookie(t, s, ck)
	require.NoError(t, err)
	assert.Equal(t, "sid-123", sid)
}

func TestRead_NoCookie(t *testing.T) {
	s := NewSigner(testSecret, time.Hour)
	_, err := readCookie(t, s, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoCookie))
}

func TestRead_TamperedCookie(t *testing.T) {
	s := NewSigner(testSecret, time.Hour)
	ck := issueCookie(t, s, "sid-123")
	ck.Value += "x"

	_, err := readCookie(t, s, ck)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestRead_WrongSecret(t *testing.T) {
	other := NewSigner("another-secret-entirely-32-bytes", time.Hour)
	ck := issueCookie(t, other, "sid-123")

	s := NewSigner(testSecret, time.Hour)
	_, err := readCookie(t, s, ck)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestRead_ExpiredCookie(t *testing.T) {
	// craft a token whose exp is in the past but which the browser still sends
	claims := jwt.MapClaims{
		"sid": "sid-123",
		"iat": time.Now().Add(-2 * time.Hour).Unix(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	s := NewSigner(testSecret, time.Hour)
	_, err = readCookie(t, s, &http.Cookie{Name: CookieName, Value: signed})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestClear(t *testing.T) {
	s := NewSigner(testSecret, time.Hour)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/logout", nil)
	s.Clear(c)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)
}
