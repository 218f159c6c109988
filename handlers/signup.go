package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/isabella232/xero-sso-form/internal/config"
	"github.com/isabella232/xero-sso-form/internal/idp"
	"github.com/isabella232/xero-sso-form/internal/sessioncookie"
	"github.com/isabella232/xero-sso-form/internal/users"
	"github.com/isabella232/xero-sso-form/pkg/logger"
	"github.com/isabella232/xero-sso-form/pkg/metrics"
	"github.com/isabella232/xero-sso-form/pkg/middleware"
)

// IdentityClient is the minimal provider interface the handshake depends on.
// Satisfied by *idp.Client and by test fakes.
type IdentityClient interface {
	AuthCodeURL(ctx context.Context) (string, error)
	Exchange(ctx context.Context, callbackURL string) (*idp.TokenSet, error)
	Connections(ctx context.Context, ts *idp.TokenSet) ([]idp.Tenant, error)
}

// SignUpHandler orchestrates the handshake: authorization redirect, callback
// exchange, user upsert, cookie issuance, and the gated supplementary form.
type SignUpHandler struct {
	cfg     *config.Config
	idp     IdentityClient
	users   *users.Service
	cookies *sessioncookie.Signer
}

func NewSignUpHandler(cfg *config.Config, client IdentityClient, usersSvc *users.Service, cookies *sessioncookie.Signer) *SignUpHandler {
	return &SignUpHandler{cfg: cfg, idp: client, users: usersSvc, cookies: cookies}
}

// Register wires the sign-up routes onto the engine.
func (h *SignUpHandler) Register(r *gin.Engine) {
	r.GET("/", h.Landing)
	r.GET("/xero/sign-up", h.Start)
	r.GET("/callback", h.Callback)
	r.GET("/logout", h.Logout)

	gate := middleware.RequireSession(h.cookies, h.users)
	r.GET("/sign-up", gate, h.ShowForm)
	r.POST("/sign-up", gate, h.SubmitForm)
}

// Landing renders the landing page with a fresh authorization URL.
func (h *SignUpHandler) Landing(c *gin.Context) {
	authURL, err := h.idp.AuthCodeURL(c.Request.Context())
	if err != nil {
		logger.Errorf("build authorization url: %v", err)
		renderError(c, http.StatusInternalServerError, "Could not start the sign-in flow. Please try again.")
		return
	}
	c.HTML(http.StatusOK, "index.html", gin.H{"AuthURL": authURL})
}

// Start redirects the browser straight into the authorization flow.
func (h *SignUpHandler) Start(c *gin.Context) {
	authURL, err := h.idp.AuthCodeURL(c.Request.Context())
	if err != nil {
		logger.Errorf("build authorization url: %v", err)
		renderError(c, http.StatusInternalServerError, "Could not start the sign-in flow. Please try again.")
		return
	}
	metrics.LoginsStarted.Inc()
	c.Redirect(http.StatusFound, authURL)
}

// Callback handles the provider redirect: exchanges the code, upserts the
// user with a rotated session identifier and issues the signed cookie. Any
// failure ends on the error page; the user restarts from the landing page.
func (h *SignUpHandler) Callback(c *gin.Context) {
	ctx := c.Request.Context()

	ts, err := h.idp.Exchange(ctx, c.Request.URL.String())
	if err != nil {
		logger.Errorf("callback exchange failed: %v", err)
		metrics.CallbacksFailed.WithLabelValues("exchange").Inc()
		renderError(c, http.StatusUnauthorized, "Signing in with Xero failed. Please start again.")
		return
	}

	// best-effort tenant capture; identity-only scopes usually yield none
	var tenant *idp.Tenant
	if tenants, err := h.idp.Connections(ctx, ts); err != nil {
		logger.Warnf("could not list connections: %v", err)
	} else if len(tenants) > 0 {
		tenant = &tenants[0]
	}

	u, err := h.users.CompleteSignIn(ctx, ts, tenant)
	if err != nil {
		logger.Errorf("complete sign-in failed: %v", err)
		metrics.CallbacksFailed.WithLabelValues("upsert").Inc()
		if errors.Is(err, users.ErrNoEmail) {
			renderError(c, http.StatusUnauthorized, "Your Xero profile did not include an email address.")
			return
		}
		// no cookie when the upsert failed: the generated session was never stored
		renderError(c, http.StatusInternalServerError, "We could not save your sign-up. Please try again.")
		return
	}

	if err := h.cookies.Issue(c, u.Session); err != nil {
		logger.Errorf("issue session cookie: %v", err)
		metrics.CallbacksFailed.WithLabelValues("cookie").Inc()
		renderError(c, http.StatusInternalServerError, "We could not establish your session. Please try again.")
		return
	}

	metrics.CallbacksSucceeded.Inc()
	c.Redirect(http.StatusFound, "/sign-up")
}

// ShowForm renders the supplementary form pre-populated from the user row.
func (h *SignUpHandler) ShowForm(c *gin.Context) {
	u := middleware.SessionUser(c)
	c.HTML(http.StatusOK, "signup.html", gin.H{"User": u})
}

// SubmitForm persists the moreInfo field and renders the confirmation.
func (h *SignUpHandler) SubmitForm(c *gin.Context) {
	u := middleware.SessionUser(c)

	updated, err := h.users.SaveMoreInfo(c.Request.Context(), u.Email, c.PostForm("moreInfo"))
	if err != nil {
		logger.Errorf("save moreInfo for %s: %v", u.Email, err)
		renderError(c, http.StatusInternalServerError, "We could not save your details. Please try again.")
		return
	}

	metrics.SignUpsCompleted.Inc()
	c.HTML(http.StatusOK, "done.html", gin.H{"User": updated})
}

// Logout clears the browser cookie. The stored session value is untouched;
// only the browser's copy of the credential is revoked.
func (h *SignUpHandler) Logout(c *gin.Context) {
	h.cookies.Clear(c)
	c.Redirect(http.StatusFound, "/")
}

func renderError(c *gin.Context, status int, msg string) {
	c.HTML(status, "error.html", gin.H{"Status": status, "Error": msg})
}
