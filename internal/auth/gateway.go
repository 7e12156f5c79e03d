package auth

import (
	"context"
	"net/url"
	"strings"
	"time"

	"myblog/internal/middleware"
	"myblog/internal/models"
	"myblog/internal/observability"
	"myblog/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/uuid"
)

const (
	// LoginPath is where anonymous browser requests are sent.
	LoginPath = "/user/login"
	// LocalUser holds the resolved *models.User for the rest of the request.
	LocalUser = "user"

	localClaims     = "tokenClaims"
	sessionUserKey  = "uid"
	sessionFlashKey = "flashes"
	sessionCookie   = "myblog_session"
)

// UserLookup is the slice of the user repository the gateway needs.
type UserLookup interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// GatewayConfig wires the gateway. A nil Storage keeps sessions in process
// memory; a nil Tokens disables bearer authentication.
type GatewayConfig struct {
	Storage      fiber.Storage
	Expiration   time.Duration
	CookieSecure bool
	Users        UserLookup
	Credentials  *Credentials
	Tokens       *Tokens
}

// Gateway binds users to client sessions and resolves the current principal.
//
// A client is anonymous until Login succeeds, which rotates the session id and
// stores the user id in it. Logout destroys the session. Expiry is the session
// store's TTL.
type Gateway struct {
	store  *session.Store
	users  UserLookup
	creds  *Credentials
	tokens *Tokens
}

func NewGateway(cfg GatewayConfig) *Gateway {
	creds := cfg.Credentials
	if creds == nil {
		creds = NewCredentials(nil)
	}
	return &Gateway{
		store: session.New(session.Config{
			Expiration:     cfg.Expiration,
			Storage:        cfg.Storage,
			KeyLookup:      "cookie:" + sessionCookie,
			CookieHTTPOnly: true,
			CookieSecure:   cfg.CookieSecure,
			CookieSameSite: fiber.CookieSameSiteLaxMode,
			KeyGenerator:   uuid.NewString,
		}),
		users:  cfg.Users,
		creds:  creds,
		tokens: cfg.Tokens,
	}
}

// Authenticate checks a username and password without touching any session.
// Every failure is the same AuthenticationFailure.
func (g *Gateway) Authenticate(ctx context.Context, username, password, channel string) (*models.User, error) {
	form := validation.LoginForm{Username: username, Password: password}
	if !form.Validate().Valid() {
		g.creds.VerifyCredential(nil, password)
		return nil, g.fail(ctx, channel, "malformed")
	}

	user, err := g.users.GetByUsername(ctx, form.Username)
	if err != nil {
		return nil, err
	}
	if !g.creds.VerifyCredential(user, password) {
		return nil, g.fail(ctx, channel, "bad_credentials")
	}

	observability.LoginAttempts.WithLabelValues("success", channel).Inc()
	return user, nil
}

func (g *Gateway) fail(ctx context.Context, channel, reason string) error {
	observability.LoginAttempts.WithLabelValues("failure", channel).Inc()
	middleware.Logger.WarnContext(ctx, "login rejected", "channel", channel, "reason", reason)
	return models.NewAuthenticationFailure()
}

// Login authenticates and binds the user to a fresh session id. Flashes are
// stored in the same write so they survive the redirect that follows.
// On failure the session is left untouched.
func (g *Gateway) Login(c *fiber.Ctx, username, password string, flashes ...string) (*models.User, error) {
	user, err := g.Authenticate(c.UserContext(), username, password, "session")
	if err != nil {
		return nil, err
	}

	sess, err := g.store.Get(c)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := sess.Regenerate(); err != nil {
		return nil, models.NewInternalError(err)
	}
	sess.Set(sessionUserKey, user.ID)
	if len(flashes) > 0 {
		sess.Set(sessionFlashKey, flashes)
	}
	if err := sess.Save(); err != nil {
		return nil, models.NewInternalError(err)
	}

	g.bind(c, user)
	middleware.Logger.InfoContext(c.UserContext(), "user logged in", "username", user.Username)
	return user, nil
}

// Logout ends the session. With flashes, the old session is discarded and a
// new anonymous one carries the messages.
func (g *Gateway) Logout(c *fiber.Ctx, flashes ...string) error {
	c.Locals(LocalUser, nil)

	sess, err := g.store.Get(c)
	if err != nil {
		return models.NewInternalError(err)
	}
	if len(flashes) == 0 {
		return sess.Destroy()
	}
	if err := sess.Reset(); err != nil {
		return models.NewInternalError(err)
	}
	sess.Set(sessionFlashKey, flashes)
	return sess.Save()
}

// CurrentPrincipal returns the authenticated user, or nil for an anonymous
// client. A session that points at a deleted user is cleared and NotFound is
// returned.
func (g *Gateway) CurrentPrincipal(c *fiber.Ctx) (*models.User, error) {
	if u := Principal(c); u != nil {
		return u, nil
	}
	ctx := c.UserContext()

	// A bearer header is authoritative; the session cookie is ignored so that
	// CSRF-exempt bearer requests can never act on a session.
	if raw, ok := middleware.BearerToken(c); ok {
		return g.tokenPrincipal(c, raw)
	}

	sess, err := g.store.Get(c)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	uid, ok := sess.Get(sessionUserKey).(uint)
	if !ok {
		return nil, nil
	}
	user, err := g.users.GetByID(ctx, uid)
	if err != nil {
		if models.IsNotFound(err) {
			_ = sess.Destroy()
		}
		return nil, err
	}
	g.bind(c, user)
	return user, nil
}

func (g *Gateway) tokenPrincipal(c *fiber.Ctx, raw string) (*models.User, error) {
	if g.tokens == nil {
		return nil, models.NewUnauthorizedError("Bearer tokens are not accepted")
	}
	ctx := c.UserContext()
	claims, err := g.tokens.Parse(ctx, raw)
	if err != nil {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}
	uid, err := claims.UserID()
	if err != nil {
		return nil, models.NewUnauthorizedError("Invalid subject claim")
	}
	user, err := g.users.GetByID(ctx, uid)
	if err != nil {
		if models.IsNotFound(err) {
			return nil, models.NewUnauthorizedError("Token subject no longer exists")
		}
		return nil, err
	}
	c.Locals(localClaims, claims)
	g.bind(c, user)
	return user, nil
}

func (g *Gateway) bind(c *fiber.Ctx, user *models.User) {
	c.Locals(LocalUser, user)
	c.Locals(middleware.LocalUserID, user.ID)
	c.SetUserContext(middleware.WithUserID(c.UserContext(), user.ID))
}

// Principal returns the user resolved earlier in this request, if any.
func Principal(c *fiber.Ctx) *models.User {
	u, _ := c.Locals(LocalUser).(*models.User)
	return u
}

// TokenClaims returns the claims of the bearer token that authenticated this
// request, or nil for session-authenticated requests.
func TokenClaims(c *fiber.Ctx) *Claims {
	claims, _ := c.Locals(localClaims).(*Claims)
	return claims
}

// Resolve loads the principal, if any, without enforcing one. Pages that
// render differently for signed-in users run behind it.
func (g *Gateway) Resolve() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := g.CurrentPrincipal(c); err != nil && models.HTTPStatus(err) == fiber.StatusInternalServerError {
			return err
		}
		return c.Next()
	}
}

// RequireAuthenticated sends anonymous browsers to the login page with a
// next parameter and answers API clients with 401.
func (g *Gateway) RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := g.CurrentPrincipal(c)
		// A stale session has already been cleared; treat it as anonymous.
		if err != nil && !models.IsNotFound(err) {
			return err
		}
		if user != nil {
			return c.Next()
		}

		if middleware.WantsJSON(c) {
			return models.NewUnauthorizedError("Authorization required")
		}
		return c.Redirect(LoginPath + "?next=" + url.QueryEscape(c.OriginalURL()))
	}
}

// RequireRole rejects authenticated users lacking role with 403. It must run
// after RequireAuthenticated.
func (g *Gateway) RequireRole(role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := Principal(c)
		if user == nil {
			return models.NewUnauthorizedError("Authorization required")
		}
		if user.Role != role {
			middleware.Logger.WarnContext(c.UserContext(), "role check failed",
				"required", role, "actual", user.Role, "path", c.Path())
			return models.NewForbiddenError(string(role) + " access required")
		}
		return c.Next()
	}
}

// Flash queues messages for the next page the client renders.
func (g *Gateway) Flash(c *fiber.Ctx, msgs ...string) error {
	if len(msgs) == 0 {
		return nil
	}
	sess, err := g.store.Get(c)
	if err != nil {
		return err
	}
	existing, _ := sess.Get(sessionFlashKey).([]string)
	sess.Set(sessionFlashKey, append(existing, msgs...))
	return sess.Save()
}

// Flashes pops queued messages.
func (g *Gateway) Flashes(c *fiber.Ctx) []string {
	sess, err := g.store.Get(c)
	if err != nil || sess.Fresh() {
		return nil
	}
	msgs, _ := sess.Get(sessionFlashKey).([]string)
	if len(msgs) == 0 {
		return nil
	}
	sess.Delete(sessionFlashKey)
	if err := sess.Save(); err != nil {
		middleware.Logger.WarnContext(c.UserContext(), "failed to clear flashes", "error", err)
	}
	return msgs
}

// SafeRedirect returns next when it is a local path and fallback otherwise.
func SafeRedirect(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") ||
		strings.HasPrefix(next, "//") || strings.HasPrefix(next, `/\`) {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return next
}
