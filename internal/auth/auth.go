package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc"
	"golang.org/x/oauth2"

	"inpatient-hub/backend/internal/access"
	"inpatient-hub/backend/internal/config"
	"inpatient-hub/backend/internal/logging"
	"inpatient-hub/backend/internal/repository"
	"inpatient-hub/backend/internal/session"
	"inpatient-hub/backend/internal/telemetry"
	"inpatient-hub/backend/pkg/models"
)

const (
	SessionCookie    = "session_id"
	VersionCookie    = "app_version"
	SiteAccessCookie = "site_access"
	stateCookie      = "oauthstate"

	devEmail = "dev@localhost"
)

var errUnauthenticated = errors.New("not signed in")

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Auth signs staff in from the roster, either by picking a roster entry or
// through an OpenID Connect provider, and resolves each request to a user
// and app version.
type Auth struct {
	oauth2Config   *oauth2.Config
	verifier       *oidc.IDTokenVerifier
	apiVerifier    *oidc.IDTokenVerifier
	users          repository.UserStore
	sessions       session.Store
	logger         Logger
	metrics        *telemetry.Metrics
	mode           string
	authBypass     bool
	siteDigest     string
	defaultVersion models.AppVersion
}

// New creates a new Auth object using values from the application
// configuration. In OIDC mode it connects to the provider and prepares the
// ID token verifiers.
func New(
	ctx context.Context, cfg *config.Config, users repository.UserStore,
	sessions session.Store, logger Logger, metrics *telemetry.Metrics,
) (*Auth, error) {
	a := &Auth{
		users:          users,
		sessions:       sessions,
		logger:         logger,
		metrics:        metrics,
		mode:           cfg.Auth.Mode,
		authBypass:     cfg.AuthBypass(),
		defaultVersion: cfg.DefaultAppVersion(),
	}
	if cfg.App.SitePassword != "" {
		a.siteDigest = siteDigest(cfg.App.SitePassword)
	}

	if a.mode != config.AuthModeOIDC || a.authBypass {
		return a, nil
	}

	if cfg.Auth.OktaDomain == "" || cfg.Auth.ClientID == "" ||
		cfg.Auth.ClientSecret == "" || cfg.Auth.RedirectURL == "" {
		return nil, config.ErrIncompleteOIDC
	}

	provider, err := oidc.NewProvider(ctx, cfg.Auth.OktaDomain)
	if err != nil {
		return nil, err
	}

	a.oauth2Config = &oauth2.Config{
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.Auth.RedirectURL,
		Scopes:       LoginScopes,
	}
	a.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.Auth.ClientID})
	// Access tokens carry a different audience than the client ID.
	a.apiVerifier = provider.Verifier(&oidc.Config{SkipClientIDCheck: true})
	return a, nil
}

// GateHandler checks the shared site password and sets the access cookie.
func (a *Auth) GateHandler(w http.ResponseWriter, r *http.Request) {
	if a.siteDigest == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	password, err := formValue(r, "password")
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	digest := siteDigest(password)
	if subtle.ConstantTimeCompare([]byte(digest), []byte(a.siteDigest)) != 1 {
		a.metrics.Denial(r.Context(), "site_password")
		http.Error(w, "incorrect password", http.StatusUnauthorized)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SiteAccessCookie,
		Value:    digest,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// RequireSiteAccess is middleware that refuses requests without the site
// access cookie. It passes everything through when no password is set.
func (a *Auth) RequireSiteAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.siteDigest == "" || a.authBypass {
			next.ServeHTTP(w, r)
			return
		}
		cookie, err := r.Cookie(SiteAccessCookie)
		if err != nil ||
			subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(a.siteDigest)) != 1 {
			http.Error(w, "site password required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RosterHandler lists the staff that can be picked at sign in.
func (a *Auth) RosterHandler(w http.ResponseWriter, r *http.Request) {
	users, err := a.users.ListUsers(r.Context())
	if err != nil {
		a.logger.Error("failed to list roster", logging.Error(err))
		http.Error(w, "failed to load roster", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// LoginHandler starts a session. In roster mode a POST names the roster
// entry by email; in OIDC mode the user is redirected to the provider with
// a random state value stored in a cookie to mitigate CSRF attacks.
func (a *Auth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if a.authBypass {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if a.mode == config.AuthModeOIDC {
		state, err := generateState()
		if err != nil {
			http.Error(w, "failed to generate state", http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     stateCookie,
			Value:    state,
			HttpOnly: true,
			Path:     "/",
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, a.oauth2Config.AuthCodeURL(state), http.StatusTemporaryRedirect)
		return
	}

	if r.Method != http.MethodPost {
		a.RosterHandler(w, r)
		return
	}

	email, err := formValue(r, "email")
	email = strings.TrimSpace(email)
	if err != nil || email == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}

	user, err := a.users.GetUserByEmail(r.Context(), email)
	if errors.Is(err, repository.ErrNotFound) {
		http.Error(w, "unknown roster entry", http.StatusNotFound)
		return
	}
	if err != nil {
		a.logger.Error("failed to look up user", logging.Error(err))
		http.Error(w, "failed to look up user", http.StatusInternalServerError)
		return
	}

	if err := a.startSession(w, r, user); err != nil {
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// CallbackHandler handles the redirect back from the provider. It verifies
// the state parameter, exchanges the code for tokens, validates the ID
// token and maps its email claim onto a roster entry.
func (a *Auth) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	if a.authBypass || a.mode != config.AuthModeOIDC {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || r.URL.Query().Get("state") != cookie.Value {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}

	token, err := a.oauth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		http.Error(w, "token exchange failed", http.StatusInternalServerError)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		http.Error(w, "no id_token in token response", http.StatusInternalServerError)
		return
	}

	idToken, err := a.verifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		http.Error(w, "failed to verify id token", http.StatusUnauthorized)
		return
	}

	user, err := a.userFromToken(r.Context(), idToken)
	if err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	if err := a.startSession(w, r, user); err != nil {
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// LogoutHandler ends the session and clears the session cookie.
func (a *Auth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if err := a.sessions.Delete(r.Context(), cookie.Value); err != nil {
			a.logger.Warn("failed to delete session", logging.Error(err))
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:   SessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// RequireAuth is middleware that resolves the caller to a roster user and
// stores the user and effective app version in the request context.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.resolveUser(r)
		if err != nil {
			if !errors.Is(err, errUnauthenticated) {
				a.logger.Warn("authentication failed", logging.Error(err))
			}
			if r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html") {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		ctx := WithAccess(r.Context(), access.Context{
			User:    user,
			Version: a.Version(r),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Version returns the app version for a request: the browser's override
// cookie if present, otherwise the configured default. Unknown values are
// passed through so feature checks fail closed.
func (a *Auth) Version(r *http.Request) models.AppVersion {
	if cookie, err := r.Cookie(VersionCookie); err == nil && cookie.Value != "" {
		return models.AppVersion(cookie.Value)
	}
	return a.defaultVersion
}

func (a *Auth) resolveUser(r *http.Request) (*models.User, error) {
	ctx := r.Context()
	if a.authBypass {
		return a.devUser(ctx)
	}

	// Check for Authorization header first (for Swagger/API clients)
	if authHeader := r.Header.Get("Authorization"); a.apiVerifier != nil &&
		strings.HasPrefix(authHeader, "Bearer ") {
		token, err := a.apiVerifier.Verify(ctx, strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			return nil, errors.New("invalid token: " + err.Error())
		}
		return a.userFromToken(ctx, token)
	}

	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return nil, errUnauthenticated
	}
	sess, err := a.sessions.Get(ctx, cookie.Value)
	if errors.Is(err, session.ErrNotFound) {
		return nil, errUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	user, err := a.users.GetUser(ctx, sess.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errUnauthenticated
	}
	return user, err
}

func (a *Auth) userFromToken(ctx context.Context, token *oidc.IDToken) (*models.User, error) {
	var claims struct {
		Email string `json:"email"`
	}
	if err := token.Claims(&claims); err != nil {
		return nil, errors.New("failed to parse token claims")
	}
	if claims.Email == "" {
		return nil, errors.New("token has no email claim")
	}
	user, err := a.users.GetUserByEmail(ctx, claims.Email)
	if err != nil {
		return nil, errors.New("user is not on the roster")
	}
	return user, nil
}

// devUser returns the roster entry for dev@localhost, falling back to a
// synthetic senior admin.
func (a *Auth) devUser(ctx context.Context) (*models.User, error) {
	if user, err := a.users.GetUserByEmail(ctx, devEmail); err == nil {
		return user, nil
	}
	return &models.User{
		ID:    "dev",
		Name:  "Developer",
		Email: devEmail,
		Role:  models.RoleSeniorAdmin,
	}, nil
}

func (a *Auth) startSession(w http.ResponseWriter, r *http.Request, user *models.User) error {
	sess, err := a.sessions.Create(r.Context(), user.ID)
	if err != nil {
		a.logger.Error("failed to create session", logging.UserID(user.ID), logging.Error(err))
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	a.metrics.Login(r.Context(), string(user.Role))
	a.logger.Info("user signed in", logging.UserID(user.ID), logging.Role(user.Role))
	return nil
}

// formValue reads field from a JSON object body or a submitted form.
func formValue(r *http.Request, field string) (string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return "", err
		}
		return body[field], nil
	}
	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return r.FormValue(field), nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func siteDigest(password string) string {
	sum := sha256.Sum256([]byte("inpatient-hub:" + password))
	return hex.EncodeToString(sum[:])
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
