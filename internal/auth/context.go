package auth

import (
	"context"
	"net/http"

	"inpatient-hub/backend/internal/access"
	"inpatient-hub/backend/pkg/models"
)

type contextKey int

const accessKey contextKey = iota

// WithAccess returns a copy of ctx carrying the caller's access context.
func WithAccess(ctx context.Context, ac access.Context) context.Context {
	return context.WithValue(ctx, accessKey, ac)
}

// AccessFromContext returns the access context stored by RequireAuth. A
// request that never passed through it yields an anonymous context with no
// version, which every check answers with false.
func AccessFromContext(ctx context.Context) access.Context {
	ac, _ := ctx.Value(accessKey).(access.Context)
	return ac
}

// UserFromContext returns the signed-in user, or nil.
func UserFromContext(ctx context.Context) *models.User {
	return AccessFromContext(ctx).User
}

// SetVersionCookie records a version override for this browser.
func SetVersionCookie(w http.ResponseWriter, v models.AppVersion) {
	http.SetCookie(w, &http.Cookie{
		Name:     VersionCookie,
		Value:    string(v),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
