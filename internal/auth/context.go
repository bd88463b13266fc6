package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/promptvault/promptvault/internal/models"
)

type contextKey string

const requesterKey contextKey = "requester"

func WithRequester(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, requesterKey, u)
}

// RequesterFromContext returns the authenticated user, or nil outside
// an authenticated request.
func RequesterFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(requesterKey).(*models.User)
	return u
}

// RequesterIDFromContext returns uuid.Nil outside an authenticated
// request.
func RequesterIDFromContext(ctx context.Context) uuid.UUID {
	if u := RequesterFromContext(ctx); u != nil {
		return u.ID
	}
	return uuid.Nil
}
