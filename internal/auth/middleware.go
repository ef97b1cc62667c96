package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/ferdiebergado/gdprkit/internal/pkg/message"
	"github.com/ferdiebergado/gdprkit/internal/pkg/security"
	"github.com/ferdiebergado/gdprkit/internal/pkg/web"
	"github.com/ferdiebergado/gdprkit/internal/platform/jwt"
	"github.com/ferdiebergado/gdprkit/internal/user"
)

var ErrInvalidToken = errors.New("auth: invalid token")

// VerifyToken authenticates the token in the token query parameter. It guards
// the links sent by mail.
func VerifyToken(signer jwt.Signer, audience string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.URL.Query().Get("token")
			if token == "" {
				web.RespondUnauthorized(w, ErrInvalidToken, message.InvalidUser, nil)
				return
			}

			claims, err := signer.Verify(token, audience)
			if err != nil {
				web.RespondUnauthorized(w, err, message.InvalidUser, nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(user.NewContextWithUser(r.Context(), claims.UserID)))
		})
	}
}

// RequireToken authenticates the bearer access token.
func RequireToken(signer jwt.Signer, audience string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := security.ExtractBearerToken(r)
			if err != nil || token == "" {
				web.RespondUnauthorized(w, err, message.InvalidUser, nil)
				return
			}

			claims, err := signer.Verify(token, audience)
			if err != nil {
				web.RespondUnauthorized(w, err, message.InvalidUser, nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(user.NewContextWithUser(r.Context(), claims.UserID)))
		})
	}
}

// OptionalToken authenticates the bearer token when one is present and valid.
// It never rejects a request.
func OptionalToken(signer jwt.Signer, audience string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := security.ExtractBearerToken(r)
			if err != nil || token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := signer.Verify(token, audience)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(user.NewContextWithUser(r.Context(), claims.UserID)))
		})
	}
}

type UserFinder interface {
	Find(ctx context.Context, userID string) (*user.User, error)
}

// RequireRole allows only active accounts with role. It must run after
// RequireToken.
func RequireRole(finder UserFinder, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := user.FromContext(r.Context())
			if err != nil {
				web.RespondUnauthorized(w, err, message.InvalidUser, nil)
				return
			}

			u, err := finder.Find(r.Context(), userID)
			if err != nil {
				if errors.Is(err, user.ErrNotFound) {
					web.RespondUnauthorized(w, err, message.InvalidUser, nil)
					return
				}
				web.RespondInternalServerError(w, err)
				return
			}

			if u.Role != role || u.IsAnonymized() {
				web.RespondForbidden(w, errors.New("auth: role "+u.Role+" lacks "+role), message.Forbidden, nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
