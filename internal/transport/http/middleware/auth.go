package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pentia/chatcore/internal/domain"
	"github.com/pentia/chatcore/internal/log"
)

type contextKey string

const UserKey contextKey = "user"

var ErrInvalidToken = errors.New("invalid or expired token")

// ParseToken verifies an identity token and returns the user it names. The
// subject is the user id; "name" and "picture" claims are optional.
func ParseToken(jwtSecret, tokenStr string) (domain.User, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		return []byte(jwtSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return domain.User{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.User{}, ErrInvalidToken
	}

	sub, _ := claims.GetSubject()
	if strings.TrimSpace(sub) == "" || strings.Contains(sub, "/") {
		return domain.User{}, ErrInvalidToken
	}

	user := domain.User{ID: sub}
	if name, ok := claims["name"].(string); ok {
		user.DisplayName = name
	}
	if picture, ok := claims["picture"].(string); ok && picture != "" {
		user.PhotoURL = &picture
	}
	return user, nil
}

func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, `{"error":{"code":"UNAUTHORIZED","message":"Missing or invalid token"}}`, http.StatusUnauthorized)
				return
			}

			user, err := ParseToken(jwtSecret, strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				http.Error(w, `{"error":{"code":"UNAUTHORIZED","message":"Invalid or expired token"}}`, http.StatusUnauthorized)
				return
			}

			ctx := WithUser(r.Context(), user)
			logger := log.Ctx(ctx).With().Str(log.FieldUserID, user.ID).Logger()
			ctx = log.WithLogger(ctx, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithUser(ctx context.Context, user domain.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// GetUser extracts the authenticated user from request context
func GetUser(ctx context.Context) domain.User {
	user, _ := ctx.Value(UserKey).(domain.User)
	return user
}
