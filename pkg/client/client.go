package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"

	"github.com/doorpasses/trustcore/pkg/token"
)

// AuthUser is the authenticated principal extracted from a verified token
type AuthUser struct {
	UserId      string `json:"user_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	SessionId   string `json:"session_id,omitempty"`
	// Parsed UUID forms for direct use
	UserUuid    uuid.UUID
	SessionUuid uuid.UUID
}

func (u AuthUser) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user", u.UserId),
		slog.String("session", u.SessionId),
	)
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "trustcore context value " + k.name
}

var (
	// AuthUserKey locates the AuthUser in a request context
	AuthUserKey = &contextKey{"AuthUser"}
)

// FromContext extracts the authenticated user from a request context
func FromContext(ctx context.Context) (*AuthUser, bool) {
	authUser, ok := ctx.Value(AuthUserKey).(*AuthUser)
	return authUser, ok
}

func loadFromMap[T any](m map[string]interface{}, c *T) error {
	data, err := json.Marshal(m)
	if err == nil {
		err = json.Unmarshal(data, c)
	}
	return err
}

// AuthUserMiddleware turns verified JWT claims into an AuthUser on the
// request context. It must run after Verifier.
func AuthUserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jwtToken, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || jwtToken == nil {
			http.Error(w, "missing or invalid JWT", http.StatusUnauthorized)
			return
		}

		authUser := new(AuthUser)

		if extraClaimsRaw, exists := claims["extra_claims"]; exists {
			if extraClaims, ok := extraClaimsRaw.(map[string]interface{}); ok {
				if err := loadFromMap(extraClaims, authUser); err != nil {
					slog.Error("failed to parse extra claims", "error", err)
					http.Error(w, "invalid extra claims data", http.StatusUnauthorized)
					return
				}
			}
		}

		if authUser.UserId == "" {
			authUser.UserId = jwtToken.Subject()
		}
		if authUser.UserId == "" {
			http.Error(w, "missing user ID in token", http.StatusUnauthorized)
			return
		}

		userUUID, err := uuid.Parse(authUser.UserId)
		if err != nil {
			slog.Warn("failed to parse user ID as UUID", "userId", authUser.UserId, "error", err)
		} else {
			authUser.UserUuid = userUUID
		}

		if authUser.SessionId != "" {
			sessionUUID, err := uuid.Parse(authUser.SessionId)
			if err != nil {
				slog.Warn("failed to parse session ID as UUID", "sessionId", authUser.SessionId, "error", err)
			} else {
				authUser.SessionUuid = sessionUUID
			}
		}

		ctx := context.WithValue(r.Context(), AuthUserKey, authUser)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Verifier verifies a JWT from the Authorization header or the access token
// cookie and stores it on the request context
func Verifier(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return jwtauth.Verify(ja, jwtauth.TokenFromHeader, TokenFromCookie)(next)
	}
}

// TokenFromCookie reads the access token cookie
func TokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(token.AccessTokenName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
