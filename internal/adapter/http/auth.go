package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/vodmill/vodmill/internal/adapter/http/ratelimit"
	"github.com/vodmill/vodmill/internal/domain"
	"github.com/vodmill/vodmill/internal/infrastructure/logger"
	"github.com/vodmill/vodmill/internal/service"
)

const (
	CookieName     = "auth_token"
	CookieMaxAge   = 7 * 24 * 60 * 60
	CookiePath     = "/"
	CookieSameSite = http.SameSiteStrictMode
)

type AuthService interface {
	Register(username, password string) (*domain.User, error)
	Login(username, password string) (*domain.User, error)
	GenerateToken(userID int64) string
	ValidateToken(token string) (*domain.User, error)
}

type ctxKey int

const userKey ctxKey = iota

// UserFrom returns the authenticated user stored by AuthMiddleware.
func UserFrom(ctx context.Context) *domain.User {
	user, _ := ctx.Value(userKey).(*domain.User)
	return user
}

// AuthMiddleware resolves the auth cookie to a user and rejects the request
// with 401 when it is missing or invalid.
func AuthMiddleware(authSvc AuthService, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CookieName)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		user, err := authSvc.ValidateToken(cookie.Value)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentials, error) {
	var creds credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&creds); err != nil {
		return creds, err
	}
	return creds, nil
}

func RegisterHandler(authSvc AuthService, limiter *ratelimit.Limiter, behindProxy bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := ClientIP(r, behindProxy)
		if allowed, retryAfter := limiter.Check(clientID); !allowed {
			writeRateLimited(w, retryAfter)
			return
		}

		creds, err := decodeCredentials(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		user, err := authSvc.Register(creds.Username, creds.Password)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrUserExists):
				writeError(w, http.StatusConflict, "username is taken")
			case errors.Is(err, service.ErrInvalidUsername), errors.Is(err, service.ErrWeakPassword):
				writeError(w, http.StatusBadRequest, err.Error())
			default:
				logger.Error.Printf("register failed for %s: %v", logger.SanitizeForLog(creds.Username), err)
				writeError(w, http.StatusInternalServerError, "registration failed")
			}
			return
		}

		setAuthCookie(w, authSvc.GenerateToken(user.ID))
		writeJSON(w, http.StatusCreated, userResponse{ID: user.ID, Username: user.Username})
	}
}

func LoginHandler(authSvc AuthService, limiter *ratelimit.Limiter, behindProxy bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := ClientIP(r, behindProxy)
		if allowed, retryAfter := limiter.Check(clientID); !allowed {
			writeRateLimited(w, retryAfter)
			return
		}

		creds, err := decodeCredentials(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		user, err := authSvc.Login(creds.Username, creds.Password)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		limiter.Reset(clientID)
		setAuthCookie(w, authSvc.GenerateToken(user.ID))
		writeJSON(w, http.StatusOK, userResponse{ID: user.ID, Username: user.Username})
	}
}

func LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    "",
			MaxAge:   -1,
			Path:     CookiePath,
			Secure:   true,
			HttpOnly: true,
			SameSite: CookieSameSite,
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

func MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		writeJSON(w, http.StatusOK, userResponse{ID: user.ID, Username: user.Username})
	}
}

func setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		MaxAge:   CookieMaxAge,
		Path:     CookiePath,
		Secure:   true,
		HttpOnly: true,
		SameSite: CookieSameSite,
	})
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	w.Header().Set("Retry-After", retryAfterSeconds(retryAfter))
	writeError(w, http.StatusTooManyRequests, "too many attempts, try again later")
}
