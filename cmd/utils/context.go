package utils

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/KAsare1/slotbook-server/apperror"
	"github.com/golang-jwt/jwt/v4"
)

type contextKey string

const HostIDKey contextKey = "hostID"

func GetHostIDFromContext(r *http.Request) (uint, error) {
	hostID, ok := r.Context().Value(HostIDKey).(uint)
	if !ok {
		return 0, errors.New("host ID not found in context")
	}
	return hostID, nil
}

func WithHostID(ctx context.Context, hostID uint) context.Context {
	return context.WithValue(ctx, HostIDKey, hostID)
}

// Auth issues and checks host tokens. The subject claim carries the host id.
type Auth struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuth(secret string, ttl time.Duration) *Auth {
	return &Auth{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (a *Auth) GenerateToken(hostID uint) (string, time.Time, error) {
	issued := a.now()
	expires := issued.Add(a.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(hostID), 10),
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

func (a *Auth) ParseToken(tokenString string) (uint, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, apperror.Unauthorized("invalid token")
	}

	hostID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || hostID == 0 {
		return 0, apperror.Unauthorized("invalid host ID in token")
	}
	return uint(hostID), nil
}

// Middleware takes the token from the Authorization header, or from the token query
// parameter for clients that cannot set headers (websockets).
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if tokenString == "" {
			tokenString = r.URL.Query().Get("token")
		}
		if tokenString == "" {
			WriteError(w, r, apperror.Unauthorized("authorization header required"))
			return
		}

		hostID, err := a.ParseToken(tokenString)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithHostID(r.Context(), hostID)))
	})
}
