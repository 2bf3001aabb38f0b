// Package middleware содержит HTTP middleware витрины.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
)

type contextKey string

const sessionIDKey contextKey = "sessionID"

const (
	sessionCookieName = "bakery_session"
	sessionCookieTTL  = 30 * 24 * time.Hour
)

// SessionMiddleware привязывает запрос к сессии покупателя по подписанному cookie.
// Запрос без cookie или с неверной подписью получает новую сессию.
type SessionMiddleware struct {
	codec *securecookie.SecureCookie
}

// NewSessionMiddleware создаёт middleware с указанным секретом подписи.
// Пустой секрет заменяется случайным, и сессии не переживают перезапуск.
func NewSessionMiddleware(secret string) *SessionMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		key = securecookie.GenerateRandomKey(32)
	}

	codec := securecookie.New(key, nil)
	codec.MaxAge(int(sessionCookieTTL.Seconds()))

	return &SessionMiddleware{codec: codec}
}

// Middleware добавляет идентификатор сессии в контекст запроса.
func (m *SessionMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := m.parseCookie(r)
		if !ok {
			sessionID = uuid.NewString()
			if err := m.SetSessionCookie(w, sessionID); err != nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
		}

		ctx := context.WithValue(r.Context(), sessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetSessionCookie устанавливает cookie сессии.
func (m *SessionMiddleware) SetSessionCookie(w http.ResponseWriter, sessionID string) error {
	value, err := m.codec.Encode(sessionCookieName, sessionID)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(sessionCookieTTL),
		MaxAge:   int(sessionCookieTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (m *SessionMiddleware) parseCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", false
	}

	var sessionID string
	if err := m.codec.Decode(sessionCookieName, cookie.Value, &sessionID); err != nil {
		return "", false
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		return "", false
	}
	return sessionID, true
}

// GetSessionIDFromContext извлекает идентификатор сессии из контекста запроса.
func GetSessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok && id != ""
}

// WithSessionID возвращает контекст с идентификатором сессии.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}
