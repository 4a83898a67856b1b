package http

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenAuthMiddleware пропускает запрос, если передан токен дашборда. Токен ищется
// в заголовке Authorization: Bearer, в X-Dashboard-Token и в параметре token.
// Пустой token отключает проверку.
func TokenAuthMiddleware(token string, reject func(w http.ResponseWriter, r *http.Request)) func(http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			if subtle.ConstantTimeCompare([]byte(requestToken(r)), expected) != 1 {
				reject(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if v := r.Header.Get("X-Dashboard-Token"); v != "" {
		return strings.TrimSpace(v)
	}
	return r.URL.Query().Get("token")
}
