// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"
	"strings"
)

// ParticipantHeader は呼び出し元の参加者名を運ぶリクエストヘッダー。
const ParticipantHeader = "User"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// participantContextKey はリクエストコンテキストに参加者名を格納するためのキー。
var participantContextKey = contextKey("participant")

// NewParticipantMiddleware はUserヘッダーの参加者名をリクエストコンテキストに注入する。
// 認証は行わない。ヘッダーが空の場合は何も注入せず、要否の判断はハンドラーに委ねる。
func NewParticipantMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := strings.TrimSpace(r.Header.Get(ParticipantHeader))
			if name != "" {
				r = r.WithContext(ContextWithParticipant(r.Context(), name))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ParticipantFromContext はリクエストコンテキストから参加者名を取得する。
func ParticipantFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(participantContextKey).(string)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// ContextWithParticipant はコンテキストに参加者名を注入する。
func ContextWithParticipant(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, participantContextKey, name)
}
