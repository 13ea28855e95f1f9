// Package security はアプリケーションのセキュリティ機能を提供する。
//
// MarkupGuard は参加者名にHTMLが含まれているかを判定する。
// 入力を書き換えることはせず、判定結果に応じて呼び出し側が拒否する。
package security

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// MarkupGuard はユーザー入力中のHTMLマークアップを検出するインターフェース。
type MarkupGuard interface {
	// ContainsMarkup はrawにタグやコメントなどのマークアップが含まれる場合にtrueを返す。
	// 単独の "<" や ">" はマークアップとみなさない。
	ContainsMarkup(raw string) bool
}

// markupGuard はbluemondayのStrictPolicyによるMarkupGuardの実装。
// bluemonday.Policyはゴルーチンセーフ。
type markupGuard struct {
	policy *bluemonday.Policy
}

// NewMarkupGuard は新しいMarkupGuardを生成する。
func NewMarkupGuard() *markupGuard {
	return &markupGuard{
		policy: bluemonday.StrictPolicy(),
	}
}

// ContainsMarkup はStrictPolicyの出力と単純なエスケープ結果を比較する。
// StrictPolicyはテキスト部分をエスケープし直すだけなので、両者が一致しなければタグが除去されている。
// エンティティ表記はStrictPolicy側で一度復号されるため、比較前に同じく復号しておく。
func (g *markupGuard) ContainsMarkup(raw string) bool {
	if raw == "" {
		return false
	}
	return g.policy.Sanitize(raw) != html.EscapeString(html.UnescapeString(raw))
}
