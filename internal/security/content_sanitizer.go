// Package security は利用者が投稿したテキストの無害化と、
// 外部サービスへ安全に接続するためのHTTPクライアントを提供する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は投稿テキストからHTMLを取り除く。
type TextSanitizer interface {
	// Clean はタグをすべて除去したプレーンテキストを返す。前後の空白も除く。
	Clean(s string) string
}

// textSanitizer はbluemondayのStrictPolicyでタグを除去する。
// StrictPolicyは結果をHTMLエスケープするため、保存前に元の文字へ戻す。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean はTextSanitizerを実装する。
func (s *textSanitizer) Clean(in string) string {
	if in == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(in)))
}
