// Package security はユーザー入力の無害化を提供する。
//
// TextSanitizer は店舗名・料理名・説明文などの表示用テキストからマークアップを除去する。
// 公開メニューにそのまま表示されるため、保存前に必ず通す。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は表示用テキストとURLの無害化機能のインターフェースを定義する。
type TextSanitizer interface {
	// SanitizeText は全てのHTMLタグを除去したプレーンテキストを返す。
	// 前後の空白は除去する。同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string

	// SanitizeURL は画像URLを検証し、http/httpsの絶対URLのみを返す。
	// それ以外のスキーム（javascript, data等）や不正なURLは空文字列を返す。
	SanitizeURL(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので共有して使う。
type textSanitizer struct {
	policy   *bluemonday.Policy
	brackets *strings.Replacer
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 許可タグ: なし（bluemonday.StrictPolicy）
//   - script, styleの中身も含めて除去
//   - エスケープされたエンティティは元の文字に戻し、残った山括弧は削除
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy:   bluemonday.StrictPolicy(),
		brackets: strings.NewReplacer("<", "", ">", ""),
	}
}

// SanitizeText は全てのHTMLタグを除去したプレーンテキストを返す。
func (s *textSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := html.UnescapeString(s.policy.Sanitize(raw))
	return strings.TrimSpace(s.brackets.Replace(stripped))
}

// SanitizeURL は画像URLを検証し、http/httpsの絶対URLのみを返す。
func (s *textSanitizer) SanitizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.String()
	default:
		return ""
	}
}

// compile-time interface check
var _ TextSanitizer = (*textSanitizer)(nil)
