// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は書籍のあらすじ・著者の経歴・分類の説明などの自由記述を
// 保存前にサニタイズする。bluemondayの許可リストポリシーで
// 簡単な書式タグのみを通過させ、スクリプトやイベント属性を除去する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer は自由記述テキストのサニタイズ機能のインターフェース。
type Sanitizer interface {
	// Sanitize は許可されていないタグと属性を除去した文字列を返す。
	// 前後の空白は取り除く。同一入力に対して常に同一出力を返す。
	Sanitize(raw string) string
}

// TextSanitizer はSanitizerの実装。bluemondayのポリシーはスレッドセーフ。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
// 許可タグ: p, br, ul, ol, li, blockquote, strong, em（属性はすべて不許可）。
func NewTextSanitizer() *TextSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "strong", "em",
	)
	return &TextSanitizer{policy: p}
}

// Sanitize は自由記述テキストをサニタイズする。
func (s *TextSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(s.policy.Sanitize(raw))
}

var _ Sanitizer = (*TextSanitizer)(nil)
