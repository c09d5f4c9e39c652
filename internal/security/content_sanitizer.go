// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は収集した議論のHTML断片からタグを除去し、
// LLMへの入力とDB保存に安全なプレーンテキストへ変換する。
// bluemondayのStrictPolicyにより、scriptやiframeを含む全タグが除去される。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService は議論テキストのサニタイズ機能のインターフェースを定義する。
// スクレイパーが取得した本文・コメントの保存前に使用される。
type ContentSanitizerService interface {
	// Sanitize はHTML断片から全タグを除去し、プレーンテキストを返す。
	// HTMLエンティティはデコードされ、連続する空白は1つにまとめられる。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは許可タグを持たないため、全てのタグと属性が除去され
// テキストノードのみが残る。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はHTML断片から全タグを除去し、プレーンテキストを返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	stripped := s.policy.Sanitize(raw)

	// bluemondayはテキストをエスケープして返すため、エンティティを実体に戻す
	decoded := html.UnescapeString(stripped)

	// タグ除去で生じた余分な空白の正規化
	return strings.Join(strings.Fields(decoded), " ")
}

// コンパイル時のインターフェース実装チェック
var _ ContentSanitizerService = (*contentSanitizer)(nil)
