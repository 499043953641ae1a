// Package security はアプリケーションのセキュリティ機能を提供する。
//
// DisplayTextSanitizer はクライアントから受け取った表示テキスト
// （プロジェクト名・説明・オブジェクト名など）をサニタイズし、
// 他の在室者のクライアントに配られる前にマークアップを除去する。
// bluemondayライブラリのStrictPolicyを使用し、一切のタグを許可しない。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// DisplayTextSanitizer は表示テキストのサニタイズ実装。
// ポリシーはスレッドセーフであり、単一インスタンスを共有してよい。
type DisplayTextSanitizer struct {
	policy *bluemonday.Policy
}

// NewDisplayTextSanitizer はDisplayTextSanitizerを生成する。
// StrictPolicyは全てのHTMLタグ・属性を除去し、テキストのみを残す。
func NewDisplayTextSanitizer() *DisplayTextSanitizer {
	return &DisplayTextSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はマークアップを除去した表示テキストを返す。
// 前後の空白も取り除く。空文字列の入力には空文字列を返す。
// 同一入力に対して常に同一出力を返す（冪等）。
func (s *DisplayTextSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
