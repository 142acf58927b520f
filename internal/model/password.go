package model

import "strings"

// 最小パスワード長（文字数）。
const minPasswordLength = 8

// Password は検証済みの生パスワードを表す値型。
// パースからハッシュ化/照合までの間にのみ存在し、永続化されない。
// ログへの出力を防ぐためStringerは実装しない。
type Password string

// ParsePassword は生の文字列からPasswordを生成する。
// 空文字列（トリム後）または8文字未満の場合はバリデーションエラーを返す。
func ParsePassword(raw string) (Password, error) {
	if strings.TrimSpace(raw) == "" {
		return "", NewInvalidPasswordError("パスワードが空です")
	}
	if len(raw) < minPasswordLength {
		return "", NewInvalidPasswordError("パスワードは8文字以上である必要があります")
	}
	return Password(raw), nil
}
