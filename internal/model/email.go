package model

import "strings"

// Email は検証済みのメールアドレスを表す値型。
// ParseEmailを通過した値のみが存在し、ストアのキーとして使用される。
type Email string

// ParseEmail は生の文字列からEmailを生成する。
// 空文字列（トリム後）または'@'を含まない場合はバリデーションエラーを返す。
func ParseEmail(raw string) (Email, error) {
	if strings.TrimSpace(raw) == "" {
		return "", NewInvalidEmailError("メールアドレスが空です")
	}
	if !strings.Contains(raw, "@") {
		return "", NewInvalidEmailError("メールアドレスに'@'が含まれていません")
	}
	return Email(raw), nil
}

// String はメールアドレスの文字列表現を返す。
func (e Email) String() string {
	return string(e)
}
