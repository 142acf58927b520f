package model

import (
	"fmt"

	"github.com/google/uuid"
)

// TwoFACodeLength は二要素認証コードの桁数。
// 生成側（チャレンジストア）と検証側（ハンドラー）の両方でこの幅を使用する。
const TwoFACodeLength = 6

// ParseLoginAttemptID は生の文字列からログイン試行IDを検証する。
// 試行IDはUUIDとして発行されるため、UUID形式でない場合は
// ストアに問い合わせる前にバリデーションエラーを返す。
func ParseLoginAttemptID(raw string) (string, error) {
	if _, err := uuid.Parse(raw); err != nil {
		return "", NewInvalidInputError("loginAttemptIdの形式が不正です")
	}
	return raw, nil
}

// ParseTwoFACode は生の文字列から二要素認証コードを検証する。
// 既定の桁数の数字列でない場合はバリデーションエラーを返す。
func ParseTwoFACode(raw string) (string, error) {
	if len(raw) != TwoFACodeLength {
		return "", NewInvalidInputError(fmt.Sprintf("twoFACodeは%d桁の数字である必要があります", TwoFACodeLength))
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return "", NewInvalidInputError(fmt.Sprintf("twoFACodeは%d桁の数字である必要があります", TwoFACodeLength))
		}
	}
	return raw, nil
}
