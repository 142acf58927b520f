// Package model はドメインモデルを定義する。
package model

import "time"

// User は登録済みアカウントを表す。
// PasswordHashは永続化バックエンドのみが設定する。インメモリストアでは空。
type User struct {
	Email        Email
	PasswordHash string
	Requires2FA  bool
	CreatedAt    time.Time
}

// TwoFAChallenge は保留中の二要素認証チャレンジを表す。
// AttemptIDはログイン試行ごとに発行されるUUID、Codeは数字のワンタイムコード。
type TwoFAChallenge struct {
	AttemptID string
	Code      string
}
