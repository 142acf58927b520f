// Package email は二要素認証コードの送信境界を定義する。
// 実際のメール配信基盤はこのコアの設計対象外であり、ここではインターフェースと
// 開発用の実装のみを提供する。
package email

import (
	"context"
	"log/slog"

	"github.com/hitoshi/authgate/internal/model"
)

// Sender は二要素認証コードの送信インターフェース。
type Sender interface {
	// SendTwoFACode は保留中チャレンジのコードをプリンシパルに送信する。
	SendTwoFACode(ctx context.Context, to model.Email, code string) error
}

// LogSender はメールを送信せずログに記録するSender実装。
// 開発・テスト環境で使用する。コード自体はログに出力しない。
type LogSender struct{}

// NewLogSender はLogSenderを生成する。
func NewLogSender() *LogSender {
	return &LogSender{}
}

// SendTwoFACode は送信をログ記録で代替する。
func (s *LogSender) SendTwoFACode(ctx context.Context, to model.Email, code string) error {
	slog.Info("2FA code issued (log sender, not delivered)",
		slog.String("email", to.String()),
		slog.Int("code_length", len(code)),
	)
	return nil
}

// compile-time interface check
var _ Sender = (*LogSender)(nil)
