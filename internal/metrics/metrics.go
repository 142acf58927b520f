// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector は認証フローのメトリクスを収集するPrometheus実装。
// auth.MetricsRecorderとmiddlewareのHTTPステータス記録の両方を満たす。
type Collector struct {
	signupTotal   prometheus.Counter
	loginSuccess  prometheus.Counter
	loginFail     prometheus.Counter
	twoFAIssued   prometheus.Counter
	twoFAVerified prometheus.Counter
	tokensRevoked prometheus.Counter
	httpStatus    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signupTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_signup_total",
			Help: "アカウント登録の合計数",
		}),
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_login_fail_total",
			Help: "ログイン失敗（認証情報不一致）の合計数",
		}),
		twoFAIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_twofa_issued_total",
			Help: "発行された二要素認証チャレンジの合計数",
		}),
		twoFAVerified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_twofa_verified_total",
			Help: "検証に成功した二要素認証チャレンジの合計数",
		}),
		tokensRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_tokens_revoked_total",
			Help: "明示的に失効されたセッショントークンの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.signupTotal,
		c.loginSuccess,
		c.loginFail,
		c.twoFAIssued,
		c.twoFAVerified,
		c.tokensRevoked,
		c.httpStatus,
	)

	return c
}

// RecordSignup はアカウント登録を記録する。
func (c *Collector) RecordSignup() {
	c.signupTotal.Inc()
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginFail.Inc()
}

// RecordTwoFAIssued は二要素認証チャレンジの発行を記録する。
func (c *Collector) RecordTwoFAIssued() {
	c.twoFAIssued.Inc()
}

// RecordTwoFAVerified は二要素認証の検証成功を記録する。
func (c *Collector) RecordTwoFAVerified() {
	c.twoFAVerified.Inc()
}

// RecordTokenRevoked はトークンの明示的失効を記録する。
func (c *Collector) RecordTokenRevoked() {
	c.tokensRevoked.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
