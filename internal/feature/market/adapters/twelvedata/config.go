// Package twelvedata はTwelve Data APIの価格プロバイダーを提供します。
package twelvedata

import "time"

// DefaultBaseURL はTwelve Data APIの既定のベースURLです。
const DefaultBaseURL = "https://api.twelvedata.com"

// Config はTwelve Data APIクライアントの設定を保持します。
type Config struct {
	APIKey        string        // 認証用APIキー
	BaseURL       string        // APIのベースURL（例: "https://api.twelvedata.com"）
	Timeout       time.Duration // HTTPリクエストタイムアウト
	RatePerMinute int           // 1分あたりの呼び出し上限（0以下で無制限）
}
