package config

// Redacted は秘密情報を "***" に置き換えたコピーを返します。起動時のログ出力に使います。
func Redacted(cfg *Config) Config {
	out := *cfg
	redact(&out.TwelveData.APIKey)
	redact(&out.Funds.APIKey)
	redact(&out.Database.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.JWT.Secret)
	return out
}

func redact(s *string) {
	if *s != "" {
		*s = "***"
	}
}
