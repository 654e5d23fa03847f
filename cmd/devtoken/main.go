// Command devtoken はローカル検証用にアカウントのJWTを発行します。
package main

import (
	"flag"
	"fmt"
	"os"

	"options_backend/internal/config"
	jwtmw "options_backend/internal/platform/jwt"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML config file")
	account := flag.String("account", "", "account id written to the sub claim")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	secret := cfg.JWT.Secret
	if secret == "" {
		secret = os.Getenv(jwtmw.EnvKeyJWTSecret)
	}
	if secret == "" {
		fmt.Fprintln(os.Stderr, "jwt secret is not set")
		os.Exit(1)
	}

	token, err := jwtmw.NewGenerator(secret, cfg.JWT.TokenTTL.Duration).GenerateToken(*account)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
