package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrMissingCredentials marks a fail-fast startup condition: a required
// hosting credential is absent from the environment.
var ErrMissingCredentials = errors.New("config: missing required credentials")

// Credentials are the hosting service's identity parameters. All of them are
// required; the process exits nonzero before any work when one is missing.
type Credentials struct {
	ClientID     string `env:"BLOGPUSH_CLIENT_ID,required,notEmpty"`
	ClientSecret string `env:"BLOGPUSH_CLIENT_SECRET,required,notEmpty"`
	RefreshToken string `env:"BLOGPUSH_REFRESH_TOKEN,required,notEmpty"`
	BlogID       string `env:"BLOGPUSH_BLOG_ID,required,notEmpty"`

	// TokenURL overrides the token endpoint (tests, non-Google hosts).
	TokenURL string `env:"BLOGPUSH_TOKEN_URL"`
}

// Telegram are the optional notification-channel parameters. Their absence
// only disables notifications, never fatal.
type Telegram struct {
	Token  string `env:"TELEGRAM_BOT_TOKEN"`
	ChatID int64  `env:"TELEGRAM_CHAT_ID"`
}

func (t Telegram) Enabled() bool { return t.Token != "" && t.ChatID != 0 }

// LoadEnv reads credentials and notification parameters from the environment,
// after a best-effort .env autoload.
func LoadEnv() (Credentials, Telegram, error) {
	// Ignore a missing .env; real environments set variables directly.
	_ = godotenv.Load()

	var creds Credentials
	if err := env.Parse(&creds); err != nil {
		return Credentials{}, Telegram{}, fmt.Errorf("%w: %v", ErrMissingCredentials, err)
	}
	var tg Telegram
	if err := env.Parse(&tg); err != nil {
		return Credentials{}, Telegram{}, fmt.Errorf("config: telegram env: %w", err)
	}
	return creds, tg, nil
}
