package config

import "time"

type Config struct {
	Server   Server   `koanf:"server"`
	CMS      CMS      `koanf:"cms"`
	Auth     Auth     `koanf:"auth"`
	Stripe   Stripe   `koanf:"stripe"`
	Database Database `koanf:"database"`
	Limits   Limits   `koanf:"limits"`
	Live     Live     `koanf:"live"`
	Log      Log      `koanf:"log"`
	School   School   `koanf:"school"`
}

type Server struct {
	Addr           string   `koanf:"addr" validate:"required"`
	GRPCAddr       string   `koanf:"grpc_addr" validate:"required"`
	PublicURL      string   `koanf:"public_url" validate:"required,url"`
	TrustedProxies []string `koanf:"trusted_proxies"`
	CORSOrigins    []string `koanf:"cors_origins"`
}

type CMS struct {
	BaseURL       string        `koanf:"base_url" validate:"required,url"`
	MediaOrigin   string        `koanf:"media_origin" validate:"omitempty,url"`
	APIToken      string        `koanf:"api_token"`
	Timeout       time.Duration `koanf:"timeout" validate:"gt=0"`
	RetryAttempts uint64        `koanf:"retry_attempts" validate:"lte=10"`
	CacheTTL      time.Duration `koanf:"cache_ttl" validate:"gte=0"`
	CacheSize     int           `koanf:"cache_size" validate:"gte=0"`
}

// MediaBase is the origin relative upload paths are joined to.
func (c CMS) MediaBase() string {
	if c.MediaOrigin != "" {
		return c.MediaOrigin
	}
	return c.BaseURL
}

type Auth struct {
	JWTSecret     string        `koanf:"jwt_secret" validate:"required,min=16"`
	JWTIssuer     string        `koanf:"jwt_issuer" validate:"required"`
	JWTTTL        time.Duration `koanf:"jwt_ttl" validate:"gt=0"`
	SessionKey    string        `koanf:"session_key" validate:"required,min=16"`
	SecureCookies bool          `koanf:"secure_cookies"`
}

type Stripe struct {
	SecretKey     string        `koanf:"secret_key"`
	WebhookSecret string        `koanf:"webhook_secret"`
	APIBase       string        `koanf:"api_base" validate:"required,url"`
	Currency      string        `koanf:"currency" validate:"required,len=3"`
	SuccessPath   string        `koanf:"success_path" validate:"required,startswith=/"`
	CancelPath    string        `koanf:"cancel_path" validate:"required,startswith=/"`
	Timeout       time.Duration `koanf:"timeout" validate:"gt=0"`
}

type Database struct {
	Path string `koanf:"path" validate:"required"`
}

type Limits struct {
	SubmitRate   int64         `koanf:"submit_rate" validate:"gt=0"`
	SubmitPeriod time.Duration `koanf:"submit_period" validate:"gt=0"`
}

type Live struct {
	StaffKey string `koanf:"staff_key"`
}

type Log struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `koanf:"json"`
}

type School struct {
	Name       string `koanf:"name"`
	TargetYear string `koanf:"target_year" validate:"required,numeric,len=4"`
}

func Default() *Config {
	return &Config{
		Server: Server{
			Addr:           ":8080",
			GRPCAddr:       ":9090",
			PublicURL:      "http://localhost:3000",
			TrustedProxies: []string{"127.0.0.1"},
			CORSOrigins:    []string{"http://localhost:3000"},
		},
		CMS: CMS{
			BaseURL:       "http://localhost:1337",
			Timeout:       10 * time.Second,
			RetryAttempts: 2,
			CacheTTL:      60 * time.Second,
			CacheSize:     512,
		},
		Auth: Auth{
			JWTSecret:  "dev-secret-change-me-please",
			JWTIssuer:  "schoolsite",
			JWTTTL:     7 * 24 * time.Hour,
			SessionKey: "dev-session-key-change-me",
		},
		Stripe: Stripe{
			APIBase:     "https://api.stripe.com",
			Currency:    "usd",
			SuccessPath: "/donation/success?session_id={CHECKOUT_SESSION_ID}",
			CancelPath:  "/donation?canceled=true",
			Timeout:     15 * time.Second,
		},
		Database: Database{Path: "data/schoolsite.db"},
		Limits: Limits{
			SubmitRate:   10,
			SubmitPeriod: time.Minute,
		},
		Log:    Log{Level: "info"},
		School: School{Name: "Hughes School", TargetYear: "2026"},
	}
}
