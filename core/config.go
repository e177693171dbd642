package core

import (
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		MaxOpenConns  int
	}

	ServerConfig struct {
		Host            string
		Port            string
		DebugHost       string
		ShutdownTimeout time.Duration
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		JWTAudience     string
	}

	RedisConfig struct {
		Addr     string
		Password string
		DB       int
	}

	StorageConfig struct {
		Backend       string // gcs | disk | memory
		DiskRoot      string
		PublicBaseURL string
		GCSProject    string
		GCSBucketBase string
		GCSCredsFile  string
	}

	StripeConfig struct {
		SecretKey     string
		WebhookSecret string
		Currency      string
	}

	MuxConfig struct {
		TokenID       string
		TokenSecret   string
		WebhookSecret string
		CorsOrigin    string
		PollInterval  time.Duration
		PollTimeout   time.Duration
	}

	ProgressConfig struct {
		PushInterval time.Duration
	}

	RateLimitConfig struct {
		Requests int
		Window   time.Duration
	}

	Config struct {
		Env              string
		AppName          string
		Build            string
		Debug            bool
		TestMode         bool
		WorkDir          string
		SecretKey        string
		FrontendBaseURL  string
		defaultFromEmail string
		RollbarToken     string
		SendgridApiKey   string

		Server    ServerConfig
		Database  DatabaseConfig
		Redis     RedisConfig
		Storage   StorageConfig
		Stripe    StripeConfig
		Mux       MuxConfig
		Progress  ProgressConfig
		RateLimit RateLimitConfig
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	if addr.Name == "" {
		addr.Name = c.AppName
	}
	return *addr
}

// NewConfig reads the configuration from (in order of precedence):
// env vars prefixed with $ENV, config/.env.<env> and defaults.
func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	setDefaults(v, env)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "stat %s", dotEnvPath)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:              env,
		AppName:          v.GetString("appName"),
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         env == "TEST",
		WorkDir:          wd,
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  strings.TrimSuffix(v.GetString("frontendBaseURL"), "/"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetString("server.port"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			ReadTimeout:     v.GetDuration("server.readTimeout"),
			WriteTimeout:    v.GetDuration("server.writeTimeout"),
			JWTAudience:     v.GetString("server.jwtAudience"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			MaxOpenConns:  v.GetInt("database.maxOpenConns"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Storage: StorageConfig{
			Backend:       v.GetString("storage.backend"),
			DiskRoot:      v.GetString("storage.diskRoot"),
			PublicBaseURL: strings.TrimSuffix(v.GetString("storage.publicBaseURL"), "/"),
			GCSProject:    v.GetString("storage.gcsProject"),
			GCSBucketBase: v.GetString("storage.gcsBucketBase"),
			GCSCredsFile:  v.GetString("storage.gcsCredsFile"),
		},
		Stripe: StripeConfig{
			SecretKey:     v.GetString("stripe.secretKey"),
			WebhookSecret: v.GetString("stripe.webhookSecret"),
			Currency:      strings.ToLower(v.GetString("stripe.currency")),
		},
		Mux: MuxConfig{
			TokenID:       v.GetString("mux.tokenID"),
			TokenSecret:   v.GetString("mux.tokenSecret"),
			WebhookSecret: v.GetString("mux.webhookSecret"),
			CorsOrigin:    v.GetString("mux.corsOrigin"),
			PollInterval:  v.GetDuration("mux.pollInterval"),
			PollTimeout:   v.GetDuration("mux.pollTimeout"),
		},
		Progress: ProgressConfig{
			PushInterval: v.GetDuration("progress.pushInterval"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("rateLimit.requests"),
			Window:   v.GetDuration("rateLimit.window"),
		},
	}
	if !conf.Debug && conf.SecretKey == insecureSecretKey {
		return nil, errors.New("secretKey must be set outside of debug mode")
	}
	return conf, nil
}

const insecureSecretKey = "dev-secret-f8a1c3d2-change-me"

func setDefaults(v *viper.Viper, env string) {
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("appName", "Skolar")
	v.SetDefault("build", "dev")
	v.SetDefault("secretKey", insecureSecretKey)
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "Skolar <noreply@localhost>")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.debugHost", "localhost:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.readTimeout", 10*time.Second)
	v.SetDefault("server.writeTimeout", 30*time.Second)
	v.SetDefault("server.jwtAudience", "authenticated")

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "skolar")
	v.SetDefault("database.user", "skolar")
	v.SetDefault("database.password", "skolar")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", env == "DEV" || env == "TEST")
	v.SetDefault("database.maxOpenConns", 25)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.backend", "disk")
	v.SetDefault("storage.diskRoot", filepath.Join(os.TempDir(), "skolar"))
	v.SetDefault("storage.publicBaseURL", "http://localhost:8000/media")
	v.SetDefault("storage.gcsProject", "")
	v.SetDefault("storage.gcsBucketBase", "")
	v.SetDefault("storage.gcsCredsFile", "")

	v.SetDefault("stripe.secretKey", "")
	v.SetDefault("stripe.webhookSecret", "")
	v.SetDefault("stripe.currency", "thb")

	v.SetDefault("mux.tokenID", "")
	v.SetDefault("mux.tokenSecret", "")
	v.SetDefault("mux.webhookSecret", "")
	v.SetDefault("mux.corsOrigin", "*")
	v.SetDefault("mux.pollInterval", 2*time.Second)
	v.SetDefault("mux.pollTimeout", 2*time.Minute)

	v.SetDefault("progress.pushInterval", 5*time.Second)

	v.SetDefault("rateLimit.requests", 20)
	v.SetDefault("rateLimit.window", time.Minute)
}
