package core

import (
	"fmt"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName         string
		Env             string // DEV (local; default), TEST, QA, PROD
		Build           string
		Debug           bool
		TestMode        bool
		SecretKey       string
		FrontendBaseURL string
		RollbarToken    string

		Server   ServerConfig
		Database DatabaseConfig
		Email    EmailConfig
		Quiz     QuizConfig
		AI       AIConfig
		Storage  StorageConfig
		Notify   NotifyConfig
	}

	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		PasswordResetTimeoutDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string // "postgres" | "memory"
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	EmailConfig struct {
		DefaultFrom    string
		SendgridApiKey string
	}

	QuizConfig struct {
		DefaultSize     int
		PassRatio       float64
		XPPerCorrect    int
		PerfectBonus    int
		SessionTTL      time.Duration
		GeneratedTTL    time.Duration
		GeneratedMaxSet int
	}

	AIConfig struct {
		APIKey  string
		BaseURL string
		Model   string
		Timeout time.Duration
	}

	StorageConfig struct {
		Backend           string // "local" | "s3"
		LocalPath         string
		PublicBaseURL     string
		S3Endpoint        string
		S3Region          string
		S3Bucket          string
		S3AccessKeyID     string
		S3SecretAccessKey string
		S3UsePathStyle    bool
	}

	NotifyConfig struct {
		TelegramToken       string
		TelegramAdminChatID int64
	}
)

func (dbc DatabaseConfig) Address() string {
	return net.JoinHostPort(dbc.Host, strconv.Itoa(dbc.Port))
}

func (ec EmailConfig) DefaultFromEmail(appName string) mail.Address {
	return mail.Address{Name: appName, Address: ec.DefaultFrom}
}

// AIEnabled reports whether a question generator can be built from this config.
func (c *Config) AIEnabled() bool {
	return c.AI.APIKey != ""
}

// NewConfig loads the app configuration from defaults, an optional `config/.env.<env>` file
// and environment variables prefixed with `SQ_` (e.g. SQ_DATABASE_HOST).
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(configDir(), ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			panic(fmt.Sprintf("config.godotenv(%s): %v", dotEnvPath, err))
		}
	}

	v.SetEnvPrefix("SQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{
		AppName:         v.GetString("appName"),
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		RollbarToken:    v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			PasswordResetTimeoutDelta: v.GetDuration("server.passwordResetTimeoutDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Email: EmailConfig{
			DefaultFrom:    v.GetString("email.defaultFrom"),
			SendgridApiKey: v.GetString("email.sendgridApiKey"),
		},
		Quiz: QuizConfig{
			DefaultSize:     v.GetInt("quiz.defaultSize"),
			PassRatio:       v.GetFloat64("quiz.passRatio"),
			XPPerCorrect:    v.GetInt("quiz.xpPerCorrect"),
			PerfectBonus:    v.GetInt("quiz.perfectBonus"),
			SessionTTL:      v.GetDuration("quiz.sessionTTL"),
			GeneratedTTL:    v.GetDuration("quiz.generatedTTL"),
			GeneratedMaxSet: v.GetInt("quiz.generatedMaxSet"),
		},
		AI: AIConfig{
			APIKey:  v.GetString("ai.apiKey"),
			BaseURL: v.GetString("ai.baseURL"),
			Model:   v.GetString("ai.model"),
			Timeout: v.GetDuration("ai.timeout"),
		},
		Storage: StorageConfig{
			Backend:           v.GetString("storage.backend"),
			LocalPath:         v.GetString("storage.localPath"),
			PublicBaseURL:     v.GetString("storage.publicBaseURL"),
			S3Endpoint:        v.GetString("storage.s3Endpoint"),
			S3Region:          v.GetString("storage.s3Region"),
			S3Bucket:          v.GetString("storage.s3Bucket"),
			S3AccessKeyID:     v.GetString("storage.s3AccessKeyID"),
			S3SecretAccessKey: v.GetString("storage.s3SecretAccessKey"),
			S3UsePathStyle:    v.GetBool("storage.s3UsePathStyle"),
		},
		Notify: NotifyConfig{
			TelegramToken:       v.GetString("notify.telegramToken"),
			TelegramAdminChatID: v.GetInt64("notify.telegramAdminChatID"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("appName", "ScienceQuest")
	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("secretKey", "k2v$8n!q0z7m#r4t&w1e9y3u6i5o-p=a_s+d)f(g*h")
	v.SetDefault("frontendBaseURL", "http://localhost:5173")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 30*24*time.Hour)
	v.SetDefault("server.passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "sciencequest")
	v.SetDefault("database.user", "sciencequest")
	v.SetDefault("database.password", "sciencequest")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("email.defaultFrom", "noreply@sciencequest.local")
	v.SetDefault("email.sendgridApiKey", "")

	v.SetDefault("quiz.defaultSize", 5)
	v.SetDefault("quiz.passRatio", 0.7)
	v.SetDefault("quiz.xpPerCorrect", 10)
	v.SetDefault("quiz.perfectBonus", 20)
	v.SetDefault("quiz.sessionTTL", time.Hour)
	v.SetDefault("quiz.generatedTTL", 24*time.Hour)
	v.SetDefault("quiz.generatedMaxSet", 512)

	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.baseURL", "https://generativelanguage.googleapis.com/v1beta/openai/")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.timeout", 30*time.Second)

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.localPath", filepath.Join(os.TempDir(), "sciencequest", "media"))
	v.SetDefault("storage.publicBaseURL", "/media")
	v.SetDefault("storage.s3Endpoint", "")
	v.SetDefault("storage.s3Region", "us-east-1")
	v.SetDefault("storage.s3Bucket", "sciencequest")
	v.SetDefault("storage.s3AccessKeyID", "")
	v.SetDefault("storage.s3SecretAccessKey", "")
	v.SetDefault("storage.s3UsePathStyle", true)

	v.SetDefault("notify.telegramToken", "")
	v.SetDefault("notify.telegramAdminChatID", 0)
}

func configDir() string {
	if dir := os.Getenv("SQ_CONFIG_DIR"); dir != "" {
		return dir
	}
	wd, err := os.Getwd()
	if err != nil {
		return "config"
	}
	return filepath.Join(wd, "config")
}

// NewTestConfig returns a Config suitable for unit tests: no external services, fast expirations.
func NewTestConfig() *Config {
	conf := NewConfig()
	conf.Env = "TEST"
	conf.TestMode = true
	conf.Debug = false
	conf.SecretKey = "secret"
	conf.Database.Engine = "memory"
	conf.Server.JWTExpirationDelta = 10 * time.Minute
	conf.Server.JWTRefreshExpirationDelta = 4 * time.Hour
	conf.AI.APIKey = ""
	conf.Notify.TelegramToken = ""
	conf.Storage.Backend = "local"
	conf.Storage.LocalPath = filepath.Join(os.TempDir(), "sciencequest-test", "media")
	return conf
}
