package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Conf is the process wide configuration, loaded once at init.
var Conf = NewConfig()

type (
	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		DisableReqLogs            bool
	}

	DatabaseConfig struct {
		Engine        string // postgres | memory
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	BlobConfig struct {
		Backend         string // disk | oss
		Dir             string
		BaseURL         string
		SignedURLExpiry time.Duration
		MaxUploadSize   int64
		OSSEndpoint     string
		OSSAccessKey    string
		OSSSecretKey    string
		OSSBucket       string
	}

	QuizGenConfig struct {
		Backend   string // local | openai
		BaseURL   string
		APIKey    string
		Model     string
		Questions int
		Timeout   time.Duration
	}

	MatchConfig struct {
		Strategy string // recommended | quick
	}

	SessionConfig struct {
		Timezone string // IANA name session dates and times are read in, empty for the server's zone
	}

	TodoConfig struct {
		CompletionActor string // creator | caller
	}

	CacheConfig struct {
		TTL             time.Duration
		CleanupInterval time.Duration
	}

	Config struct {
		Env                       string
		Build                     string
		Debug                     bool
		TestMode                  bool
		AppName                   string
		SecretKey                 string
		FrontendBaseURL           string
		DefaultFromEmail          mail.Address
		PasswordResetTimeoutDelta time.Duration
		SendgridAPIKey            string
		RollbarToken              string
		WorkDir                   string

		Server   ServerConfig
		Database DatabaseConfig
		Blob     BlobConfig
		QuizGen  QuizGenConfig
		Match    MatchConfig
		Session  SessionConfig
		Todo     TodoConfig
		Cache    CacheConfig
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

// NewConfig reads the configuration from defaults, `config/.env.<env>` and the environment, in that order.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "StudyHub")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromName", "StudyHub")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "studyhub")
	v.SetDefault("database.user", "studyhub")
	v.SetDefault("database.password", "studyhub")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("blob.backend", "disk")
	v.SetDefault("blob.dir", "media")
	v.SetDefault("blob.baseURL", "http://localhost:8000/api/files/signed")
	v.SetDefault("blob.signedURLExpiry", time.Hour)
	v.SetDefault("blob.maxUploadSize", int64(5<<20))
	v.SetDefault("blob.ossEndpoint", "")
	v.SetDefault("blob.ossAccessKey", "")
	v.SetDefault("blob.ossSecretKey", "")
	v.SetDefault("blob.ossBucket", "")

	v.SetDefault("quizgen.backend", "local")
	v.SetDefault("quizgen.baseURL", "https://api.openai.com")
	v.SetDefault("quizgen.apiKey", "")
	v.SetDefault("quizgen.model", "gpt-4o-mini")
	v.SetDefault("quizgen.questions", 5)
	v.SetDefault("quizgen.timeout", 60*time.Second)

	v.SetDefault("match.strategy", "recommended")
	v.SetDefault("session.timezone", "")
	v.SetDefault("todo.completionActor", "creator")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.cleanupInterval", 10*time.Minute)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("database.engine", "memory")
		v.SetDefault("server.disableReqLogs", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		AppName:         v.GetString("appName"),
		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		DefaultFromEmail: mail.Address{
			Name:    v.GetString("defaultFromName"),
			Address: v.GetString("defaultFromEmail"),
		},
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		SendgridAPIKey:            v.GetString("sendgridApiKey"),
		RollbarToken:              v.GetString("rollbarToken"),
		WorkDir:                   wd,
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			DisableReqLogs:            v.GetBool("server.disableReqLogs"),
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
		},
		Blob: BlobConfig{
			Backend:         v.GetString("blob.backend"),
			Dir:             v.GetString("blob.dir"),
			BaseURL:         v.GetString("blob.baseURL"),
			SignedURLExpiry: v.GetDuration("blob.signedURLExpiry"),
			MaxUploadSize:   v.GetInt64("blob.maxUploadSize"),
			OSSEndpoint:     v.GetString("blob.ossEndpoint"),
			OSSAccessKey:    v.GetString("blob.ossAccessKey"),
			OSSSecretKey:    v.GetString("blob.ossSecretKey"),
			OSSBucket:       v.GetString("blob.ossBucket"),
		},
		QuizGen: QuizGenConfig{
			Backend:   v.GetString("quizgen.backend"),
			BaseURL:   v.GetString("quizgen.baseURL"),
			APIKey:    v.GetString("quizgen.apiKey"),
			Model:     v.GetString("quizgen.model"),
			Questions: v.GetInt("quizgen.questions"),
			Timeout:   v.GetDuration("quizgen.timeout"),
		},
		Match:   MatchConfig{Strategy: v.GetString("match.strategy")},
		Session: SessionConfig{Timezone: v.GetString("session.timezone")},
		Todo:    TodoConfig{CompletionActor: v.GetString("todo.completionActor")},
		Cache: CacheConfig{
			TTL:             v.GetDuration("cache.ttl"),
			CleanupInterval: v.GetDuration("cache.cleanupInterval"),
		},
	}
}
