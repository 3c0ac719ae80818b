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

type Config struct {
	AppName          string
	Env              string // DEV (local; default), TEST, QA, PROD
	Build            string
	Debug            bool
	TestMode         bool
	WorkDir          string
	RollbarToken     string
	SendgridAPIKey   string
	DefaultFromEmail mail.Address

	API struct {
		BaseURL string
		Timeout time.Duration
	}

	Session struct {
		Backend string // file, memory, redis
		File    string
	}

	Redis struct {
		URL    string
		Prefix string
	}

	Sandbox struct {
		Address            string
		SecretKey          string
		JWTExpirationDelta time.Duration
		Seed               bool
	}
}

func newViper() *viper.Viper {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Masomo")
	v.SetDefault("build", "dev")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("apiBaseUrl", "http://localhost:8000")
	v.SetDefault("apiTimeout", 15*time.Second)
	v.SetDefault("sessionBackend", "file")
	v.SetDefault("sessionFile", filepath.Join(userConfigDir(), "masomo", "session.json"))
	v.SetDefault("redisUrl", "redis://localhost:6379/0")
	v.SetDefault("redisPrefix", "masomo:session:")
	v.SetDefault("sandboxAddress", ":8000")
	v.SetDefault("sandboxSecretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("sandboxJwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("sandboxSeed", true)
	return v
}

// NewConfig loads the configuration from the environment (and config/.env.<env> if it exists).
func NewConfig() *Config {
	v := newViper()

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName:        v.GetString("appName"),
		Env:            env,
		Build:          v.GetString("build"),
		Debug:          v.GetBool("debug"),
		TestMode:       v.GetBool("testMode"),
		WorkDir:        wd,
		RollbarToken:   v.GetString("rollbarToken"),
		SendgridAPIKey: v.GetString("sendgridApiKey"),
	}

	from, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}
	conf.DefaultFromEmail = *from

	conf.API.BaseURL = strings.TrimRight(v.GetString("apiBaseUrl"), "/")
	conf.API.Timeout = v.GetDuration("apiTimeout")
	conf.Session.Backend = CleanString(v.GetString("sessionBackend"), true /* lower */)
	conf.Session.File = v.GetString("sessionFile")
	conf.Redis.URL = v.GetString("redisUrl")
	conf.Redis.Prefix = v.GetString("redisPrefix")
	conf.Sandbox.Address = v.GetString("sandboxAddress")
	conf.Sandbox.SecretKey = v.GetString("sandboxSecretKey")
	conf.Sandbox.JWTExpirationDelta = v.GetDuration("sandboxJwtExpirationDelta")
	conf.Sandbox.Seed = v.GetBool("sandboxSeed")
	return conf
}

func userConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	return os.TempDir()
}
