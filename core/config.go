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

var Conf *Config

type (
	ServerConfig struct {
		Host string
		Port string
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
	}

	CacheConfig struct {
		Path string // sqlite file; ":memory:" for tests
	}

	ClassifierConfig struct {
		Enabled bool
		APIKey  string
		Model   string
		Timeout time.Duration
	}

	// FeedbackConfig carries the content/duplicate heuristic thresholds.
	// The defaults are hand-tuned; they are config fields so deployments can
	// adjust them without a rebuild.
	FeedbackConfig struct {
		MinLength           int
		MinSentences        int
		MaxRunLength        int
		MaxEmojiDensity     float64
		MinUniqueSentences  float64
		DuplicateSimilarity float64
	}

	Config struct {
		Debug    bool
		TestMode bool
		Env      string
		AppName  string
		Build    string
		WorkDir  string

		DefaultFromEmailAddr string
		SendgridApiKey       string
		RollbarToken         string
		FrontendBaseURL      string

		Server     ServerConfig
		Database   DatabaseConfig
		Cache      CacheConfig
		Classifier ClassifierConfig
		Feedback   FeedbackConfig

		// GrowthTargets maps a growth level to the floored total score
		// required for "achieved" status.
		GrowthTargets map[int]int
	}
)

func (c ServerConfig) Address() string   { return c.Host + ":" + c.Port }
func (c DatabaseConfig) Address() string { return c.Host + ":" + c.Port }

func (conf *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.DefaultFromEmailAddr)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: "noreply@localhost"}
	}
	return *addr
}

// GrowthTarget returns the achievement threshold for a growth level.
// Unknown levels fall back to the level itself.
func (conf *Config) GrowthTarget(level int) int {
	if target, ok := conf.GrowthTargets[level]; ok {
		return target
	}
	return level
}

func init() {
	Conf = loadConfig()
}

func loadConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Pyeongga")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8000")
	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.name", "pyeongga")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("cache.path", filepath.Join(os.TempDir(), "pyeongga-cache.db"))
	v.SetDefault("classifier.enabled", false)
	v.SetDefault("classifier.model", "gemini-2.0-flash")
	v.SetDefault("classifier.timeout", 15*time.Second)
	v.SetDefault("feedback.minLength", 30)
	v.SetDefault("feedback.minSentences", 2)
	v.SetDefault("feedback.maxRunLength", 5)
	v.SetDefault("feedback.maxEmojiDensity", .10)
	v.SetDefault("feedback.minUniqueSentences", .70)
	v.SetDefault("feedback.duplicateSimilarity", .85)

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	testMode := false
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		testMode = true
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

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

	return &Config{
		Debug:                v.GetBool("debug"),
		TestMode:             testMode,
		Env:                  env,
		AppName:              v.GetString("appName"),
		Build:                v.GetString("build"),
		WorkDir:              wd,
		DefaultFromEmailAddr: v.GetString("defaultFromEmail"),
		SendgridApiKey:       v.GetString("sendgridApiKey"),
		RollbarToken:         v.GetString("rollbarToken"),
		FrontendBaseURL:      v.GetString("frontendBaseURL"),
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetString("server.port"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Cache: CacheConfig{
			Path: v.GetString("cache.path"),
		},
		Classifier: ClassifierConfig{
			Enabled: v.GetBool("classifier.enabled"),
			APIKey:  v.GetString("classifier.apiKey"),
			Model:   v.GetString("classifier.model"),
			Timeout: v.GetDuration("classifier.timeout"),
		},
		Feedback: FeedbackConfig{
			MinLength:           v.GetInt("feedback.minLength"),
			MinSentences:        v.GetInt("feedback.minSentences"),
			MaxRunLength:        v.GetInt("feedback.maxRunLength"),
			MaxEmojiDensity:     v.GetFloat64("feedback.maxEmojiDensity"),
			MinUniqueSentences:  v.GetFloat64("feedback.minUniqueSentences"),
			DuplicateSimilarity: v.GetFloat64("feedback.duplicateSimilarity"),
		},
		GrowthTargets: map[int]int{1: 1, 2: 2, 3: 3, 4: 4},
	}
}
