package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app       = "interviewer"
	envPrefix = "INTERVIEWER"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	AI        AIConfig        `mapstructure:"ai"`
	Session   SessionConfig   `mapstructure:"session"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Address        string     `mapstructure:"address" validate:"required"`
	MaxUploadBytes int64      `mapstructure:"max-upload-bytes" validate:"min=1024"`
	CORS           CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed-origins"`
}

type AIConfig struct {
	Provider     string        `mapstructure:"provider" validate:"oneof=gemini groq"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"min=1s"`
	MaxLogLength int           `mapstructure:"max-log-length" validate:"min=0"`
	Gemini       GeminiConfig  `mapstructure:"gemini"`
	Groq         GroqConfig    `mapstructure:"groq"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries" validate:"min=1,max=10"`
}

type GroqConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	BaseURL    string `mapstructure:"base-url" validate:"omitempty,url"`
	Model      string `mapstructure:"model"`
}

type SessionConfig struct {
	Backend     string        `mapstructure:"backend" validate:"oneof=memory valkey"`
	TTL         time.Duration `mapstructure:"ttl" validate:"min=0s"`
	MaxSessions int           `mapstructure:"max-sessions" validate:"min=1"`
	DefaultKey  string        `mapstructure:"default-key" validate:"required"`
	Valkey      ValkeyConfig  `mapstructure:"valkey"`
}

type ValkeyConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	PasswordFile string        `mapstructure:"password-file"`
	KeyPrefix    string        `mapstructure:"key-prefix"`
	LockPrefix   string        `mapstructure:"lock-prefix"`
	LockTTL      time.Duration `mapstructure:"lock-ttl" validate:"min=1s"`
}

type LogConfig struct {
	JSON  bool          `mapstructure:"json"`
	Debug bool          `mapstructure:"debug"`
	File  LogFileConfig `mapstructure:"file"`
}

type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max-size-mb" validate:"min=0"`
	MaxBackups int    `mapstructure:"max-backups" validate:"min=0"`
	MaxAgeDays int    `mapstructure:"max-age-days" validate:"min=0"`
	Compress   bool   `mapstructure:"compress"`
}

type TelemetryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:          app,
		Short:        "interviewer runs AI mock interviews driven by a voice agent or the terminal",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is interviewer.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("log.debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("log.json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.max-upload-bytes", 10<<20)
	v.SetDefault("server.cors.allowed-origins", []string{"*"})

	v.SetDefault("ai.provider", "groq")
	v.SetDefault("ai.timeout", 30*time.Second)
	v.SetDefault("ai.max-log-length", 200)
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")
	v.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	v.SetDefault("ai.gemini.max-retries", 3)
	v.SetDefault("ai.groq.api-key", "")
	v.SetDefault("ai.groq.api-key-file", "")
	v.SetDefault("ai.groq.base-url", "https://api.groq.com/openai/v1")
	v.SetDefault("ai.groq.model", "llama-3.3-70b-versatile")

	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.ttl", 2*time.Hour)
	v.SetDefault("session.max-sessions", 1024)
	v.SetDefault("session.default-key", "default")
	v.SetDefault("session.valkey.address", "")
	v.SetDefault("session.valkey.password", "")
	v.SetDefault("session.valkey.password-file", "")
	v.SetDefault("session.valkey.key-prefix", "interview:session:")
	v.SetDefault("session.valkey.lock-prefix", "interview:lock:")
	v.SetDefault("session.valkey.lock-ttl", 2*time.Minute)

	v.SetDefault("log.json", false)
	v.SetDefault("log.debug", false)
	v.SetDefault("log.file.path", "")
	v.SetDefault("log.file.max-size-mb", 10)
	v.SetDefault("log.file.max-backups", 3)
	v.SetDefault("log.file.max-age-days", 28)
	v.SetDefault("log.file.compress", true)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.dir", "logs")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
}

func initConfig() {
	// A missing .env file is fine; everything can come from the environment or the config file.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env file: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	return loadConfig(viper.GetViper())
}

func loadConfig(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if config.Session.Backend == "valkey" && strings.TrimSpace(config.Session.Valkey.Address) == "" {
		return nil, errors.New("invalid config: session.valkey.address is required for the valkey backend")
	}

	// The lock lease must outlive one gateway call.
	if config.Session.Valkey.LockTTL <= config.AI.Timeout {
		return nil, fmt.Errorf("invalid config: session.valkey.lock-ttl (%s) must exceed ai.timeout (%s)",
			config.Session.Valkey.LockTTL, config.AI.Timeout)
	}

	return &config, nil
}
