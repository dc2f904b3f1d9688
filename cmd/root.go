package cmd

import (
	"log"
	"strings"
	"time"

	"github.com/spigell/interview-trainer/internal/snapshot"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "interview-trainer"
)

type Config struct {
	Backend      *BackendConfig     `mapstructure:"backend"`
	Interview    *InterviewConfig   `mapstructure:"interview"`
	SnapshotFile string             `mapstructure:"snapshot-file"`
	AutoAdvance  *AutoAdvanceConfig `mapstructure:"auto-advance"`
	AI           *AIConfig          `mapstructure:"ai"`
}

type BackendConfig struct {
	BaseURL   string `mapstructure:"base-url"`
	TokenFile string `mapstructure:"token-file"`
	UserAgent string `mapstructure:"user-agent"`
}

type InterviewConfig struct {
	JobTitle     string   `mapstructure:"job-title"`
	NumQuestions int      `mapstructure:"num-questions"`
	SoftPct      float64  `mapstructure:"soft-pct"`
	InitialLevel int      `mapstructure:"initial-level"`
	Keywords     []string `mapstructure:"keywords"`
	Language     string   `mapstructure:"language"`
}

type AutoAdvanceConfig struct {
	NextDelay     time.Duration `mapstructure:"next-delay"`
	CompleteDelay time.Duration `mapstructure:"complete-delay"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "interview-trainer runs adaptive mock interview sessions from the terminal",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("backend.token-file", "INTERVIEW_TOKEN_FILE"); err != nil {
		log.Fatalf("binding INTERVIEW_TOKEN_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is "+app+".yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("snapshot-file", "", "session snapshot location (default is "+snapshot.DefaultFile+")")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("snapshot-file", rootCmd.PersistentFlags().Lookup("snapshot-file"))
}

func initConfig() {
	// Config is needed only for the run command. The snapshot commands work
	// from flags and defaults alone.
	if runCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}

// snapshotPath resolves the snapshot location from flag, config and
// default, in that order.
func snapshotPath(config *Config) string {
	if path := strings.TrimSpace(viper.GetString("snapshot-file")); path != "" {
		return path
	}
	if config != nil && strings.TrimSpace(config.SnapshotFile) != "" {
		return config.SnapshotFile
	}

	return snapshot.DefaultFile
}
