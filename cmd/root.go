package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/sitekit/internal/config"
	"github.com/conneroisu/sitekit/internal/logging"
)

const (
	envPrefix         = "SITEKIT"
	envConfigFile     = "SITEKIT_CONFIG_FILE"
	defaultConfigName = ".sitekit"
	defaultEnvFile    = ".env"
)

var (
	cfgFile string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "sitekit",
	Short: "Contact form, conversion tracking and page behaviour for a marketing site",
	Long: `sitekit serves a marketing page whose contact form submits to a
spreadsheet webhook, a form relay and an ad conversion API, fires the ad
pixel's Lead event on success, falls back through logo formats, and scrolls
to anchors below a fixed header.

Quick Start:
  sitekit serve                     Start the site server
  sitekit submit --name ... --email ... --message ...
  sitekit config validate           Check configuration before deploying`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .sitekit.yml, can also use SITEKIT_CONFIG_FILE env var)")
	flags.StringVar(&envFile, "env-file", "", "dotenv file to preload (default is .env when present)")
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")

	_ = viper.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", flags.Lookup("log-format"))
}

// initConfig wires the config sources into the global viper instance.
// The config file is chosen from --config, then SITEKIT_CONFIG_FILE, then
// .sitekit.yml in the working directory.
func initConfig() {
	if err := loadDotEnv(envFile); err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if path := os.Getenv(envConfigFile); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(defaultConfigName)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := config.BindEnv(viper.GetViper()); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: binding environment:", err)
	}

	// A missing file is fine; defaults and env vars still apply.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadDotEnv preloads path, or .env when path is empty. Variables already
// in the environment win. Only an explicitly named file must exist.
func loadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

// loadConfig resolves the configuration for a command.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the command logger from cfg. With logging.file set the
// output goes to a rotated file and is mirrored to errOut.
func newLogger(cfg *config.Config, errOut io.Writer) (logging.Logger, func() error, error) {
	lc := &logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: cfg.Logging.Format,
		Output: errOut,
	}
	if cfg.Logging.File == "" {
		return logging.NewLogger(lc), func() error { return nil }, nil
	}

	fl, err := logging.NewFileLogger(lc, cfg.Logging.File, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   true,
	}, errOut)
	if err != nil {
		return nil, nil, err
	}
	return fl, fl.Close, nil
}
