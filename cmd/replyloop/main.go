package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:           "replyloop",
		Short:         "Policy-gated commerce action dispatch for support automation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.replyloop/config.yaml)")
	cobra.OnInitialize(initConfig)

	root.AddCommand(newServeCmd())
	root.AddCommand(newDispatchCmd())
	root.AddCommand(newDecideCmd())
	root.AddCommand(newConnectCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	if strings.TrimSpace(cfgFile) != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil && strings.TrimSpace(home) != "" {
			viper.AddConfigPath(filepath.Join(home, ".replyloop"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}
	viper.SetEnvPrefix("REPLYLOOP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "warning: could not read config:", err)
		}
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(viper.GetString("log.level"))) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(viper.GetString("log.format"), "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
