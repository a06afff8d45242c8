package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rconsole-project/rconsole/internal/config"
	"github.com/rconsole-project/rconsole/internal/protocol"
	"github.com/rconsole-project/rconsole/internal/rcon"
	"github.com/rconsole-project/rconsole/internal/util"
)

var (
	flagConfigDir string
	flagHost      string
	flagPort      int
	flagPassword  string
	flagTimeout   int
	flagEncoding  string
	flagLogLevel  string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           AppName,
	Short:         "Remote console client for Source-style game servers",
	Version:       AppVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initApp(cmd)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfigDir, "config", config.DefaultConfigDir, "configuration directory")
	pf.StringVar(&flagHost, "host", "", "server host (overrides config)")
	pf.IntVar(&flagPort, "port", 0, "server port (overrides config)")
	pf.StringVar(&flagPassword, "password", "", "server password (overrides config)")
	pf.IntVar(&flagTimeout, "timeout", 0, "response timeout in milliseconds (overrides config)")
	pf.StringVar(&flagEncoding, "encoding", "", "body encoding: ascii, utf8 or latin1 (overrides config)")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level (overrides config)")

	rootCmd.AddCommand(execCmd, consoleCmd, serveCmd)
}

// initApp loads configuration, applies flag overrides and brings the
// logger up. Runs once before any subcommand.
func initApp(cmd *cobra.Command) error {
	var err error
	cfg, err = config.Load(flagConfigDir)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	srv := cfg.GetServerData()
	if flagHost != "" {
		srv.Host = flagHost
	}
	if flagPort != 0 {
		srv.Port = flagPort
	}
	if flagPassword != "" {
		srv.Password = flagPassword
	}
	if flagTimeout != 0 {
		srv.ResponseTimeoutMs = flagTimeout
	}
	if flagEncoding != "" {
		srv.Encoding = flagEncoding
	}
	cfg.SetServerData(srv)

	logging := cfg.GetApplicationData().Logging
	if flagLogLevel != "" {
		logging.Level = flagLogLevel
	}
	logCfg := util.LogConfig{
		Level:      logging.Level,
		Directory:  logging.Directory,
		MaxSizeMB:  logging.MaxSizeMB,
		MaxBackups: logging.MaxBackups,
		Console:    true,
	}
	if err := util.InitLogger(logCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		return fmt.Errorf("configuration validation failed")
	}

	return nil
}

// sessionOptions maps the loaded configuration onto session options.
// In the config file a zero packet size or timeout means "disabled";
// the session uses explicit sentinels for that.
func sessionOptions() rcon.Options {
	srv := cfg.GetServerData()

	opts := rcon.Options{
		Host:           srv.Host,
		Port:           srv.Port,
		Password:       srv.Password,
		ConnectTimeout: time.Duration(srv.ConnectTimeoutSec) * time.Second,
	}

	if enc, err := protocol.ParseEncoding(srv.Encoding); err == nil {
		opts.Encoding = enc
	}

	if srv.MaxPacketSize == 0 {
		opts.MaxPacketSize = rcon.NoPacketSizeLimit
	} else {
		opts.MaxPacketSize = srv.MaxPacketSize
	}

	if srv.ResponseTimeoutMs == 0 {
		opts.ResponseTimeout = rcon.NoResponseTimeout
	} else {
		opts.ResponseTimeout = time.Duration(srv.ResponseTimeoutMs) * time.Millisecond
	}

	return opts
}
