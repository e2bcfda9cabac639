package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/config"
	"github.com/sirupsen/logrus"
)

// parseFlags parses the supported flags and returns the values supplied to these flags.
func parseFlags(args []string) (configFile string, log string, logLevel string, err error) {
	f := flag.FlagSet{}

	f.StringVar(&configFile, "config", "", "path to the config file to use, json or toml")
	f.StringVar(&log, "log", "", "path to the log directory to write to")
	f.StringVar(&logLevel, "loglevel", "info", "log level for the logger")
	err = f.Parse(args)

	return
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	configFile, log, logLevel, err := parseFlags(os.Args[1:])
	if err != nil {
		logger.WithError(err).Fatal("error parsing flags")
	}

	ll, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logger.WithError(err).Error("Couldn't parse log level, defaulting to info")
		ll = logrus.InfoLevel
	}

	logger.SetLevel(ll)

	if log != "" {
		logFile, err := os.OpenFile(filepath.Join(log, "server.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err == nil {
			defer logFile.Close()
			logger.Out = logFile
		} else {
			logger.WithError(err).Warning("could not open log file for writing")
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		logger.WithError(err).Fatal("error loading config")
	}

	d, err := newDaemon(cfg, configFile, logger.WithField("user", cfg.LocalUserName))
	if err != nil {
		logger.WithError(err).Fatal("error creating session daemon")
	}

	// Sessions are torn down on SIGINT and on the graceful stop signal
	// (SIGTERM) sent by process managers.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = d.run(ctx)

	switch {
	case errors.Is(err, errShutdownRequested):
		logger.Info("stopped on backend request")
	case err != nil:
		logger.WithError(err).Error("session daemon stopped")
		os.Exit(1)
	}
}
