// Package logging builds the zap loggers shared by the binaries.
package logging

import (
	"context"
	"fmt"

	gcl "cloud.google.com/go/logging"
	"github.com/jonstaryuk/gcloudzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const LogID = "lorasniffer"

type Options struct {
	Debug bool
	// File, if set, sends JSON logs to a rotated file instead of stderr.
	File string
	// GCloudProject, if set, sends logs to Stackdriver under LogID.
	GCloudProject string
}

func level(debug bool) zapcore.Level {
	if debug {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

func New(opts Options) (*zap.Logger, error) {
	switch {
	case opts.GCloudProject != "":
		return newCloud(opts.GCloudProject, level(opts.Debug))
	case opts.File != "":
		return zap.New(fileCore(opts.File, level(opts.Debug))), nil
	case opts.Debug:
		return zap.NewDevelopment()
	default:
		return zap.NewProduction()
	}
}

func fileCore(path string, lvl zapcore.Level) zapcore.Core {
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
	})
	return zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), w, lvl)
}

// newCloud logs to stderr as JSON and to Cloud Logging. Errors from the
// Cloud Logging client itself only go to stderr.
func newCloud(project string, lvl zapcore.Level) (*zap.Logger, error) {
	cfg := cloudConfig(lvl)
	stderr, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	client, err := gcl.NewClient(context.Background(), project)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloud Logging client: %w", err)
	}
	client.OnError = func(err error) {
		stderr.Warn("Cloud Logging failed", zap.Error(err))
	}
	log, err := gcloudzap.New(cfg, client, LogID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create Stackdriver logger: %w", err)
	}
	return log, nil
}

func cloudConfig(lvl zapcore.Level) zap.Config {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg
}
