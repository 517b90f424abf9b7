// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Forked from github.com/zondax/ledger-go - NO GOLEM DEPENDENCY
// Licensed under the Apache License, Version 2.0

package ledger_transport

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var log *zap.SugaredLogger

func init() {
	initLogger()
}

func initLogger() {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.Level = zap.NewAtomicLevelAt(parseLevel(getLogLevel()))

	logger, _ := config.Build()
	log = logger.Sugar()
}

func getLogLevel() string {
	level := os.Getenv("LEDGER_LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	return strings.ToLower(level)
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// ConfigureLogger replaces the package logger. The returned logger should be
// synced by the caller before exit.
func ConfigureLogger(c LogConfig) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	var encoder zapcore.Encoder
	if strings.ToLower(c.Format) == "json" {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	var ws zapcore.WriteSyncer = zapcore.AddSync(os.Stderr)
	if c.File != "" {
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    max(c.MaxSizeMB, 1),
			MaxBackups: max(c.MaxBackups, 1),
		})
	}

	logger := zap.New(zapcore.NewCore(encoder, ws, zap.NewAtomicLevelAt(parseLevel(c.Level))), zap.AddCaller())
	SetLogger(logger)
	return logger
}

// SetLogger routes package logging to logger.
func SetLogger(logger *zap.Logger) {
	log = logger.Sugar()
}
