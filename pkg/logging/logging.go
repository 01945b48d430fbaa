// Copyright 2026 The Spv Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logging wires the supervisor's operational logging: structured,
// per-component loggers backed by zap, with a rotated file sink for
// daemonized runs and a console sink for foreground ones. This logs the
// supervisor's own activity (starts, crashes, probe results, API errors);
// it never carries captured child stdout/stderr, which stays in the
// in-memory Log Buffer instead.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the rotated file sink. A zero value disables file
// logging and logs only to the console.
type Options struct {
	Level      string // debug|info|warn|error; defaults to info
	FilePath   string
	FileMaxMB  int // defaults to 10
	MaxBackups int // defaults to 7
	MaxAgeDays int // defaults to 7
	Compress   bool
	Console    bool // also write to stderr
}

func (o Options) level() zapcore.Level {
	var lvl zapcore.Level
	if o.Level == "" || lvl.UnmarshalText([]byte(o.Level)) != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// New builds a *zap.SugaredLogger tagged with component, per Options.
func New(component string, opts Options) *zap.SugaredLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	level := opts.level()

	if opts.FilePath != "" {
		writer := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    nonZero(opts.FileMaxMB, 10),
			MaxBackups: nonZero(opts.MaxBackups, 7),
			MaxAge:     nonZero(opts.MaxAgeDays, 7),
			Compress:   opts.Compress,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(writer), level))
	}

	if opts.Console || len(cores) == 0 {
		consoleCfg := encCfg
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleCfg), zapcore.AddSync(os.Stderr), level))
	}

	core := zapcore.NewTee(cores...)
	logger := zap.New(core).Named(component)
	return logger.Sugar()
}

func nonZero(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
