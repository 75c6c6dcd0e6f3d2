// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a structured logger. Values are passed as alternating keys and values.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, err error, keysAndValues ...interface{})
	Errorw(msg string, err error, keysAndValues ...interface{})
	WithValues(keysAndValues ...interface{}) Logger
	WithName(name string) Logger
}

type Config struct {
	JSON  bool   `yaml:"json"`
	Level string `yaml:"level,omitempty"`
	// sample logs at most a few entries per second for repeated messages
	Sample bool `yaml:"sample"`
}

var (
	mu            sync.RWMutex
	defaultLogger Logger = FromZap(zap.NewNop())
)

func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

func SetLogger(l Logger) {
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
}

func InitProduction(logLevel string) {
	InitFromConfig(Config{JSON: true, Level: logLevel}, "livekit")
}

func InitDevelopment(logLevel string) {
	InitFromConfig(Config{Level: logLevel}, "livekit")
}

// InitFromConfig replaces the default logger. valid levels: debug, info, warn, error, fatal, panic
func InitFromConfig(conf Config, name string) {
	var config zap.Config
	if conf.JSON {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}
	// an empty level reads as info
	lvl := zapcore.InfoLevel
	if err := lvl.UnmarshalText([]byte(conf.Level)); err == nil {
		config.Level = zap.NewAtomicLevelAt(lvl)
	}
	if conf.Sample {
		config.Sampling = &zap.SamplingConfig{Initial: 100, Thereafter: 100}
	} else {
		config.Sampling = nil
	}

	l, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		return
	}
	zl := FromZap(l)
	if name != "" {
		zl = zl.WithName(name)
	}
	SetLogger(zl)
}

type zapLogger struct {
	zap *zap.SugaredLogger
}

// FromZap wraps an existing zap logger
func FromZap(l *zap.Logger) Logger {
	return &zapLogger{zap: l.Sugar()}
}

func (l *zapLogger) Debugw(msg string, keysAndValues ...interface{}) {
	l.zap.Debugw(msg, keysAndValues...)
}

func (l *zapLogger) Infow(msg string, keysAndValues ...interface{}) {
	l.zap.Infow(msg, keysAndValues...)
}

func (l *zapLogger) Warnw(msg string, err error, keysAndValues ...interface{}) {
	l.zap.Warnw(msg, withError(err, keysAndValues)...)
}

func (l *zapLogger) Errorw(msg string, err error, keysAndValues ...interface{}) {
	l.zap.Errorw(msg, withError(err, keysAndValues)...)
}

func (l *zapLogger) WithValues(keysAndValues ...interface{}) Logger {
	return &zapLogger{zap: l.zap.With(keysAndValues...)}
}

func (l *zapLogger) WithName(name string) Logger {
	return &zapLogger{zap: l.zap.Named(name)}
}

func withError(err error, keysAndValues []interface{}) []interface{} {
	if err == nil {
		return keysAndValues
	}
	return append([]interface{}{"error", err}, keysAndValues...)
}

func Debugw(msg string, keysAndValues ...interface{}) {
	GetLogger().Debugw(msg, keysAndValues...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	GetLogger().Infow(msg, keysAndValues...)
}

func Warnw(msg string, err error, keysAndValues ...interface{}) {
	GetLogger().Warnw(msg, err, keysAndValues...)
}

func Errorw(msg string, err error, keysAndValues ...interface{}) {
	GetLogger().Errorw(msg, err, keysAndValues...)
}
