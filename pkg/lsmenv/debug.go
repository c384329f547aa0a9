/*
 * Copyright 2025 SREDiag Authors
 * Copyright 2023 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package lsmenv

import (
	"io"
	"os"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type logger struct {
	s *zap.SugaredLogger
}

var (
	level atomic.Int32
	// zapLevel mirrors level for zap cores, so loggers handed to other
	// packages through base() obey the same setting.
	zapLevel       = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	internalLogger = newLogger("lsmenv", os.Stdout)
)

const (
	levelTrace = iota
	levelDebug
	levelInfo
	levelWarn
	levelError
	levelNoPrint
)

func init() {
	SetLogLevel(levelWarn)
	if os.Getenv("LSMENV_LOG_LEVEL") != "" {
		if n, err := strconv.Atoi(os.Getenv("LSMENV_LOG_LEVEL")); err == nil {
			SetLogLevel(n)
		}
	}
}

// SetLogLevel used to change the internal logger's level and the default level is Warning.
// The process env `LSMENV_LOG_LEVEL` also could set log level
func SetLogLevel(l int) {
	if l <= levelNoPrint {
		level.Store(int32(l))
		zapLevel.SetLevel(toZapLevel(l))
	}
}

func toZapLevel(l int) zapcore.Level {
	switch {
	case l <= levelDebug:
		return zapcore.DebugLevel
	case l == levelInfo:
		return zapcore.InfoLevel
	case l == levelWarn:
		return zapcore.WarnLevel
	case l == levelError:
		return zapcore.ErrorLevel
	}
	return zapcore.FatalLevel
}

func newLogger(name string, out io.Writer) *logger {
	if out == nil {
		out = os.Stdout
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(out), zapLevel)
	return &logger{s: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Named(name).Sugar()}
}

// wrapLogger adapts a caller supplied zap logger. Messages are still gated
// by the internal level.
func wrapLogger(z *zap.Logger) *logger {
	gate := zap.WrapCore(func(c zapcore.Core) zapcore.Core { return gatedCore{c} })
	return &logger{s: z.WithOptions(gate, zap.AddCallerSkip(1)).Sugar()}
}

// gatedCore drops entries below the internal level before the wrapped core
// sees them.
type gatedCore struct {
	zapcore.Core
}

func (c gatedCore) Enabled(l zapcore.Level) bool {
	return zapLevel.Enabled(l) && c.Core.Enabled(l)
}

func (c gatedCore) With(fields []zapcore.Field) zapcore.Core {
	return gatedCore{c.Core.With(fields)}
}

func (c gatedCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !zapLevel.Enabled(ent.Level) {
		return ce
	}
	return c.Core.Check(ent, ce)
}

func (l *logger) base() *zap.Logger {
	return l.s.Desugar().WithOptions(zap.AddCallerSkip(-1))
}

func enabled(l int) bool {
	return int(level.Load()) <= l
}

func (l *logger) errorf(format string, a ...interface{}) {
	if !enabled(levelError) {
		return
	}
	l.s.Errorf(format, a...)
}

func (l *logger) warnf(format string, a ...interface{}) {
	if !enabled(levelWarn) {
		return
	}
	l.s.Warnf(format, a...)
}

func (l *logger) infof(format string, a ...interface{}) {
	if !enabled(levelInfo) {
		return
	}
	l.s.Infof(format, a...)
}

func (l *logger) debugf(format string, a ...interface{}) {
	if !enabled(levelDebug) {
		return
	}
	l.s.Debugf(format, a...)
}

func (l *logger) tracef(format string, a ...interface{}) {
	if !enabled(levelTrace) {
		return
	}
	l.s.Debugf("[trace] "+format, a...)
}
