package log

import (
	"io"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options for logging.
type Options struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"` // if empty, output to stdout
	MaxSizeMB  int    `yaml:"file-max-size"`
	MaxAgeDays int    `yaml:"file-max-age"`
}

func init() {
	Init(Options{Level: "info"})
}

var globalL atomic.Value
var zaplog func(name string) *zap.Logger

// Init initializes the global logger with options.
func Init(opts Options) {
	var w io.Writer = os.Stdout
	if opts.File != "" {
		w = &lumberjack.Logger{
			Filename:  opts.File,
			MaxSize:   opts.MaxSizeMB,
			MaxAge:    opts.MaxAgeDays,
			LocalTime: true,
			Compress:  true,
		}
	}

	var level zapcore.Level
	if err := level.Set(opts.Level); err != nil {
		level = zapcore.InfoLevel
	}

	zaplog = func(name string) *zap.Logger {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05")
		cfg.ConsoleSeparator = " "
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(w), level)
		if name != "" {
			name += ":"
		}
		return zap.New(core).Named(name)
	}

	globalL.Store(zaplog(""))
}

func Debugf(format string, v ...interface{}) { s().Debugf(format, v...) }
func Infof(format string, v ...interface{})  { s().Infof(format, v...) }
func Warnf(format string, v ...interface{})  { s().Warnf(format, v...) }
func Errorf(format string, v ...interface{}) { s().Errorf(format, v...) }
func Flush()                                 { _ = l().Sync() }

func l() *zap.Logger {
	return globalL.Load().(*zap.Logger)
}

func s() *zap.SugaredLogger {
	return l().Sugar()
}

// Logger is a named component logger.
type Logger struct {
	inner *zap.SugaredLogger
}

// New returns a logger whose lines carry the component name.
func New(name string) *Logger {
	return &Logger{zaplog(name).Sugar()}
}

func (l *Logger) Debugf(format string, vals ...interface{}) { l.inner.Debugf(format, vals...) }
func (l *Logger) Infof(format string, vals ...interface{})  { l.inner.Infof(format, vals...) }
func (l *Logger) Warnf(format string, vals ...interface{})  { l.inner.Warnf(format, vals...) }
func (l *Logger) Errorf(format string, vals ...interface{}) { l.inner.Errorf(format, vals...) }
