package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls the log level, format and optional rotated file output.
type Config struct {
	Level      string `json:"level" yaml:"level" mapstructure:"level"`    // debug, info, warn, error
	Format     string `json:"format" yaml:"format" mapstructure:"format"` // text or json
	OutputFile string `json:"output_file,omitempty" yaml:"output_file,omitempty" mapstructure:"output_file"`
	MaxSize    int    `json:"max_size,omitempty" yaml:"max_size,omitempty" mapstructure:"max_size"` // megabytes
	MaxBackups int    `json:"max_backups,omitempty" yaml:"max_backups,omitempty" mapstructure:"max_backups"`
	MaxAge     int    `json:"max_age,omitempty" yaml:"max_age,omitempty" mapstructure:"max_age"` // days
	Compress   bool   `json:"compress,omitempty" yaml:"compress,omitempty" mapstructure:"compress"`
}

// New builds a logger from cfg. Unknown levels fall back to info.
func New(cfg Config) *logrus.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter is New with an explicit console writer.
func NewWithWriter(cfg Config, console io.Writer) *logrus.Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	out := console
	if cfg.OutputFile != "" {
		out = io.MultiWriter(console, &lumberjack.Logger{
			Filename:   cfg.OutputFile,
			MaxSize:    orDefault(cfg.MaxSize, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 3),
			MaxAge:     orDefault(cfg.MaxAge, 28),
			Compress:   cfg.Compress,
		})
	}
	l.SetOutput(out)

	return l
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
