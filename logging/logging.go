// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	lj "gopkg.in/natefinch/lumberjack.v2"

	"orbit/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup configures the standard logrus logger from cfg. The returned closer
// releases the log file, if one was opened.
func Setup(cfg config.Log) (io.Closer, error) {
	return Configure(logrus.StandardLogger(), cfg, os.Stderr)
}

// Configure applies level, formatter and output to l. When cfg.File is set
// entries go to both console and a rotating file.
func Configure(l *logrus.Logger, cfg config.Log, console io.Writer) (io.Closer, error) {
	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	if strings.TrimSpace(cfg.File) == "" {
		l.SetOutput(console)
		return nopCloser{}, nil
	}
	w := &lj.Logger{Filename: cfg.File, MaxSize: 10, MaxBackups: 3, MaxAge: 28, Compress: true}
	l.SetOutput(io.MultiWriter(console, w))
	return w, nil
}
