package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Level is the minimum severity a Logger writes.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

// LevelIds maps levels to their textual names, as accepted by the CLI.
var LevelIds = map[Level][]string{
	Debug: {"debug"},
	Info:  {"info"},
	Warn:  {"warn"},
	Error: {"error"},
}

// Format selects the log output encoding.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

var FormatIds = map[Format][]string{
	FormatText: {"text"},
	FormatJSON: {"json"},
}

type Config struct {
	Level  Level
	Format Format
	Output io.Writer // defaults to os.Stderr
}

// Logger is a leveled, printf-style logger.
type Logger struct {
	log zerolog.Logger
}

func NewLogger(cfg Config) *Logger {
	var w io.Writer = os.Stderr
	if cfg.Output != nil {
		w = cfg.Output
	}

	if cfg.Format == FormatText {
		w = zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: "15:04:05"}
	}

	return &Logger{log: zerolog.New(w).Level(cfg.Level.zerolog()).With().Timestamp().Logger()}
}

// NewNoOpLogger returns a logger discarding everything.
func NewNoOpLogger() *Logger {
	return &Logger{log: zerolog.Nop()}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case Debug:
		return zerolog.DebugLevel
	case Warn:
		return zerolog.WarnLevel
	case Error:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l Level) String() string {
	if ids, ok := LevelIds[l]; ok {
		return ids[0]
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// With returns a logger adding the key/value pair to every entry.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{log: l.log.With().Str(key, value).Logger()}
}

func (l *Logger) Debugf(f string, a ...any) {
	l.log.Debug().Msgf(f, a...)
}

func (l *Logger) Infof(f string, a ...any) {
	l.log.Info().Msgf(f, a...)
}

func (l *Logger) Warnf(f string, a ...any) {
	l.log.Warn().Msgf(f, a...)
}

func (l *Logger) Errorf(f string, a ...any) {
	l.log.Error().Msgf(f, a...)
}
