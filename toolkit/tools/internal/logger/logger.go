// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package logger wraps logrus with the flags and output handling shared by the boot helper tools.
package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

const (
	LevelsFlag        = "log-level"
	LevelsHelp        = "The minimum log level."
	LevelsPlaceholder = "(panic|fatal|error|warn|info|debug|trace)"

	FileFlag     = "log-file"
	FileFlagHelp = "Path to an additional file to write logs to."

	ColorFlag         = "log-color"
	ColorFlagHelp     = "Color setting for log terminal output."
	ColorsPlaceholder = "(always|auto|never)"

	ColorAlways = "always"
	ColorAuto   = "auto"
	ColorNever  = "never"

	defaultLogLevel = logrus.InfoLevel
)

// Log is the process-wide logger. It is usable before any Init call so that packages can log from tests and
// helpers without extra setup.
var Log = newLogger(os.Stderr, defaultLogLevel, ColorAuto)

type LogFlags struct {
	LogColor *string
	LogFile  *string
	LogLevel *string
}

func Levels() []string {
	levels := make([]string, 0, len(logrus.AllLevels))
	for _, level := range logrus.AllLevels {
		levels = append(levels, level.String())
	}
	return levels
}

func Colors() []string {
	return []string{ColorAlways, ColorAuto, ColorNever}
}

// InitStderrLog configures the logger for unit tests: stderr output at debug level.
func InitStderrLog() {
	Log = newLogger(os.Stderr, logrus.DebugLevel, ColorAuto)
}

// InitBestEffort configures the logger from command-line flags. Invalid values fall back to the defaults and are
// reported as warnings rather than stopping the tool.
func InitBestEffort(lf *LogFlags) {
	level := defaultLogLevel
	colorSetting := ColorAuto
	logFile := ""

	if lf != nil {
		if lf.LogColor != nil && *lf.LogColor != "" {
			colorSetting = *lf.LogColor
		}
		if lf.LogFile != nil {
			logFile = *lf.LogFile
		}
	}

	Log = newLogger(os.Stderr, level, colorSetting)

	if lf != nil && lf.LogLevel != nil && *lf.LogLevel != "" {
		err := SetLogLevel(*lf.LogLevel)
		if err != nil {
			Log.Warnf("Invalid log level (%s), using (%s)", *lf.LogLevel, defaultLogLevel)
		}
	}

	if logFile != "" {
		err := addFileOutput(logFile)
		if err != nil {
			Log.Warnf("Failed to open log file (%s):\n%v", logFile, err)
		}
	}
}

func SetLogLevel(level string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}

	Log.SetLevel(parsed)
	return nil
}

// ReplaceStderr swaps the terminal output of the logger. Hooks keep firing.
func ReplaceStderr(w io.Writer) {
	Log.SetOutput(w)
}

func addFileOutput(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	Log.AddHook(&writerHook{
		writer:    file,
		formatter: &textFormatter{colorSetting: ColorNever},
	})
	return nil
}

func newLogger(w io.Writer, level logrus.Level, colorSetting string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(level)
	log.SetFormatter(&textFormatter{colorSetting: colorSetting})
	return log
}

type textFormatter struct {
	colorSetting string
}

func (f *textFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	levelName := strings.ToUpper(entry.Level.String())
	if len(levelName) > 4 {
		levelName = levelName[:4]
	}

	levelColor := colorForLevel(entry.Level)
	switch f.colorSetting {
	case ColorAlways:
		levelColor.EnableColor()
	case ColorNever:
		levelColor.DisableColor()
	}

	var buffer bytes.Buffer
	fmt.Fprintf(&buffer, "%s %s %s\n", entry.Time.Format("15:04:05"), levelColor.Sprint(levelName),
		strings.TrimRight(entry.Message, "\n"))
	return buffer.Bytes(), nil
}

func colorForLevel(level logrus.Level) *color.Color {
	switch level {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		return color.New(color.FgRed)
	case logrus.WarnLevel:
		return color.New(color.FgYellow)
	case logrus.InfoLevel:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgWhite)
	}
}

type writerHook struct {
	writer    io.Writer
	formatter logrus.Formatter
}

func (h *writerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *writerHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}

	_, err = h.writer.Write(line)
	return err
}
