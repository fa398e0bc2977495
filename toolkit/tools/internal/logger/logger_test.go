// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelsMatchLogrus(t *testing.T) {
	levels := Levels()
	assert.Contains(t, levels, "debug")
	assert.Contains(t, levels, "warning")
	assert.Len(t, levels, len(logrus.AllLevels))
}

func TestInitBestEffortInvalidLevelKeepsDefault(t *testing.T) {
	level := "loud"
	InitBestEffort(&LogFlags{LogLevel: &level})
	defer InitStderrLog()

	assert.Equal(t, defaultLogLevel, Log.GetLevel())
}

func TestInitBestEffortLogFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "tool.log")
	level := "debug"
	colorSetting := ColorNever
	InitBestEffort(&LogFlags{LogLevel: &level, LogFile: &logFile, LogColor: &colorSetting})
	defer InitStderrLog()

	ReplaceStderr(&bytes.Buffer{})
	Log.Debugf("hello %s", "file")

	contents, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "DEBU hello file")
}

func TestMemoryLogHook(t *testing.T) {
	InitStderrLog()
	hook, detach := AttachMemoryLogHook(logrus.InfoLevel)

	Log.Debugf("ignored")
	Log.Warnf("kept %d", 1)
	detach()
	Log.Warnf("after detach")

	assert.Equal(t, []MemoryLogMessage{{Message: "kept 1", Level: logrus.WarnLevel}}, hook.ConsumeMessages())
	assert.Empty(t, hook.ConsumeMessages())
}
