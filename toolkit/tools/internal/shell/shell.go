// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package shell runs external programs and routes their output through the logger.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/logger"
	"github.com/sirupsen/logrus"
)

type ExecBuilder struct {
	ctx              context.Context
	program          string
	args             []string
	stdoutLogLevel   logrus.Level
	stderrLogLevel   logrus.Level
	errorStderrLines int
}

func NewExecBuilder(program string, args ...string) ExecBuilder {
	return ExecBuilder{
		ctx:            context.Background(),
		program:        program,
		args:           args,
		stdoutLogLevel: logrus.DebugLevel,
		stderrLogLevel: logrus.DebugLevel,
	}
}

func (b ExecBuilder) Context(ctx context.Context) ExecBuilder {
	b.ctx = ctx
	return b
}

// LogLevel sets the levels that the program's stdout and stderr lines are logged at.
func (b ExecBuilder) LogLevel(stdoutLogLevel logrus.Level, stderrLogLevel logrus.Level) ExecBuilder {
	b.stdoutLogLevel = stdoutLogLevel
	b.stderrLogLevel = stderrLogLevel
	return b
}

// ErrorStderrLines includes the last n lines of stderr in the returned error when the program fails.
func (b ExecBuilder) ErrorStderrLines(lines int) ExecBuilder {
	b.errorStderrLines = lines
	return b
}

func (b ExecBuilder) ExecuteCaptureOuput() (string, string, error) {
	cmd := exec.CommandContext(b.ctx, b.program, b.args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Log.Debugf("Executing: %s %v", b.program, b.args)

	err := cmd.Run()

	logLines(b.stdoutLogLevel, stdout.String())
	logLines(b.stderrLogLevel, stderr.String())

	if err != nil {
		stderrTail := lastLines(stderr.String(), b.errorStderrLines)
		if stderrTail != "" {
			err = fmt.Errorf("%w:\n%s", err, stderrTail)
		}
		return stdout.String(), stderr.String(), fmt.Errorf("failed to run (%s):\n%w", b.program, err)
	}

	return stdout.String(), stderr.String(), nil
}

func logLines(level logrus.Level, output string) {
	if !logger.Log.IsLevelEnabled(level) {
		return
	}

	for _, line := range strings.Split(strings.TrimRight(output, "\n"), "\n") {
		if line == "" {
			continue
		}
		logger.Log.Log(level, line)
	}
}

func lastLines(output string, count int) string {
	if count <= 0 {
		return ""
	}

	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	if len(lines) > count {
		lines = lines[len(lines)-count:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
