// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

const (
	KmsgPath = "/dev/kmsg"

	// The kernel truncates /dev/kmsg writes beyond this size.
	kmsgMaxRecordSize = 1024
)

// Syslog priorities understood by the kernel ring buffer.
const (
	kmsgPriorityCrit    = 2
	kmsgPriorityErr     = 3
	kmsgPriorityWarning = 4
	kmsgPriorityInfo    = 6
	kmsgPriorityDebug   = 7
)

// KmsgHook writes each log entry to the kernel ring buffer as one or more records. Generators run before the
// journal is available, so this is the only place their output can be seen.
type KmsgHook struct {
	writer io.Writer
	ident  string
	pid    int
}

func NewKmsgHook(writer io.Writer, ident string) *KmsgHook {
	return &KmsgHook{
		writer: writer,
		ident:  ident,
		pid:    os.Getpid(),
	}
}

// UseKmsg routes all log output to /dev/kmsg. The caller owns the returned file.
func UseKmsg(ident string) (*os.File, error) {
	kmsgFile, err := os.OpenFile(KmsgPath, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open (%s):\n%w", KmsgPath, err)
	}

	Log.AddHook(NewKmsgHook(kmsgFile, ident))
	ReplaceStderr(io.Discard)
	return kmsgFile, nil
}

func (h *KmsgHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *KmsgHook) Fire(entry *logrus.Entry) error {
	prefix := fmt.Sprintf("<%d>%s[%d]: ", kmsgPriority(entry.Level), h.ident, h.pid)
	message := strings.TrimRight(entry.Message, "\n")

	for _, chunk := range splitKmsgMessage(message, kmsgMaxRecordSize-len(prefix)) {
		// Every write to /dev/kmsg is a separate record, so the prefix and chunk must go out together.
		_, err := h.writer.Write([]byte(prefix + chunk))
		if err != nil {
			return err
		}
	}

	return nil
}

func kmsgPriority(level logrus.Level) int {
	switch level {
	case logrus.PanicLevel, logrus.FatalLevel:
		return kmsgPriorityCrit
	case logrus.ErrorLevel:
		return kmsgPriorityErr
	case logrus.WarnLevel:
		return kmsgPriorityWarning
	case logrus.InfoLevel:
		return kmsgPriorityInfo
	default:
		return kmsgPriorityDebug
	}
}

// splitKmsgMessage cuts message into chunks of at most size bytes without breaking a UTF-8 sequence.
func splitKmsgMessage(message string, size int) []string {
	if len(message) <= size || size <= 0 {
		return []string{message}
	}

	chunks := []string(nil)
	for len(message) > size {
		end := size
		for end > 0 && !utf8.RuneStart(message[end]) {
			end--
		}
		if end == 0 {
			end = size
		}

		chunks = append(chunks, message[:end])
		message = message[end:]
	}

	if len(message) > 0 {
		chunks = append(chunks, message)
	}

	return chunks
}
