// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package logger

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func kmsgPrefix(priority int) string {
	return fmt.Sprintf("<%d>espgenerator[%d]: ", priority, os.Getpid())
}

func fireKmsg(t *testing.T, level logrus.Level, message string) string {
	buffer := bytes.Buffer{}
	hook := NewKmsgHook(&buffer, "espgenerator")

	entry := logrus.NewEntry(logrus.New())
	entry.Level = level
	entry.Message = message

	err := hook.Fire(entry)
	assert.NoError(t, err)
	return buffer.String()
}

func TestKmsgHookPriorities(t *testing.T) {
	assert.Equal(t, kmsgPrefix(6)+"msg", fireKmsg(t, logrus.InfoLevel, "msg"))
	assert.Equal(t, kmsgPrefix(3)+"msg", fireKmsg(t, logrus.ErrorLevel, "msg"))
	assert.Equal(t, kmsgPrefix(4)+"msg", fireKmsg(t, logrus.WarnLevel, "msg"))
	assert.Equal(t, kmsgPrefix(7)+"msg", fireKmsg(t, logrus.DebugLevel, "msg"))
	assert.Equal(t, kmsgPrefix(7)+"msg", fireKmsg(t, logrus.TraceLevel, "msg"))
}

func TestKmsgHookUnicode(t *testing.T) {
	assert.Equal(t, kmsgPrefix(6)+"\U0001F643", fireKmsg(t, logrus.InfoLevel, "\U0001F643"))
}

func TestKmsgHookSplitsLongMessages(t *testing.T) {
	prefix := kmsgPrefix(6)
	size := 1024 - len(prefix)
	message := strings.Repeat("x", 2*size+10)

	expected := prefix + strings.Repeat("x", size) +
		prefix + strings.Repeat("x", size) +
		prefix + strings.Repeat("x", 10)
	assert.Equal(t, expected, fireKmsg(t, logrus.InfoLevel, message))
	assert.Equal(t, 3, strings.Count(expected, prefix))
}

func TestKmsgHookDoesNotSplitMultibyteCharacters(t *testing.T) {
	prefix := kmsgPrefix(6)
	size := 1024 - len(prefix)
	message := strings.Repeat("x", size-1) + "\U0001F643"

	expected := prefix + strings.Repeat("x", size-1) + prefix + "\U0001F643"
	assert.Equal(t, expected, fireKmsg(t, logrus.InfoLevel, message))
}

func TestSplitKmsgMessageShort(t *testing.T) {
	assert.Equal(t, []string{"abc"}, splitKmsgMessage("abc", 10))
	assert.Equal(t, []string{""}, splitKmsgMessage("", 10))
}
