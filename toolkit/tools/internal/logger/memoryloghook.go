// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package logger

// Stores log messages in memory so that unit tests can assert on what was logged.

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type MemoryLogHook struct {
	messagesLock sync.Mutex
	messages     []MemoryLogMessage
	minLevel     logrus.Level
}

type MemoryLogMessage struct {
	Message string
	Level   logrus.Level
}

// NewMemoryLogHook creates a hook that records every message at minLevel or more severe.
func NewMemoryLogHook(minLevel logrus.Level) *MemoryLogHook {
	return &MemoryLogHook{
		minLevel: minLevel,
	}
}

// AttachMemoryLogHook registers a new hook on Log and returns a function that detaches it again.
func AttachMemoryLogHook(minLevel logrus.Level) (*MemoryLogHook, func()) {
	hook := NewMemoryLogHook(minLevel)
	log := Log
	log.AddHook(hook)

	detach := func() {
		hooks := make(logrus.LevelHooks)
		for level, levelHooks := range log.Hooks {
			for _, levelHook := range levelHooks {
				if levelHook == logrus.Hook(hook) {
					continue
				}
				hooks[level] = append(hooks[level], levelHook)
			}
		}
		log.ReplaceHooks(hooks)
	}

	return hook, detach
}

func (h *MemoryLogHook) Levels() []logrus.Level {
	levels := []logrus.Level(nil)
	for _, level := range logrus.AllLevels {
		if level <= h.minLevel {
			levels = append(levels, level)
		}
	}
	return levels
}

func (h *MemoryLogHook) Fire(entry *logrus.Entry) error {
	message := MemoryLogMessage{
		Message: entry.Message,
		Level:   entry.Level,
	}

	h.messagesLock.Lock()
	defer h.messagesLock.Unlock()
	h.messages = append(h.messages, message)
	return nil
}

// ConsumeMessages returns the recorded messages and clears the buffer.
func (h *MemoryLogHook) ConsumeMessages() []MemoryLogMessage {
	h.messagesLock.Lock()
	defer h.messagesLock.Unlock()

	messages := h.messages
	h.messages = nil
	return messages
}
