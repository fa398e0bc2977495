// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package kernelcmdline parses the kernel command line into an ordered list of arguments.
package kernelcmdline

import (
	"fmt"
	"os"
	"strings"

	"github.com/kballard/go-shellquote"
)

const (
	ProcCmdlinePath = "/proc/cmdline"
)

// Argument is one token of the command line. A nil Value means the token had no '=', which is different from an
// empty value ("foo=").
type Argument struct {
	Name  string  `json:"name"`
	Value *string `json:"value"`
}

type Cmdline []Argument

// Parse tokenises a command line using shell quoting rules and splits each token on its first '='. '#' has no
// special meaning on the kernel command line, so it never starts a comment.
func Parse(cmdline string) (Cmdline, error) {
	tokens, err := shellquote.Split(cmdline)
	if err != nil {
		return nil, fmt.Errorf("failed to split kernel command line:\n%w", err)
	}

	args := Cmdline{}
	for _, token := range tokens {
		name, value, found := strings.Cut(token, "=")
		arg := Argument{Name: name}
		if found {
			arg.Value = &value
		}
		args = append(args, arg)
	}

	return args, nil
}

func ReadFile(path string) (Cmdline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read kernel command line (%s):\n%w", path, err)
	}

	return Parse(string(data))
}

// Has reports whether any argument is named name, with or without a value.
func (c Cmdline) Has(name string) bool {
	for _, arg := range c {
		if arg.Name == name {
			return true
		}
	}
	return false
}

// Get returns the value of the last argument named name, matching the kernel's last-one-wins behavior. The bool is
// false when the argument is absent or has no value.
func (c Cmdline) Get(name string) (string, bool) {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].Name == name {
			if c[i].Value == nil {
				return "", false
			}
			return *c[i].Value, true
		}
	}
	return "", false
}

func (c Cmdline) String() string {
	tokens := make([]string, 0, len(c))
	for _, arg := range c {
		if arg.Value == nil {
			tokens = append(tokens, arg.Name)
		} else {
			tokens = append(tokens, arg.Name+"="+*arg.Value)
		}
	}
	return strings.Join(tokens, " ")
}
