// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package efiuuidlib

import (
	"fmt"
	"io"
	"strings"
)

// Hexdump writes 16 bytes per line with an extra space after the eighth.
func Hexdump(w io.Writer, data []byte) error {
	builder := strings.Builder{}
	for offset, b := range data {
		switch {
		case offset == 0:
		case offset%16 == 0:
			builder.WriteString("\n")
		case offset%8 == 0:
			builder.WriteString("  ")
		default:
			builder.WriteString(" ")
		}
		fmt.Fprintf(&builder, "%02x", b)
	}
	builder.WriteString("\n")

	_, err := io.WriteString(w, builder.String())
	return err
}
