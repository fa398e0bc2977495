// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package diskutils

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/file"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/shell"
	"github.com/sirupsen/logrus"
)

const (
	FstabPath = "/etc/fstab"
)

type findmntOutput struct {
	Filesystems []findmntEntry `json:"filesystems"`
}

type findmntEntry struct {
	Target  string `json:"target"`
	Source  string `json:"source"`
	FsType  string `json:"fstype"`
	Options string `json:"options"`
}

// GetFstabEntries reads <root>/etc/fstab using findmnt. A missing fstab yields no entries.
func GetFstabEntries(ctx context.Context, root string) ([]FstabEntry, error) {
	fstabPath := file.RootedPath(root, FstabPath)

	exists, err := file.PathExists(fstabPath)
	if err != nil {
		return nil, fmt.Errorf("failed to check if fstab (%s) exists:\n%w", fstabPath, err)
	}
	if !exists {
		return nil, nil
	}

	stdout, _, err := shell.NewExecBuilder("findmnt", "--fstab", "--tab-file", fstabPath, "--json", "--list",
		"--output", "TARGET,SOURCE,FSTYPE,OPTIONS").
		Context(ctx).
		LogLevel(logrus.TraceLevel, logrus.DebugLevel).
		ErrorStderrLines(1).
		ExecuteCaptureOuput()
	if err != nil {
		return nil, fmt.Errorf("failed to read fstab (%s):\n%w", fstabPath, err)
	}

	entries, err := ParseFindmntJson(stdout)
	if err != nil {
		return nil, err
	}

	// Live mount sources are canonical, so fstab sources must be too before the two are compared.
	for i := range entries {
		entries[i].Source = canonicalizeDevicePath(root, entries[i].Source)
	}

	return entries, nil
}

// ParseFindmntJson converts "findmnt --json" output to fstab entries. findmnt prints nothing when the table is
// empty.
func ParseFindmntJson(jsonString string) ([]FstabEntry, error) {
	if strings.TrimSpace(jsonString) == "" {
		return nil, nil
	}

	var output findmntOutput
	err := json.Unmarshal([]byte(jsonString), &output)
	if err != nil {
		return nil, fmt.Errorf("failed to parse findmnt JSON:\n%w", err)
	}

	entries := make([]FstabEntry, 0, len(output.Filesystems))
	for _, fs := range output.Filesystems {
		entries = append(entries, FstabEntry{
			Target:  fs.Target,
			Source:  fs.Source,
			FsType:  fs.FsType,
			Options: strings.Split(fs.Options, ","),
		})
	}

	return entries, nil
}
