// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package diskutils gathers the system's view of mounts, fstab entries and partitions.

package diskutils

import (
	"path/filepath"
	"strings"

	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/file"
)

const (
	EfiSystemPartitionTypeUuid = "c12a7328-f81f-11d2-ba4b-00a0c93ec93b"
	XbootldrPartitionTypeUuid  = "bc13c2ff-59e6-4262-a352-b275fd6f7172"

	EfiSystemPartitionTypeMbr = "0xef"
	XbootldrPartitionTypeMbr  = "0xea"

	AutofsFsType = "autofs"
)

type PartitionScheme string

const (
	PartitionSchemeGpt PartitionScheme = "gpt"
	PartitionSchemeDos PartitionScheme = "dos"
)

func (s PartitionScheme) IsValid() bool {
	switch s {
	case PartitionSchemeGpt, PartitionSchemeDos:
		return true
	default:
		return false
	}
}

// EspType returns the partition type that marks an EFI System Partition in this scheme.
func (s PartitionScheme) EspType() string {
	switch s {
	case PartitionSchemeGpt:
		return EfiSystemPartitionTypeUuid
	case PartitionSchemeDos:
		return EfiSystemPartitionTypeMbr
	default:
		return ""
	}
}

// XbootldrType returns the partition type of an Extended Boot Loader Partition in this scheme.
func (s PartitionScheme) XbootldrType() string {
	switch s {
	case PartitionSchemeGpt:
		return XbootldrPartitionTypeUuid
	case PartitionSchemeDos:
		return XbootldrPartitionTypeMbr
	default:
		return ""
	}
}

// MountEntry is one entry of the live mount table.
type MountEntry struct {
	Target  string   `json:"target"`  // Example: /boot
	Source  string   `json:"source"`  // Example: /dev/vda1
	MajMin  string   `json:"majMin"`  // Example: 252:1
	FsType  string   `json:"fsType"`  // Example: vfat
	FsRoot  string   `json:"fsRoot"`  // Example: /ostree/deploy/eos/deploy/abc.0/boot
	Options []string `json:"options"` // Example: [rw relatime]
}

// FstabEntry is one entry of the static filesystem table. Sources are kept as written, for example "UUID=...".
type FstabEntry struct {
	Target  string   `json:"target"`
	Source  string   `json:"source"`
	FsType  string   `json:"fsType"`
	Options []string `json:"options"`
}

// PartitionEntry is the probed state of one partition.
type PartitionEntry struct {
	Path       string            `json:"path"`       // Example: /dev/vda1
	MajMin     string            `json:"majMin"`     // Example: 252:1
	Scheme     PartitionScheme   `json:"scheme"`     // Example: gpt
	DiskId     string            `json:"diskId"`     // Example: 252:0
	PartTypeId string            `json:"partTypeId"` // Example: c12a7328-f81f-11d2-ba4b-00a0c93ec93b
	PartUuid   string            `json:"partUuid"`   // Example: 7b1367a6-5845-43f2-99b1-a742d873f590
	PartLabel  string            `json:"partLabel"`  // Example: EFI System Partition
	FsType     string            `json:"fsType"`     // Example: vfat
	FsUuid     string            `json:"fsUuid"`     // Example: 4BD9-3A78
	FsLabel    string            `json:"fsLabel"`    // Example: efi
	Properties map[string]string `json:"properties"` // Raw blkid export.
}

// IsEsp returns true if the partition's type is the EFI System Partition type of its scheme.
func (p *PartitionEntry) IsEsp() bool {
	return p.Scheme.IsValid() && strings.EqualFold(p.PartTypeId, p.Scheme.EspType())
}

func (p *PartitionEntry) IsXbootldr() bool {
	return p.Scheme.IsValid() && strings.EqualFold(p.PartTypeId, p.Scheme.XbootldrType())
}

// canonicalizeDevicePath resolves symlinks such as /dev/disk/by-uuid/... to the device node. Paths outside /dev and
// paths that cannot be resolved are returned unchanged.
func canonicalizeDevicePath(root string, path string) string {
	if !strings.HasPrefix(path, "/dev/") {
		return path
	}

	resolved, err := filepath.EvalSymlinks(file.RootedPath(root, path))
	if err != nil {
		return path
	}

	if root != "" {
		realRoot, err := filepath.EvalSymlinks(root)
		if err != nil {
			return path
		}

		rel, err := filepath.Rel(realRoot, resolved)
		if err != nil || strings.HasPrefix(rel, "..") {
			return path
		}
		resolved = "/" + rel
	}

	return resolved
}
