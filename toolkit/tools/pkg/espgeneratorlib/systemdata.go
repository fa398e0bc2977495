// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package espgeneratorlib

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/diskutils"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/efivar"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/file"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/kernelcmdline"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	LoaderDevicePartUuidVariable = "LoaderDevicePartUUID"

	bootDir = "/boot"
	efiDir  = "/efi"
)

var (
	ErrMountTableRead    = NewEspGeneratorError("Gather:MountTable", "failed to read the live mount table")
	ErrRootMountNotFound = NewEspGeneratorError("Gather:RootMountNotFound", "no mount found for the root directory")
	ErrKernelCmdlineRead = NewEspGeneratorError("Gather:KernelCmdline", "failed to read the kernel command line")
)

// Probes that shell out to system tools. Replaceable for testing.
var (
	getPartitions   = diskutils.GetPartitions
	getFstabEntries = diskutils.GetFstabEntries
)

// SystemData is a snapshot of all of the system state the resolvers look at. It is gathered once and never
// modified afterwards.
type SystemData struct {
	Mounts               []diskutils.MountEntry     `json:"mounts"`
	Fstab                []diskutils.FstabEntry     `json:"fstab"`
	Partitions           []diskutils.PartitionEntry `json:"partitions"`
	KernelCmdline        kernelcmdline.Cmdline      `json:"kernelCmdline"`
	LoaderDevicePartUuid *string                    `json:"loaderDevicePartUuid"`
	EfiFirmware          bool                       `json:"efiFirmware"`
	BootDirExists        bool                       `json:"bootDirExists"`
	EfiDirExists         bool                       `json:"efiDirExists"`
}

// Gather probes the system. Individual probe failures are logged and leave that part of the snapshot empty. Only a
// missing mount table, root mount or kernel command line is an error.
func Gather(ctx context.Context, rootDir string) (*SystemData, error) {
	ctx, span := otel.GetTracerProvider().Tracer(OtelTracerName).Start(ctx, "gather_system_data")
	defer span.End()

	data := &SystemData{}

	mounts, err := diskutils.GetMountEntries(rootDir)
	if err != nil {
		return nil, fmt.Errorf("%w:\n%w", ErrMountTableRead, err)
	}
	data.Mounts = mounts

	fstab, err := getFstabEntries(ctx, rootDir)
	if err != nil {
		logger.Log.Warnf("Failed to read fstab:\n%v", err)
	}
	data.Fstab = fstab

	partitions, err := getPartitions(ctx)
	if err != nil {
		logger.Log.Warnf("Failed to probe partitions:\n%v", err)
	}
	data.Partitions = partitions

	cmdline, err := kernelcmdline.ReadFile(file.RootedPath(rootDir, kernelcmdline.ProcCmdlinePath))
	if err != nil {
		return nil, fmt.Errorf("%w:\n%w", ErrKernelCmdlineRead, err)
	}
	data.KernelCmdline = cmdline

	loaderDevicePartUuid, err := efivar.ReadString(rootDir, LoaderDevicePartUuidVariable, efivar.LoaderGuid)
	if err != nil {
		logger.Log.Warnf("Failed to read %s:\n%v", LoaderDevicePartUuidVariable, err)
	}
	data.LoaderDevicePartUuid = loaderDevicePartUuid

	data.EfiFirmware = dirExists(rootDir, efivar.FirmwareDir)
	data.BootDirExists = dirExists(rootDir, bootDir)
	data.EfiDirExists = dirExists(rootDir, efiDir)

	err = data.validate()
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("mounts_count", len(data.Mounts)),
		attribute.Int("partitions_count", len(data.Partitions)),
		attribute.Bool("loader_variable_set", data.LoaderDevicePartUuid != nil),
	)

	return data, nil
}

func dirExists(rootDir string, path string) bool {
	exists, err := file.DirExists(file.RootedPath(rootDir, path))
	if err != nil {
		logger.Log.Warnf("Failed to check directory (%s): %v", path, err)
		return false
	}
	return exists
}

func (d *SystemData) validate() error {
	if d.FindMount("/") == nil {
		return ErrRootMountNotFound
	}
	return nil
}

// FindMount returns the mount currently visible at target. autofs mounts are skipped since they are the automount
// points this generator creates, and when several mounts are stacked the last one wins.
func (d *SystemData) FindMount(target string) *diskutils.MountEntry {
	var found *diskutils.MountEntry
	for i := range d.Mounts {
		mount := &d.Mounts[i]
		if mount.Target == target && mount.FsType != diskutils.AutofsFsType {
			found = mount
		}
	}
	return found
}

func (d *SystemData) FindFstabEntry(target string) *diskutils.FstabEntry {
	for i := range d.Fstab {
		if d.Fstab[i].Target == target {
			return &d.Fstab[i]
		}
	}
	return nil
}

func (d *SystemData) FindPartitionByPath(path string) *diskutils.PartitionEntry {
	for i := range d.Partitions {
		if d.Partitions[i].Path == path {
			return &d.Partitions[i]
		}
	}
	return nil
}

func (d *SystemData) FindPartitionByMajMin(majMin string) *diskutils.PartitionEntry {
	if majMin == "" {
		return nil
	}

	for i := range d.Partitions {
		if d.Partitions[i].MajMin == majMin {
			return &d.Partitions[i]
		}
	}
	return nil
}

func (d *SystemData) FindPartitionByPartUuid(partUuid string) *diskutils.PartitionEntry {
	for i := range d.Partitions {
		if samePartUuid(d.Partitions[i].PartUuid, partUuid) {
			return &d.Partitions[i]
		}
	}
	return nil
}

// FindPartitionByDeviceSpec resolves a device reference as used in fstab and on the kernel command line: a /dev
// path, a udev /dev/disk/by-* link, or one of UUID=, PARTUUID=, LABEL= and PARTLABEL=.
func (d *SystemData) FindPartitionByDeviceSpec(spec string) *diskutils.PartitionEntry {
	key, value, found := strings.Cut(spec, "=")
	if !found {
		partition := d.FindPartitionByPath(spec)
		if partition != nil {
			return partition
		}

		// Links that could not be resolved on disk, for example in a replayed snapshot.
		key, value, found = udevLinkSpec(spec)
		if !found {
			return nil
		}
	}

	var match func(p *diskutils.PartitionEntry) bool
	switch strings.ToUpper(key) {
	case "UUID":
		match = func(p *diskutils.PartitionEntry) bool { return strings.EqualFold(p.FsUuid, value) }
	case "PARTUUID":
		match = func(p *diskutils.PartitionEntry) bool { return samePartUuid(p.PartUuid, value) }
	case "LABEL":
		match = func(p *diskutils.PartitionEntry) bool { return p.FsLabel == value }
	case "PARTLABEL":
		match = func(p *diskutils.PartitionEntry) bool { return p.PartLabel == value }
	default:
		return d.FindPartitionByPath(spec)
	}

	for i := range d.Partitions {
		if match(&d.Partitions[i]) {
			return &d.Partitions[i]
		}
	}
	return nil
}

// DiskPartitions returns the partitions of one disk in discovery order.
func (d *SystemData) DiskPartitions(diskId string) []*diskutils.PartitionEntry {
	partitions := []*diskutils.PartitionEntry(nil)
	for i := range d.Partitions {
		if d.Partitions[i].DiskId == diskId {
			partitions = append(partitions, &d.Partitions[i])
		}
	}
	return partitions
}

// RootPartition finds the partition holding the root filesystem: by device number, then by the mount's source,
// then by the root= style kernel argument named rootArgument.
func (d *SystemData) RootPartition(rootArgument string) *diskutils.PartitionEntry {
	rootMount := d.FindMount("/")
	if rootMount != nil {
		partition := d.FindPartitionByMajMin(rootMount.MajMin)
		if partition != nil {
			return partition
		}

		partition = d.FindPartitionByPath(rootMount.Source)
		if partition != nil {
			return partition
		}
	}

	rootSpec, ok := d.KernelCmdline.Get(rootArgument)
	if ok && rootSpec != "" {
		return d.FindPartitionByDeviceSpec(rootSpec)
	}

	return nil
}

// Partition UUIDs are GUIDs on GPT and "<disk id>-<number>" on MBR, so only the former are parsed.
func samePartUuid(a string, b string) bool {
	if a == "" || b == "" {
		return false
	}

	uuidA, errA := uuid.Parse(a)
	uuidB, errB := uuid.Parse(b)
	if errA == nil && errB == nil {
		return uuidA == uuidB
	}

	return strings.EqualFold(a, b)
}

var udevLinkKeys = map[string]string{
	"/dev/disk/by-uuid/":      "UUID",
	"/dev/disk/by-partuuid/":  "PARTUUID",
	"/dev/disk/by-label/":     "LABEL",
	"/dev/disk/by-partlabel/": "PARTLABEL",
}

// udevLinkSpec maps a /dev/disk/by-* link to the matching KEY=value device spec.
func udevLinkSpec(path string) (string, string, bool) {
	for prefix, key := range udevLinkKeys {
		value, found := strings.CutPrefix(path, prefix)
		if found && value != "" && !strings.Contains(value, "/") {
			return key, unescapeUdevLink(value), true
		}
	}
	return "", "", false
}

// udev escapes unsafe characters in link names as \xNN.
func unescapeUdevLink(value string) string {
	if !strings.Contains(value, `\x`) {
		return value
	}

	builder := strings.Builder{}
	for i := 0; i < len(value); i++ {
		if value[i] == '\\' && i+3 < len(value) && value[i+1] == 'x' {
			decoded, err := strconv.ParseUint(value[i+2:i+4], 16, 8)
			if err == nil {
				builder.WriteByte(byte(decoded))
				i += 3
				continue
			}
		}
		builder.WriteByte(value[i])
	}
	return builder.String()
}
