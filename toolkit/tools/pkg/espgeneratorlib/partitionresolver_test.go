// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package espgeneratorlib

import (
	"testing"

	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/diskutils"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/logger"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/ptrutils"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sdaData(t *testing.T, partitions ...diskutils.PartitionEntry) *SystemData {
	return &SystemData{
		Mounts: []diskutils.MountEntry{
			{Target: "/", Source: "/dev/sda2", MajMin: "8:2", FsType: "ext4", FsRoot: "/"},
		},
		Partitions:    partitions,
		KernelCmdline: mustParseCmdline(t, "root=/dev/sda2 rw"),
		EfiFirmware:   true,
		BootDirExists: true,
		EfiDirExists:  true,
	}
}

func sdaEsp() diskutils.PartitionEntry {
	return gptPartition("/dev/sda1", "8:1", "8:0", diskutils.EfiSystemPartitionTypeUuid,
		"11111111-2222-4333-8444-555555555555")
}

func sdaRoot() diskutils.PartitionEntry {
	return gptPartition("/dev/sda2", "8:2", "8:0", linuxFsTypeUuid, "66666666-7777-4888-9999-aaaaaaaaaaaa")
}

func TestResolveEspPartitionSingleGptEsp(t *testing.T) {
	data := sdaData(t, sdaEsp(), sdaRoot())

	esp := ResolveEspPartition(data, defaultEnvironment())
	require.NotNil(t, esp)
	assert.Equal(t, "/dev/sda1", esp.Path)
}

func TestResolveEspPartitionIgnoresOtherDisks(t *testing.T) {
	otherEsp := gptPartition("/dev/sdb1", "8:17", "8:16", diskutils.EfiSystemPartitionTypeUuid,
		"bbbbbbbb-cccc-4ddd-8eee-ffffffffffff")
	data := sdaData(t, otherEsp, sdaRoot())

	assert.Nil(t, ResolveEspPartition(data, defaultEnvironment()))
}

func TestResolveEspPartitionRootFromSource(t *testing.T) {
	data := sdaData(t, sdaEsp(), sdaRoot())
	data.Mounts[0].MajMin = "0:31"

	esp := ResolveEspPartition(data, defaultEnvironment())
	require.NotNil(t, esp)
	assert.Equal(t, "/dev/sda1", esp.Path)
}

func TestResolveEspPartitionRootFromKernelArgument(t *testing.T) {
	root := sdaRoot()
	root.FsUuid = "0a1b2c3d-4e5f-4a6b-8c7d-8e9f0a1b2c3d"

	data := sdaData(t, sdaEsp(), root)
	data.Mounts[0] = diskutils.MountEntry{Target: "/", Source: "overlay", MajMin: "0:31", FsType: "overlay"}
	data.KernelCmdline = mustParseCmdline(t, "root=UUID=0a1b2c3d-4e5f-4a6b-8c7d-8e9f0a1b2c3d")

	esp := ResolveEspPartition(data, defaultEnvironment())
	require.NotNil(t, esp)
	assert.Equal(t, "/dev/sda1", esp.Path)
}

func TestResolveEspPartitionNoRootPartition(t *testing.T) {
	data := sdaData(t, sdaEsp())
	data.KernelCmdline = nil

	assert.Nil(t, ResolveEspPartition(data, defaultEnvironment()))
}

func TestResolveEspPartitionMultipleEsps(t *testing.T) {
	secondEsp := gptPartition("/dev/sda3", "8:3", "8:0", diskutils.EfiSystemPartitionTypeUuid,
		"bbbbbbbb-cccc-4ddd-8eee-ffffffffffff")
	data := sdaData(t, sdaEsp(), sdaRoot(), secondEsp)

	hook, detach := logger.AttachMemoryLogHook(logrus.WarnLevel)
	defer detach()

	esp := ResolveEspPartition(data, defaultEnvironment())
	require.NotNil(t, esp)
	assert.Equal(t, "/dev/sda1", esp.Path)

	messages := hook.ConsumeMessages()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].Message, "Found 2 ESPs on disk (8:0)")
}

func TestResolveEspPartitionInvalidScheme(t *testing.T) {
	root := sdaRoot()
	root.Scheme = "atari"
	data := sdaData(t, sdaEsp(), root)

	hook, detach := logger.AttachMemoryLogHook(logrus.WarnLevel)
	defer detach()

	assert.Nil(t, ResolveEspPartition(data, defaultEnvironment()))
	assert.Len(t, hook.ConsumeMessages(), 1)
}

func TestResolveEspPartitionMbrXbootldr(t *testing.T) {
	data := sdaData(t,
		dosPartition("/dev/sda1", "8:1", "8:0", diskutils.EfiSystemPartitionTypeMbr, "0a0b0c0d-01"),
		dosPartition("/dev/sda2", "8:2", "8:0", "0x83", "0a0b0c0d-02"),
		dosPartition("/dev/sda3", "8:3", "8:0", diskutils.XbootldrPartitionTypeMbr, "0a0b0c0d-03"),
	)

	assert.Nil(t, ResolveEspPartition(data, defaultEnvironment()))
}

func TestResolveEspPartitionLiveBootWithoutImageDevice(t *testing.T) {
	data := sdaData(t, sdaEsp(), sdaRoot())
	data.KernelCmdline = mustParseCmdline(t, "root=/dev/sda2 endless.live_boot")

	assert.Nil(t, ResolveEspPartition(data, defaultEnvironment()))

	// An image device that does not resolve falls back to the root disk.
	data.KernelCmdline = mustParseCmdline(t, "root=/dev/sda2 endless.image.device=/dev/nvme0n1p3")
	esp := ResolveEspPartition(data, defaultEnvironment())
	require.NotNil(t, esp)
	assert.Equal(t, "/dev/sda1", esp.Path)
}

func TestResolveEspPartitionCustomArgumentNames(t *testing.T) {
	otherEsp := gptPartition("/dev/sdb1", "8:17", "8:16", diskutils.EfiSystemPartitionTypeUuid,
		"bbbbbbbb-cccc-4ddd-8eee-ffffffffffff")
	otherData := gptPartition("/dev/sdb2", "8:18", "8:16", msBasicDataUuid, "cccccccc-dddd-4eee-8fff-000000000000")
	otherData.PartLabel = "images"

	data := sdaData(t, sdaEsp(), sdaRoot(), otherEsp, otherData)
	data.KernelCmdline = mustParseCmdline(t, "root=/dev/sda2 boot.image=PARTLABEL=images")

	env := defaultEnvironment()
	env.Config.KernelArguments.ImageDevice = "boot.image"

	esp := ResolveEspPartition(data, env)
	require.NotNil(t, esp)
	assert.Equal(t, "/dev/sdb1", esp.Path)
}

func TestResolveEspPartitionLoaderVariableUnknown(t *testing.T) {
	data := sdaData(t, sdaEsp(), sdaRoot())
	data.LoaderDevicePartUuid = ptrutils.PtrTo(unrelatedPartUuid)

	// Never falls back to searching the root disk.
	assert.Nil(t, ResolveEspPartition(data, defaultEnvironment()))
}

func TestResolveEspPartitionLoaderVariableNotEsp(t *testing.T) {
	data := sdaData(t, sdaEsp(), sdaRoot())
	data.LoaderDevicePartUuid = ptrutils.PtrTo(sdaRoot().PartUuid)

	assert.Nil(t, ResolveEspPartition(data, defaultEnvironment()))
}

func TestResolveEspPartitionLoaderVariableUnrelatedDisk(t *testing.T) {
	otherEsp := gptPartition("/dev/sdb1", "8:17", "8:16", diskutils.EfiSystemPartitionTypeUuid,
		"bbbbbbbb-cccc-4ddd-8eee-ffffffffffff")
	data := sdaData(t, sdaEsp(), sdaRoot(), otherEsp)
	data.LoaderDevicePartUuid = ptrutils.PtrTo("BBBBBBBB-CCCC-4DDD-8EEE-FFFFFFFFFFFF")

	assert.Nil(t, ResolveEspPartition(data, defaultEnvironment()))
}

func TestResolveEspPartitionLoaderVariableMatch(t *testing.T) {
	data := sdaData(t, sdaEsp(), sdaRoot())
	data.LoaderDevicePartUuid = ptrutils.PtrTo("11111111-2222-4333-8444-555555555555")

	esp := ResolveEspPartition(data, defaultEnvironment())
	require.NotNil(t, esp)
	assert.Equal(t, "/dev/sda1", esp.Path)
}

func TestResolveEspPartitionLoaderVariableEmpty(t *testing.T) {
	data := sdaData(t, sdaEsp(), sdaRoot())
	data.LoaderDevicePartUuid = ptrutils.PtrTo("")

	esp := ResolveEspPartition(data, defaultEnvironment())
	require.NotNil(t, esp)
	assert.Equal(t, "/dev/sda1", esp.Path)
}
