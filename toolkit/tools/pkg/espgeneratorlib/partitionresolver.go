// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package espgeneratorlib

import (
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/diskutils"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/logger"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/ptrutils"
)

// ResolveEspPartition picks the EFI System Partition for this boot, or returns nil when no ESP should be mounted.
//
// A partition reported by the boot loader is authoritative: if it cannot be found, is not an ESP, or lives on an
// unrelated disk, nothing is mounted rather than searching for another candidate. Without the loader variable the
// first ESP on the image device's disk, or else the root disk, is used.
func ResolveEspPartition(data *SystemData, env *Environment) *diskutils.PartitionEntry {
	if !data.EfiFirmware {
		logger.Log.Infof("Not booted with EFI, skipping")
		return nil
	}

	if env.InInitrd {
		logger.Log.Infof("Running in initrd, skipping")
		return nil
	}

	// An empty variable is treated as unset.
	loaderPartUuid := ptrutils.ValueOr(data.LoaderDevicePartUuid, "")
	if loaderPartUuid != "" {
		return resolveLoaderPartition(loaderPartUuid, data, env)
	}

	return searchEspPartition(data, env)
}

func resolveLoaderPartition(partUuid string, data *SystemData, env *Environment) *diskutils.PartitionEntry {
	logger.Log.Debugf("%s is (%s)", LoaderDevicePartUuidVariable, partUuid)

	esp := data.FindPartitionByPartUuid(partUuid)
	if esp == nil {
		logger.Log.Infof("No partition matches %s (%s), skipping", LoaderDevicePartUuidVariable, partUuid)
		return nil
	}

	if !esp.Scheme.IsValid() {
		logger.Log.Warnf("Partition (%s) has unrecognized partition scheme (%s)", esp.Path, esp.Scheme)
		return nil
	}

	if !esp.IsEsp() {
		logger.Log.Infof("Boot loader partition (%s) type (%s) is not an ESP, skipping", esp.Path, esp.PartTypeId)
		return nil
	}

	rootPartition := data.RootPartition(env.Config.KernelArguments.Root)
	if rootPartition != nil && rootPartition.DiskId == esp.DiskId {
		logger.Log.Debugf("Boot loader partition (%s) is on the root disk (%s)", esp.Path, esp.DiskId)
		return esp
	}

	imagePartition := imageDevicePartition(data, env)
	if imagePartition != nil && imagePartition.DiskId == esp.DiskId {
		logger.Log.Debugf("Boot loader partition (%s) is on the image device disk (%s)", esp.Path, esp.DiskId)
		return esp
	}

	logger.Log.Infof("Boot loader partition (%s) is not on the root or image device disk, skipping", esp.Path)
	return nil
}

func searchEspPartition(data *SystemData, env *Environment) *diskutils.PartitionEntry {
	args := env.Config.KernelArguments

	diskId := ""
	imagePartition := imageDevicePartition(data, env)
	if imagePartition != nil {
		diskId = imagePartition.DiskId
		logger.Log.Debugf("Using image device disk (%s)", diskId)
	} else if data.KernelCmdline.Has(args.LiveBoot) {
		logger.Log.Infof("Live boot without a usable %s argument, skipping", args.ImageDevice)
		return nil
	} else {
		rootPartition := data.RootPartition(args.Root)
		if rootPartition == nil {
			logger.Log.Infof("Could not find the root partition, skipping")
			return nil
		}

		diskId = rootPartition.DiskId
		logger.Log.Debugf("Using root partition (%s) disk (%s)", rootPartition.Path, diskId)
	}

	if diskId == "" {
		logger.Log.Infof("Target disk is not partitioned, skipping")
		return nil
	}

	var esps []*diskutils.PartitionEntry
	xbootldr := (*diskutils.PartitionEntry)(nil)
	for _, partition := range data.DiskPartitions(diskId) {
		if !partition.Scheme.IsValid() {
			logger.Log.Warnf("Partition (%s) has unrecognized partition scheme (%s)", partition.Path, partition.Scheme)
			return nil
		}

		switch {
		case partition.IsEsp():
			esps = append(esps, partition)
		case partition.IsXbootldr() && xbootldr == nil:
			xbootldr = partition
		}
	}

	if len(esps) == 0 {
		logger.Log.Infof("No ESP on disk (%s), skipping", diskId)
		return nil
	}

	if len(esps) > 1 {
		// Discovery order decides. A disk is not supposed to carry more than one ESP.
		logger.Log.Warnf("Found %d ESPs on disk (%s), using the first (%s)", len(esps), diskId, esps[0].Path)
	}

	if xbootldr != nil {
		logger.Log.Infof("Found XBOOTLDR partition (%s), skipping", xbootldr.Path)
		return nil
	}

	return esps[0]
}

// imageDevicePartition resolves the image device kernel argument. It is set when the OS image lives on a different
// disk than the one the root filesystem appears on, such as an image file on a Windows partition.
func imageDevicePartition(data *SystemData, env *Environment) *diskutils.PartitionEntry {
	argName := env.Config.KernelArguments.ImageDevice

	spec, ok := data.KernelCmdline.Get(argName)
	if !ok || spec == "" {
		return nil
	}

	partition := data.FindPartitionByDeviceSpec(spec)
	if partition == nil {
		logger.Log.Warnf("Could not find %s (%s)", argName, spec)
		return nil
	}

	return partition
}
