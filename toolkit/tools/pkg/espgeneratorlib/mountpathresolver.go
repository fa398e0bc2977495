// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package espgeneratorlib

import (
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/diskutils"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/logger"
)

// ResolveMountPath decides where the ESP goes. It returns an empty string when the ESP should not be mounted,
// either because fstab already takes care of it or because both locations are taken.
//
// /boot is preferred. It is skipped when fstab or an existing mount (for example, the bind mount set up by
// ostree-prepare-root) already puts something else there.
func ResolveMountPath(esp *diskutils.PartitionEntry, data *SystemData) string {
	useBoot := true

	bootFstab := data.FindFstabEntry(bootDir)
	if bootFstab != nil {
		if data.isPartitionSpec(bootFstab.Source, esp) {
			logger.Log.Infof("ESP (%s) is already in fstab for %s, skipping", esp.Path, bootDir)
			return ""
		}

		logger.Log.Debugf("fstab has %s from (%s)", bootDir, bootFstab.Source)
		useBoot = false
	}

	if useBoot {
		bootMount := data.FindMount(bootDir)
		switch {
		case bootMount != nil && isMountOfPartition(bootMount, esp):
			logger.Log.Debugf("ESP (%s) is already mounted on %s", esp.Path, bootDir)
			return bootDir

		case bootMount != nil:
			logger.Log.Debugf("%s is mounted from (%s)", bootDir, bootMount.Source)

		case data.BootDirExists:
			return bootDir
		}
	}

	if data.FindFstabEntry(efiDir) != nil {
		logger.Log.Infof("fstab has %s, skipping", efiDir)
		return ""
	}

	efiMount := data.FindMount(efiDir)
	if efiMount != nil {
		if isMountOfPartition(efiMount, esp) {
			logger.Log.Debugf("ESP (%s) is already mounted on %s", esp.Path, efiDir)
			return efiDir
		}

		logger.Log.Infof("%s is mounted from (%s), skipping", efiDir, efiMount.Source)
		return ""
	}

	if data.EfiDirExists {
		return efiDir
	}

	logger.Log.Infof("Neither %s nor %s can be used, skipping", bootDir, efiDir)
	return ""
}

// isMountOfPartition compares device numbers when both are known and device paths otherwise.
func isMountOfPartition(mount *diskutils.MountEntry, partition *diskutils.PartitionEntry) bool {
	if mount.MajMin != "" && partition.MajMin != "" {
		return mount.MajMin == partition.MajMin
	}
	return mount.Source == partition.Path
}

func (d *SystemData) isPartitionSpec(spec string, partition *diskutils.PartitionEntry) bool {
	if spec == partition.Path {
		return true
	}

	resolved := d.FindPartitionByDeviceSpec(spec)
	return resolved != nil && resolved.Path == partition.Path
}
