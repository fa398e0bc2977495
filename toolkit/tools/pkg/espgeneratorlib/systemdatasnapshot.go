// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package espgeneratorlib

import (
	"encoding/json"
	"fmt"

	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/snapshotarchive"
)

const (
	snapshotMountsFile     = "mounts.json"
	snapshotFstabFile      = "fstab.json"
	snapshotPartitionsFile = "partitions.json"
	snapshotCmdlineFile    = "cmdline.json"
	snapshotStateFile      = "state.json"
)

var (
	ErrSnapshotSave = NewEspGeneratorError("Snapshot:Save", "failed to save system data")
	ErrSnapshotLoad = NewEspGeneratorError("Snapshot:Load", "failed to load system data")
)

type snapshotState struct {
	LoaderDevicePartUuid *string `json:"loaderDevicePartUuid"`
	EfiFirmware          bool    `json:"efiFirmware"`
	BootDirExists        bool    `json:"bootDirExists"`
	EfiDirExists         bool    `json:"efiDirExists"`
}

// SaveSystemData stores the snapshot at path, as a .cpio, .cpio.gz or .cpio.zst archive or as a directory of JSON
// files.
func SaveSystemData(path string, data *SystemData) error {
	files := make(map[string][]byte)

	for name, value := range map[string]any{
		snapshotMountsFile:     data.Mounts,
		snapshotFstabFile:      data.Fstab,
		snapshotPartitionsFile: data.Partitions,
		snapshotCmdlineFile:    data.KernelCmdline,
		snapshotStateFile: snapshotState{
			LoaderDevicePartUuid: data.LoaderDevicePartUuid,
			EfiFirmware:          data.EfiFirmware,
			BootDirExists:        data.BootDirExists,
			EfiDirExists:         data.EfiDirExists,
		},
	} {
		encoded, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return fmt.Errorf("%w (%s):\nfailed to encode (%s):\n%w", ErrSnapshotSave, path, name, err)
		}
		files[name] = append(encoded, '\n')
	}

	err := snapshotarchive.Save(path, files)
	if err != nil {
		return fmt.Errorf("%w (%s):\n%w", ErrSnapshotSave, path, err)
	}

	return nil
}

// LoadSystemData reads a snapshot written by SaveSystemData. Missing files leave that part of the snapshot empty,
// but the root mount must be present.
func LoadSystemData(path string) (*SystemData, error) {
	files, err := snapshotarchive.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w (%s):\n%w", ErrSnapshotLoad, path, err)
	}

	data := &SystemData{}
	state := snapshotState{}

	for name, target := range map[string]any{
		snapshotMountsFile:     &data.Mounts,
		snapshotFstabFile:      &data.Fstab,
		snapshotPartitionsFile: &data.Partitions,
		snapshotCmdlineFile:    &data.KernelCmdline,
		snapshotStateFile:      &state,
	} {
		encoded, found := files[name]
		if !found {
			continue
		}

		err := json.Unmarshal(encoded, target)
		if err != nil {
			return nil, fmt.Errorf("%w (%s):\nfailed to decode (%s):\n%w", ErrSnapshotLoad, path, name, err)
		}
	}

	data.LoaderDevicePartUuid = state.LoaderDevicePartUuid
	data.EfiFirmware = state.EfiFirmware
	data.BootDirExists = state.BootDirExists
	data.EfiDirExists = state.EfiDirExists

	err = data.validate()
	if err != nil {
		return nil, fmt.Errorf("%w (%s):\n%w", ErrSnapshotLoad, path, err)
	}

	return data, nil
}
