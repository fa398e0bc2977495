// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package diskutils

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/file"
	"github.com/moby/sys/mountinfo"
)

const (
	MountInfoPath = "/proc/self/mountinfo"
)

// GetMountEntries lists the live mounts, in mount order, from <root>/proc/self/mountinfo.
func GetMountEntries(root string) ([]MountEntry, error) {
	mountInfoPath := file.RootedPath(root, MountInfoPath)

	f, err := os.Open(mountInfoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open mount table (%s):\n%w", mountInfoPath, err)
	}
	defer f.Close()

	mounts, err := ParseMountInfo(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mount table (%s):\n%w", mountInfoPath, err)
	}

	for i := range mounts {
		mounts[i].Source = canonicalizeDevicePath(root, mounts[i].Source)
	}

	return mounts, nil
}

func ParseMountInfo(r io.Reader) ([]MountEntry, error) {
	infos, err := mountinfo.GetMountsFromReader(r, nil)
	if err != nil {
		return nil, err
	}

	mounts := make([]MountEntry, 0, len(infos))
	for _, info := range infos {
		mounts = append(mounts, MountEntry{
			Target:  info.Mountpoint,
			Source:  info.Source,
			MajMin:  fmt.Sprintf("%d:%d", info.Major, info.Minor),
			FsType:  info.FSType,
			FsRoot:  info.Root,
			Options: strings.Split(info.Options, ","),
		})
	}

	return mounts, nil
}
