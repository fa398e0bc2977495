// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package osinfo

import (
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/file"
	"gopkg.in/ini.v1"
)

const (
	OsReleasePath = "/etc/os-release"

	unknownDistro  = "Unknown Distro"
	unknownVersion = "Unknown Version"
)

// GetDistroAndVersion returns NAME and VERSION from <root>/etc/os-release.
func GetDistroAndVersion(root string) (string, string) {
	cfg, err := ini.Load(file.RootedPath(root, OsReleasePath))
	if err != nil {
		return unknownDistro, unknownVersion
	}

	section := cfg.Section("")
	distro := section.Key("NAME").MustString(unknownDistro)
	version := section.Key("VERSION").MustString(unknownVersion)
	return distro, version
}
