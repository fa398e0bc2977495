// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package espgeneratorlib

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/espgeneratorapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	expectedEfiAutomountUnit = `# Automatically generated by espgenerator

[Unit]
Description=EFI System Partition Automount

[Automount]
Where=/efi
TimeoutIdleSec=2min
`

	expectedEfiMountUnit = `# Automatically generated by espgenerator

[Unit]
Description=EFI System Partition Automount
Requires=systemd-fsck@dev-vda1.service
After=systemd-fsck@dev-vda1.service
After=blockdev@dev-vda1.target

[Mount]
What=/dev/vda1
Where=/efi
Type=vfat
Options=umask=0077,noauto,rw
`
)

func listUnitDir(t *testing.T, unitDir string) []string {
	files := []string(nil)
	err := filepath.WalkDir(unitDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, err := filepath.Rel(unitDir, path)
			if err != nil {
				return err
			}
			files = append(files, rel)
		}
		return nil
	})
	require.NoError(t, err)
	return files
}

func TestWriteUnits(t *testing.T) {
	unitDir := t.TempDir()
	espMount := &EspMount{Source: "/dev/vda1", Target: "/efi", Type: "vfat", Umask: "0077"}

	err := espMount.WriteUnits(unitDir, espgeneratorapi.DefaultAutomountIdleTimeout)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"efi.automount", "efi.mount", "local-fs.target.wants/efi.automount"},
		listUnitDir(t, unitDir))

	linkPath := filepath.Join(unitDir, "local-fs.target.wants/efi.automount")
	linkTarget, err := os.Readlink(linkPath)
	require.NoError(t, err)
	assert.Equal(t, "../efi.automount", linkTarget)

	automount, err := os.ReadFile(filepath.Join(unitDir, "efi.automount"))
	require.NoError(t, err)
	assert.Equal(t, expectedEfiAutomountUnit, string(automount))

	mount, err := os.ReadFile(filepath.Join(unitDir, "efi.mount"))
	require.NoError(t, err)
	assert.Equal(t, expectedEfiMountUnit, string(mount))
}

func TestWriteUnitsIdempotent(t *testing.T) {
	unitDir := t.TempDir()
	espMount := &EspMount{Source: "/dev/vda1", Target: "/efi", Type: "vfat", Umask: "0077"}

	err := espMount.WriteUnits(unitDir, "2min")
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(unitDir, "efi.mount"))
	require.NoError(t, err)

	err = espMount.WriteUnits(unitDir, "2min")
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(unitDir, "efi.mount"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, listUnitDir(t, unitDir), 3)
}

func TestWriteUnitsBoot(t *testing.T) {
	unitDir := t.TempDir()
	espMount := &EspMount{Source: "/dev/nvme0n1p1", Target: "/boot", Type: "vfat", Umask: "0022"}

	err := espMount.WriteUnits(unitDir, "5min")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"boot.automount", "boot.mount", "local-fs.target.wants/boot.automount"},
		listUnitDir(t, unitDir))

	automount, err := os.ReadFile(filepath.Join(unitDir, "boot.automount"))
	require.NoError(t, err)
	assert.Contains(t, string(automount), "Where=/boot\nTimeoutIdleSec=5min\n")

	mount, err := os.ReadFile(filepath.Join(unitDir, "boot.mount"))
	require.NoError(t, err)
	assert.Contains(t, string(mount), "Requires=systemd-fsck@dev-nvme0n1p1.service\n")
	assert.Contains(t, string(mount), "Options=umask=0022,noauto,rw\n")
}

func TestEspMountString(t *testing.T) {
	espMount := &EspMount{Source: "/dev/vda1", Target: "/efi", Type: "vfat", Umask: "0077"}
	assert.Equal(t, "/dev/vda1 on /efi type vfat (umask=0077)", espMount.String())
	assert.Equal(t, "efi.mount", espMount.UnitName("mount"))
}
