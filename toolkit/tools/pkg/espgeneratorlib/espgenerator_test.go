// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package espgeneratorlib

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// saveScenario writes a scenario's system data where GenerateEspMountUnits can replay it.
func saveScenario(t *testing.T, name string) string {
	for _, scenario := range bootScenarios() {
		if scenario.name == name {
			path := filepath.Join(t.TempDir(), name+".cpio.zst")
			require.NoError(t, SaveSystemData(path, scenario.data(t)))
			return path
		}
	}

	t.Fatalf("unknown scenario (%s)", name)
	return ""
}

func TestGenerateEspMountUnits(t *testing.T) {
	t.Setenv(InInitrdEnv, "0")
	unitDir := t.TempDir()

	options := EspGeneratorOptions{
		RootDir:      t.TempDir(),
		NormalDir:    unitDir,
		LoadDataPath: saveScenario(t, "grub-gpt"),
	}

	espMount, err := GenerateEspMountUnits(context.Background(), options)
	require.NoError(t, err)
	assert.Equal(t, &EspMount{Source: "/dev/vda1", Target: "/efi", Type: "vfat", Umask: "0077"}, espMount)

	automount, err := os.ReadFile(filepath.Join(unitDir, "efi.automount"))
	require.NoError(t, err)
	assert.Equal(t, expectedEfiAutomountUnit, string(automount))

	mount, err := os.ReadFile(filepath.Join(unitDir, "efi.mount"))
	require.NoError(t, err)
	assert.Equal(t, expectedEfiMountUnit, string(mount))

	// Running again on the same state gives the same output.
	_, err = GenerateEspMountUnits(context.Background(), options)
	require.NoError(t, err)
	mountAgain, err := os.ReadFile(filepath.Join(unitDir, "efi.mount"))
	require.NoError(t, err)
	assert.Equal(t, mount, mountAgain)
	assert.Len(t, listUnitDir(t, unitDir), 3)
}

func TestGenerateEspMountUnitsDryRun(t *testing.T) {
	t.Setenv(InInitrdEnv, "0")
	unitDir := t.TempDir()

	espMount, err := GenerateEspMountUnits(context.Background(), EspGeneratorOptions{
		RootDir:      t.TempDir(),
		NormalDir:    unitDir,
		DryRun:       true,
		LoadDataPath: saveScenario(t, "sdboot"),
	})
	require.NoError(t, err)
	assert.Equal(t, &EspMount{Source: "/dev/vda1", Target: "/boot", Type: "vfat", Umask: "0022"}, espMount)
	assert.Empty(t, listUnitDir(t, unitDir))
}

func TestGenerateEspMountUnitsNoDecision(t *testing.T) {
	t.Setenv(InInitrdEnv, "0")
	unitDir := t.TempDir()

	espMount, err := GenerateEspMountUnits(context.Background(), EspGeneratorOptions{
		RootDir:      t.TempDir(),
		NormalDir:    unitDir,
		LoadDataPath: saveScenario(t, "sdboot-xbootldr"),
	})
	require.NoError(t, err)
	assert.Nil(t, espMount)
	assert.Empty(t, listUnitDir(t, unitDir))
}

func TestGenerateEspMountUnitsInitrd(t *testing.T) {
	t.Setenv(InInitrdEnv, "1")
	unitDir := t.TempDir()

	espMount, err := GenerateEspMountUnits(context.Background(), EspGeneratorOptions{
		NormalDir:    unitDir,
		LoadDataPath: saveScenario(t, "grub-gpt"),
	})
	require.NoError(t, err)
	assert.Nil(t, espMount)
	assert.Empty(t, listUnitDir(t, unitDir))
}

func TestGenerateEspMountUnitsGatherData(t *testing.T) {
	t.Setenv(InInitrdEnv, "0")
	stdout := bytes.Buffer{}
	savePath := filepath.Join(t.TempDir(), "saved")

	espMount, err := GenerateEspMountUnits(context.Background(), EspGeneratorOptions{
		GatherData:   true,
		SaveDataPath: savePath,
		LoadDataPath: saveScenario(t, "windows-efi"),
		Stdout:       &stdout,
	})
	require.NoError(t, err)
	assert.Nil(t, espMount)

	printed := SystemData{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &printed))
	assert.Len(t, printed.Partitions, 5)
	assert.True(t, printed.EfiFirmware)

	saved, err := LoadSystemData(savePath)
	require.NoError(t, err)
	assert.Equal(t, &printed, saved)
}

func TestGenerateEspMountUnitsConfig(t *testing.T) {
	t.Setenv(InInitrdEnv, "0")
	unitDir := t.TempDir()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, file.Write("mount:\n  automountIdleTimeout: 30s\n  efiUmask: \"0027\"\n", configFile))

	espMount, err := GenerateEspMountUnits(context.Background(), EspGeneratorOptions{
		RootDir:            t.TempDir(),
		NormalDir:          unitDir,
		LoadDataPath:       saveScenario(t, "grub-gpt"),
		ConfigFile:         configFile,
		ConfigFileRequired: true,
	})
	require.NoError(t, err)
	require.NotNil(t, espMount)
	assert.Equal(t, "0027", espMount.Umask)

	automount, err := os.ReadFile(filepath.Join(unitDir, "efi.automount"))
	require.NoError(t, err)
	assert.Contains(t, string(automount), "TimeoutIdleSec=30s\n")
}

func TestGenerateEspMountUnitsErrors(t *testing.T) {
	t.Setenv(InInitrdEnv, "0")

	_, err := GenerateEspMountUnits(context.Background(), EspGeneratorOptions{
		LoadDataPath:       saveScenario(t, "grub-gpt"),
		ConfigFile:         filepath.Join(t.TempDir(), "missing.yaml"),
		ConfigFileRequired: true,
	})
	assert.ErrorIs(t, err, ErrConfigRead)

	_, err = GenerateEspMountUnits(context.Background(), EspGeneratorOptions{
		LoadDataPath: filepath.Join(t.TempDir(), "missing"),
	})
	assert.ErrorIs(t, err, ErrSnapshotLoad)
}
