// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package espgeneratorlib

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/coreos/go-systemd/v22/unit"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/espgeneratorapi"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/diskutils"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/file"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/logger"
)

const (
	EspFsType = "vfat"

	unitHeader      = "# Automatically generated by espgenerator\n\n"
	unitDescription = "EFI System Partition Automount"
	wantsTarget     = "local-fs.target"
)

// EspMount is the final decision: mount Source on Target.
type EspMount struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
	Umask  string `json:"umask"`
}

// NewEspMount builds the mount for a resolved ESP and path. Only /boot gets the permissive umask, since
// unprivileged update tooling reads the boot loader files there.
func NewEspMount(esp *diskutils.PartitionEntry, target string, settings espgeneratorapi.MountSettings) *EspMount {
	umask := settings.EfiUmask
	if target == bootDir {
		umask = settings.BootUmask
	}

	return &EspMount{
		Source: esp.Path,
		Target: target,
		Type:   EspFsType,
		Umask:  umask,
	}
}

func (m *EspMount) String() string {
	return fmt.Sprintf("%s on %s type %s (umask=%s)", m.Source, m.Target, m.Type, m.Umask)
}

// UnitName returns the systemd unit name for the mount point with the given suffix, such as "efi.automount".
func (m *EspMount) UnitName(suffix string) string {
	return unit.UnitNamePathEscape(m.Target) + "." + suffix
}

// WriteUnits writes the automount and mount units to unitDir and enables the automount for local-fs.target.
// Existing files are replaced.
func (m *EspMount) WriteUnits(unitDir string, idleTimeout string) error {
	automountName := m.UnitName("automount")
	mountName := m.UnitName("mount")
	automountPath := filepath.Join(unitDir, automountName)
	mountPath := filepath.Join(unitDir, mountName)

	logger.Log.Debugf("Writing (%s)", automountPath)
	err := file.Write(serializeUnit(m.automountOptions(idleTimeout)), automountPath)
	if err != nil {
		return fmt.Errorf("failed to write automount unit (%s):\n%w", automountPath, err)
	}

	logger.Log.Debugf("Writing (%s)", mountPath)
	err = file.Write(serializeUnit(m.mountOptions()), mountPath)
	if err != nil {
		return fmt.Errorf("failed to write mount unit (%s):\n%w", mountPath, err)
	}

	linkPath := filepath.Join(unitDir, wantsTarget+".wants", automountName)
	logger.Log.Debugf("Linking (%s) to (%s)", linkPath, automountPath)
	err = file.RelativeSymlink(automountPath, linkPath)
	if err != nil {
		return fmt.Errorf("failed to enable automount unit (%s):\n%w", automountName, err)
	}

	return nil
}

func (m *EspMount) automountOptions(idleTimeout string) []*unit.UnitOption {
	return []*unit.UnitOption{
		unit.NewUnitOption("Unit", "Description", unitDescription),
		unit.NewUnitOption("Automount", "Where", m.Target),
		unit.NewUnitOption("Automount", "TimeoutIdleSec", idleTimeout),
	}
}

func (m *EspMount) mountOptions() []*unit.UnitOption {
	device := unit.UnitNamePathEscape(m.Source)
	fsckService := "systemd-fsck@" + device + ".service"

	return []*unit.UnitOption{
		unit.NewUnitOption("Unit", "Description", unitDescription),
		unit.NewUnitOption("Unit", "Requires", fsckService),
		unit.NewUnitOption("Unit", "After", fsckService),
		unit.NewUnitOption("Unit", "After", "blockdev@"+device+".target"),
		unit.NewUnitOption("Mount", "What", m.Source),
		unit.NewUnitOption("Mount", "Where", m.Target),
		unit.NewUnitOption("Mount", "Type", m.Type),
		unit.NewUnitOption("Mount", "Options", "umask="+m.Umask+",noauto,rw"),
	}
}

func serializeUnit(options []*unit.UnitOption) string {
	builder := strings.Builder{}
	builder.WriteString(unitHeader)

	// Serialize writes into an in-memory buffer, so copying it out cannot fail.
	_, _ = io.Copy(&builder, unit.Serialize(options))
	return builder.String()
}
