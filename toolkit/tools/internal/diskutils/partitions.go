// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package diskutils

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/logger"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/shell"
	"github.com/sirupsen/logrus"
)

const (
	blockDeviceTypePartition = "part"
)

type blockDevicesOutput struct {
	Devices []blockDeviceInfo `json:"blockdevices"`
}

type blockDeviceInfo struct {
	Name   string `json:"name"`    // Example: /dev/sda1
	Type   string `json:"type"`    // Example: part
	MajMin string `json:"maj:min"` // Example: 8:1
}

// GetPartitions probes every partition known to the kernel. lsblk reads sysfs, so this works before udev has
// processed the devices. Partitions that fail to probe are skipped.
func GetPartitions(ctx context.Context) ([]PartitionEntry, error) {
	stdout, _, err := shell.NewExecBuilder("lsblk", "--json", "--list", "--paths", "--output", "NAME,TYPE,MAJ:MIN").
		Context(ctx).
		LogLevel(logrus.TraceLevel, logrus.DebugLevel).
		ErrorStderrLines(1).
		ExecuteCaptureOuput()
	if err != nil {
		return nil, fmt.Errorf("failed to list block devices:\n%w", err)
	}

	devices, err := parseLsblkJson(stdout)
	if err != nil {
		return nil, err
	}

	partitions := []PartitionEntry(nil)
	for _, device := range devices {
		if device.Type != blockDeviceTypePartition {
			continue
		}

		stdout, _, err := shell.NewExecBuilder("blkid", "--probe", "--output", "export", device.Name).
			Context(ctx).
			LogLevel(logrus.TraceLevel, logrus.DebugLevel).
			ErrorStderrLines(1).
			ExecuteCaptureOuput()
		if err != nil {
			logger.Log.Warnf("Failed to probe partition (%s):\n%v", device.Name, err)
			continue
		}

		partitions = append(partitions, NewPartitionEntry(device.Name, device.MajMin, ParseBlkidExport(stdout)))
	}

	return partitions, nil
}

func parseLsblkJson(jsonString string) ([]blockDeviceInfo, error) {
	if strings.TrimSpace(jsonString) == "" {
		return nil, nil
	}

	var output blockDevicesOutput
	err := json.Unmarshal([]byte(jsonString), &output)
	if err != nil {
		return nil, fmt.Errorf("failed to parse lsblk JSON:\n%w", err)
	}

	return output.Devices, nil
}

// ParseBlkidExport parses the KEY=value lines of "blkid --output export".
func ParseBlkidExport(output string) map[string]string {
	properties := make(map[string]string)

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		key, value, found := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !found || key == "" {
			continue
		}
		properties[key] = unescapeBlkidValue(value)
	}

	return properties
}

// blkid escapes shell metacharacters in export values with a backslash.
func unescapeBlkidValue(value string) string {
	if !strings.Contains(value, `\`) {
		return value
	}

	builder := strings.Builder{}
	escaped := false
	for _, c := range value {
		if c == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		builder.WriteRune(c)
	}
	return builder.String()
}

func NewPartitionEntry(path string, majMin string, properties map[string]string) PartitionEntry {
	return PartitionEntry{
		Path:       path,
		MajMin:     majMin,
		Scheme:     PartitionScheme(properties["PART_ENTRY_SCHEME"]),
		DiskId:     properties["PART_ENTRY_DISK"],
		PartTypeId: strings.ToLower(properties["PART_ENTRY_TYPE"]),
		PartUuid:   strings.ToLower(properties["PART_ENTRY_UUID"]),
		PartLabel:  properties["PART_ENTRY_NAME"],
		FsType:     properties["TYPE"],
		FsUuid:     properties["UUID"],
		FsLabel:    properties["LABEL"],
		Properties: properties,
	}
}
