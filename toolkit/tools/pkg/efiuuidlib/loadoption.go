// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package efiuuidlib

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/efivar"
)

const (
	LoadOptionActive uint32 = 0x00000001

	// Attributes and FilePathListLength.
	loadOptionHeaderSize = 4 + 2
)

var ErrInvalidLoadOption = errors.New("invalid load option")

// LoadOption is an EFI_LOAD_OPTION, the payload of a Boot#### variable.
type LoadOption struct {
	Attributes  uint32
	Description string
	DevicePath  []DevicePathNode

	raw []byte
}

func ParseLoadOption(data []byte) (*LoadOption, error) {
	if len(data) < loadOptionHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is too short", ErrInvalidLoadOption, len(data))
	}

	raw := append([]byte(nil), data...)
	pathListLength := int(binary.LittleEndian.Uint16(raw[4:6]))

	// The description is a NUL-terminated UTF-16 string.
	descriptionEnd := -1
	for offset := loadOptionHeaderSize; offset+1 < len(raw); offset += 2 {
		if raw[offset] == 0 && raw[offset+1] == 0 {
			descriptionEnd = offset + 2
			break
		}
	}
	if descriptionEnd < 0 {
		return nil, fmt.Errorf("%w: unterminated description", ErrInvalidLoadOption)
	}

	description, err := efivar.DecodeUtf16String(raw[loadOptionHeaderSize:descriptionEnd])
	if err != nil {
		return nil, fmt.Errorf("%w: bad description:\n%w", ErrInvalidLoadOption, err)
	}

	if pathListLength == 0 || descriptionEnd+pathListLength > len(raw) {
		return nil, fmt.Errorf("%w: file path list length %d does not fit", ErrInvalidLoadOption, pathListLength)
	}

	devicePath, err := parseDevicePath(raw[descriptionEnd : descriptionEnd+pathListLength])
	if err != nil {
		return nil, fmt.Errorf("%w:\n%w", ErrInvalidLoadOption, err)
	}

	loadOption := &LoadOption{
		Attributes:  binary.LittleEndian.Uint32(raw[0:4]),
		Description: description,
		DevicePath:  devicePath,
		raw:         raw,
	}
	return loadOption, nil
}

// Bytes returns the encoded load option, including any changes made through SetPartitionUuid.
func (o *LoadOption) Bytes() []byte {
	return o.raw
}

func (o *LoadOption) IsActive() bool {
	return o.Attributes&LoadOptionActive != 0
}

// gptHardDrive returns the first device path node when it is a hard drive on a GPT disk identified by partition
// GUID. Only that form can be matched and updated.
func (o *LoadOption) gptHardDrive() (*DevicePathNode, *HardDriveNode) {
	if len(o.DevicePath) == 0 {
		return nil, nil
	}

	node := &o.DevicePath[0]
	if !node.IsHardDrive() {
		return nil, nil
	}

	hd, err := node.HardDrive()
	if err != nil || hd.Format != HardDriveFormatGpt || hd.SignatureType != HardDriveSignatureGuid {
		return nil, nil
	}

	return node, hd
}

// MatchesPartition returns true if the load option boots from the GPT partition with the given UUID.
func (o *LoadOption) MatchesPartition(partUuid uuid.UUID) bool {
	_, hd := o.gptHardDrive()
	return hd != nil && guidFromEfiBytes(hd.Signature) == partUuid
}

// SetPartitionUuid points the load option's hard drive node at a different partition.
func (o *LoadOption) SetPartitionUuid(partUuid uuid.UUID) error {
	node, hd := o.gptHardDrive()
	if hd == nil {
		return fmt.Errorf("only GPT hard drive device paths with GUID signatures can be updated")
	}

	return node.setHardDriveSignature(guidToEfiBytes(partUuid))
}

func (o *LoadOption) DevicePathString() string {
	return formatDevicePath(o.DevicePath)
}
