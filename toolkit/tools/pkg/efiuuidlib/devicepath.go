// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package efiuuidlib

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/efivar"
)

// Device path node types and subtypes from the UEFI specification.
const (
	DevicePathTypeMedia uint8 = 0x04
	DevicePathTypeEnd   uint8 = 0x7f

	DevicePathSubtypeHardDrive uint8 = 0x01
	DevicePathSubtypeFilePath  uint8 = 0x04

	DevicePathSubtypeEndInstance uint8 = 0x01
	DevicePathSubtypeEndEntire   uint8 = 0xff

	HardDriveFormatMbr uint8 = 0x01
	HardDriveFormatGpt uint8 = 0x02

	HardDriveSignatureMbr  uint8 = 0x01
	HardDriveSignatureGuid uint8 = 0x02

	devicePathHeaderSize = 4

	// Header, partition number, start, size, signature, format and signature type.
	hardDriveNodeSize     = devicePathHeaderSize + 4 + 8 + 8 + 16 + 1 + 1
	hardDriveSignatureOff = devicePathHeaderSize + 4 + 8 + 8
)

var ErrInvalidDevicePath = errors.New("invalid device path")

// DevicePathNode is one node of a device path. Data aliases the load option it was parsed from, so changes to it
// are reflected in the load option.
type DevicePathNode struct {
	Type    uint8
	Subtype uint8
	Data    []byte // Whole node including the header.
}

// HardDriveNode is a Hard Drive Media Device Path.
type HardDriveNode struct {
	PartitionNumber uint32
	PartitionStart  uint64
	PartitionSize   uint64
	Signature       [16]byte
	Format          uint8
	SignatureType   uint8
}

func parseDevicePath(data []byte) ([]DevicePathNode, error) {
	nodes := []DevicePathNode(nil)
	for offset := 0; offset < len(data); {
		if len(data)-offset < devicePathHeaderSize {
			return nil, fmt.Errorf("%w: truncated node header at offset %d", ErrInvalidDevicePath, offset)
		}

		length := int(binary.LittleEndian.Uint16(data[offset+2 : offset+4]))
		if length < devicePathHeaderSize || offset+length > len(data) {
			return nil, fmt.Errorf("%w: node at offset %d has bad length %d", ErrInvalidDevicePath, offset, length)
		}

		node := DevicePathNode{
			Type:    data[offset],
			Subtype: data[offset+1],
			Data:    data[offset : offset+length],
		}
		nodes = append(nodes, node)
		offset += length

		if node.Type == DevicePathTypeEnd && node.Subtype == DevicePathSubtypeEndEntire {
			return nodes, nil
		}
	}

	return nil, fmt.Errorf("%w: missing end node", ErrInvalidDevicePath)
}

func (n *DevicePathNode) IsHardDrive() bool {
	return n.Type == DevicePathTypeMedia && n.Subtype == DevicePathSubtypeHardDrive
}

func (n *DevicePathNode) HardDrive() (*HardDriveNode, error) {
	if !n.IsHardDrive() {
		return nil, fmt.Errorf("%w: node (%d,%d) is not a hard drive", ErrInvalidDevicePath, n.Type, n.Subtype)
	}
	if len(n.Data) < hardDriveNodeSize {
		return nil, fmt.Errorf("%w: hard drive node is %d bytes", ErrInvalidDevicePath, len(n.Data))
	}

	b := n.Data[devicePathHeaderSize:]
	hd := &HardDriveNode{
		PartitionNumber: binary.LittleEndian.Uint32(b[0:4]),
		PartitionStart:  binary.LittleEndian.Uint64(b[4:12]),
		PartitionSize:   binary.LittleEndian.Uint64(b[12:20]),
		Format:          b[36],
		SignatureType:   b[37],
	}
	copy(hd.Signature[:], b[20:36])
	return hd, nil
}

// setHardDriveSignature overwrites the signature in place.
func (n *DevicePathNode) setHardDriveSignature(signature [16]byte) error {
	if !n.IsHardDrive() || len(n.Data) < hardDriveNodeSize {
		return fmt.Errorf("%w: not a hard drive node", ErrInvalidDevicePath)
	}

	copy(n.Data[hardDriveSignatureOff:hardDriveSignatureOff+16], signature[:])
	return nil
}

func (n *DevicePathNode) String() string {
	switch {
	case n.IsHardDrive():
		hd, err := n.HardDrive()
		if err != nil {
			break
		}
		return hd.String()

	case n.Type == DevicePathTypeMedia && n.Subtype == DevicePathSubtypeFilePath:
		path, err := efivar.DecodeUtf16String(n.Data[devicePathHeaderSize:])
		if err != nil {
			break
		}
		return fmt.Sprintf("File(%s)", path)
	}

	return fmt.Sprintf("Path(%d,%d,%s)", n.Type, n.Subtype, hex.EncodeToString(n.Data[devicePathHeaderSize:]))
}

func (hd *HardDriveNode) String() string {
	return fmt.Sprintf("HD(%d,%s,%s,0x%x,0x%x)", hd.PartitionNumber, hd.formatName(), hd.signatureString(),
		hd.PartitionStart, hd.PartitionSize)
}

func (hd *HardDriveNode) formatName() string {
	switch hd.Format {
	case HardDriveFormatMbr:
		return "MBR"
	case HardDriveFormatGpt:
		return "GPT"
	default:
		return fmt.Sprintf("%d", hd.Format)
	}
}

func (hd *HardDriveNode) signatureString() string {
	switch hd.SignatureType {
	case HardDriveSignatureMbr:
		return fmt.Sprintf("0x%08x", binary.LittleEndian.Uint32(hd.Signature[:4]))
	case HardDriveSignatureGuid:
		return guidFromEfiBytes(hd.Signature).String()
	default:
		return "0"
	}
}

// formatDevicePath renders nodes the way efibootmgr does, for example
// "HD(1,GPT,9cf7d938-86c5-4f09-8401-fd0d6e4c646c,0x800,0x100000)/File(\EFI\endless\shimx64.efi)".
func formatDevicePath(nodes []DevicePathNode) string {
	builder := strings.Builder{}
	separator := ""
	for i := range nodes {
		node := &nodes[i]
		if node.Type == DevicePathTypeEnd {
			if node.Subtype == DevicePathSubtypeEndInstance {
				builder.WriteString(",")
				separator = ""
			}
			continue
		}

		builder.WriteString(separator)
		builder.WriteString(node.String())
		separator = "/"
	}
	return builder.String()
}
