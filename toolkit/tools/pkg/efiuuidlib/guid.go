// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package efiuuidlib

import (
	"github.com/google/uuid"
)

// EFI stores GUIDs with the first three fields little endian and the last two as bytes. uuid.UUID holds the RFC 4122
// big endian layout.

func guidToEfiBytes(guid uuid.UUID) [16]byte {
	efiBytes := [16]byte{
		guid[3], guid[2], guid[1], guid[0],
		guid[5], guid[4],
		guid[7], guid[6],
	}
	copy(efiBytes[8:], guid[8:])
	return efiBytes
}

func guidFromEfiBytes(efiBytes [16]byte) uuid.UUID {
	guid := uuid.UUID{
		efiBytes[3], efiBytes[2], efiBytes[1], efiBytes[0],
		efiBytes[5], efiBytes[4],
		efiBytes[7], efiBytes[6],
	}
	copy(guid[8:], efiBytes[8:])
	return guid
}
