// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package efivar reads and writes EFI variables through efivarfs.
package efivar

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/file"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/logger"
	"golang.org/x/sys/unix"
	"golang.org/x/text/encoding/unicode"
)

const (
	FirmwareDir = "/sys/firmware/efi"
	EfivarsDir  = "/sys/firmware/efi/efivars"

	// efivarfs prefixes every variable with its 32-bit attributes.
	attributesSize = 4

	// FS_IMMUTABLE_FL from linux/fs.h. efivarfs marks most variables immutable.
	fsImmutableFl uint32 = 0x00000010
)

const (
	AttributeNonVolatile       uint32 = 0x00000001
	AttributeBootServiceAccess uint32 = 0x00000002
	AttributeRuntimeAccess     uint32 = 0x00000004
)

var (
	// GlobalGuid is the vendor GUID of the variables defined by the UEFI specification, such as Boot####.
	GlobalGuid = uuid.MustParse("8be4df61-93ca-11d2-aa0d-00e098032b8c")

	// LoaderGuid is the vendor GUID of the variables published by systemd-boot and other boot loaders that
	// implement the boot loader interface.
	LoaderGuid = uuid.MustParse("4a67b082-0a4c-41cf-b6c7-440b29bb8c4f")
)

var ErrInvalidVariable = errors.New("invalid EFI variable")

type Variable struct {
	Name       string
	Guid       uuid.UUID
	Attributes uint32
	Data       []byte
}

// FileName returns the efivarfs file name of a variable: "<name>-<guid>".
func FileName(name string, guid uuid.UUID) string {
	return name + "-" + guid.String()
}

func VariablePath(root string, name string, guid uuid.UUID) string {
	return filepath.Join(file.RootedPath(root, EfivarsDir), FileName(name, guid))
}

// Read returns the variable's attributes and payload. A missing variable is reported with fs.ErrNotExist.
func Read(root string, name string, guid uuid.UUID) (*Variable, error) {
	path := VariablePath(root, name, guid)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if len(data) < attributesSize {
		return nil, fmt.Errorf("%w: %s is less than %d bytes", ErrInvalidVariable, FileName(name, guid),
			attributesSize)
	}

	variable := &Variable{
		Name:       name,
		Guid:       guid,
		Attributes: binary.LittleEndian.Uint32(data[:attributesSize]),
		Data:       data[attributesSize:],
	}
	return variable, nil
}

// ReadString reads a variable holding a NUL-terminated UTF-16LE string. A missing or malformed variable yields nil
// without an error. Malformed variables are logged.
func ReadString(root string, name string, guid uuid.UUID) (*string, error) {
	variable, err := Read(root, name, guid)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if errors.Is(err, ErrInvalidVariable) {
		logger.Log.Warnf("Invalid EFI variable %s is less than %d bytes", FileName(name, guid), attributesSize)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read EFI variable (%s):\n%w", FileName(name, guid), err)
	}

	value, err := DecodeUtf16String(variable.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode EFI variable (%s):\n%w", FileName(name, guid), err)
	}

	return &value, nil
}

// DecodeUtf16String decodes a UTF-16LE string. Any trailing NUL code units, and a dangling odd byte, are dropped.
func DecodeUtf16String(data []byte) (string, error) {
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}
	for len(data) >= 2 && data[len(data)-2] == 0 && data[len(data)-1] == 0 {
		data = data[:len(data)-2]
	}

	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}

	return string(decoded), nil
}

// EncodeUtf16String encodes value as UTF-16LE with a terminating NUL.
func EncodeUtf16String(value string) ([]byte, error) {
	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(value))
	if err != nil {
		return nil, err
	}

	return append(encoded, 0, 0), nil
}

// VariableId names one variable in efivarfs.
type VariableId struct {
	Name string
	Guid uuid.UUID
}

// ListAll returns every variable in efivarfs, in file name order. Files not named "<name>-<guid>" are skipped.
func ListAll(root string) ([]VariableId, error) {
	dir := file.RootedPath(root, EfivarsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list EFI variables (%s):\n%w", dir, err)
	}

	ids := []VariableId(nil)
	for _, entry := range entries {
		id, ok := parseFileName(entry.Name())
		if !ok {
			continue
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func parseFileName(fileName string) (VariableId, bool) {
	// The GUID is always 36 characters, preceded by a dash.
	const guidLength = 36
	if len(fileName) < guidLength+2 || fileName[len(fileName)-guidLength-1] != '-' {
		return VariableId{}, false
	}

	guid, err := uuid.Parse(fileName[len(fileName)-guidLength:])
	if err != nil {
		return VariableId{}, false
	}

	return VariableId{Name: fileName[:len(fileName)-guidLength-1], Guid: guid}, true
}

// Write stores a variable. efivarfs marks most variables immutable, so the flag is cleared for the duration of the
// write and restored afterwards.
func Write(root string, variable *Variable) error {
	path := VariablePath(root, variable.Name, variable.Guid)

	payload := bytes.Buffer{}
	payload.Grow(attributesSize + len(variable.Data))
	binary.Write(&payload, binary.LittleEndian, variable.Attributes)
	payload.Write(variable.Data)

	restoreImmutable, err := clearImmutable(path)
	if err != nil {
		return fmt.Errorf("failed to make EFI variable (%s) mutable:\n%w", path, err)
	}
	defer restoreImmutable()

	flags := os.O_WRONLY | os.O_CREATE
	if !isEfivarfs(filepath.Dir(path)) {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open EFI variable (%s):\n%w", path, err)
	}
	defer f.Close()

	// efivarfs requires the attributes and data in a single write.
	_, err = f.Write(payload.Bytes())
	if err != nil {
		return fmt.Errorf("failed to write EFI variable (%s):\n%w", path, err)
	}

	return nil
}

func isEfivarfs(dir string) bool {
	var statfs unix.Statfs_t
	err := unix.Statfs(dir, &statfs)
	if err != nil {
		return false
	}
	return uint32(statfs.Type) == uint32(unix.EFIVARFS_MAGIC)
}

// clearImmutable drops FS_IMMUTABLE_FL from an existing file. Filesystems without inode flags are left alone.
func clearImmutable(path string) (func(), error) {
	noop := func() {}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return noop, nil
	}
	if err != nil {
		return noop, err
	}

	fd := int(f.Fd())
	attrs, err := unix.IoctlGetUint32(fd, unix.FS_IOC_GETFLAGS)
	if err != nil || attrs&fsImmutableFl == 0 {
		f.Close()
		return noop, nil
	}

	err = unix.IoctlSetPointerInt(fd, unix.FS_IOC_SETFLAGS, int(attrs&^fsImmutableFl))
	if err != nil {
		f.Close()
		return noop, err
	}

	restore := func() {
		defer f.Close()
		err := unix.IoctlSetPointerInt(fd, unix.FS_IOC_SETFLAGS, int(attrs))
		if err != nil {
			logger.Log.Warnf("Failed to restore immutable flag on (%s): %v", path, err)
		}
	}
	return restore, nil
}
