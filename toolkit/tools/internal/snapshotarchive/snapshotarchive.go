// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package snapshotarchive stores a set of named files as a cpio archive, optionally compressed, or as a plain
// directory.
package snapshotarchive

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cavaliercoder/go-cpio"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/file"
)

type Format int

const (
	FormatDirectory Format = iota
	FormatCpio
	FormatCpioGzip
	FormatCpioZstd
)

const (
	fileMode = 0o644
)

// FormatFromPath picks the storage format from the path's extension. Anything that is not a cpio archive is a
// directory.
func FormatFromPath(path string) Format {
	switch {
	case strings.HasSuffix(path, ".cpio.gz"):
		return FormatCpioGzip
	case strings.HasSuffix(path, ".cpio.zst"):
		return FormatCpioZstd
	case strings.HasSuffix(path, ".cpio"):
		return FormatCpio
	default:
		return FormatDirectory
	}
}

// Save writes files to path. Entries are written in name order with fixed metadata, so saving the same files twice
// produces identical archives.
func Save(path string, files map[string][]byte) error {
	format := FormatFromPath(path)
	if format == FormatDirectory {
		return saveDirectory(path, files)
	}

	err := os.MkdirAll(filepath.Dir(path), os.ModePerm)
	if err != nil {
		return fmt.Errorf("failed to create directory for (%s):\n%w", path, err)
	}

	outputFile, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive file (%s):\n%w", path, err)
	}
	defer outputFile.Close()

	err = writeArchive(outputFile, format, files)
	if err != nil {
		return fmt.Errorf("failed to write archive (%s):\n%w", path, err)
	}

	return nil
}

func writeArchive(w io.Writer, format Format, files map[string][]byte) (err error) {
	var compressor io.WriteCloser
	switch format {
	case FormatCpioGzip:
		compressor = pgzip.NewWriter(w)

	case FormatCpioZstd:
		compressor, err = zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("failed to create zstd writer:\n%w", err)
		}
	}

	archiveWriter := w
	if compressor != nil {
		archiveWriter = compressor
	}

	cpioWriter := cpio.NewWriter(archiveWriter)

	for _, name := range sortedNames(files) {
		data := files[name]

		header := &cpio.Header{
			Name:    name,
			Mode:    cpio.ModeRegular | fileMode,
			Size:    int64(len(data)),
			ModTime: time.Unix(0, 0),
		}

		err = cpioWriter.WriteHeader(header)
		if err != nil {
			return fmt.Errorf("failed to write cpio header for (%s):\n%w", name, err)
		}

		_, err = cpioWriter.Write(data)
		if err != nil {
			return fmt.Errorf("failed to write (%s) to cpio archive:\n%w", name, err)
		}
	}

	err = cpioWriter.Close()
	if err != nil {
		return fmt.Errorf("failed to finish cpio archive:\n%w", err)
	}

	if compressor != nil {
		err = compressor.Close()
		if err != nil {
			return fmt.Errorf("failed to finish compressed stream:\n%w", err)
		}
	}

	return nil
}

// Load reads the files stored at path by Save.
func Load(path string) (map[string][]byte, error) {
	format := FormatFromPath(path)
	if format == FormatDirectory {
		return loadDirectory(path)
	}

	inputFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive file (%s):\n%w", path, err)
	}
	defer inputFile.Close()

	files, err := readArchive(inputFile, format)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive (%s):\n%w", path, err)
	}

	return files, nil
}

func readArchive(r io.Reader, format Format) (map[string][]byte, error) {
	archiveReader := r
	switch format {
	case FormatCpioGzip:
		pgzipReader, err := pgzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgzip reader:\n%w", err)
		}
		defer pgzipReader.Close()
		archiveReader = pgzipReader

	case FormatCpioZstd:
		zstdReader, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader:\n%w", err)
		}
		defer zstdReader.Close()
		archiveReader = zstdReader
	}

	files := make(map[string][]byte)
	cpioReader := cpio.NewReader(archiveReader)
	for {
		header, err := cpioReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read cpio header:\n%w", err)
		}

		if header.Mode&cpio.ModeType != cpio.ModeRegular {
			return nil, fmt.Errorf("unsupported entry (%s) in archive: only regular files are allowed", header.Name)
		}

		buffer := bytes.Buffer{}
		_, err = io.Copy(&buffer, cpioReader)
		if err != nil {
			return nil, fmt.Errorf("failed to read (%s) from cpio archive:\n%w", header.Name, err)
		}

		files[header.Name] = buffer.Bytes()
	}

	return files, nil
}

func saveDirectory(dir string, files map[string][]byte) error {
	for _, name := range sortedNames(files) {
		path := filepath.Join(dir, name)
		err := file.Write(string(files[name]), path)
		if err != nil {
			return fmt.Errorf("failed to write (%s):\n%w", path, err)
		}
	}

	return nil
}

func loadDirectory(dir string) (map[string][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory (%s):\n%w", dir, err)
	}

	files := make(map[string][]byte)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read (%s):\n%w", path, err)
		}

		files[entry.Name()] = data
	}

	return files, nil
}

func sortedNames(files map[string][]byte) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
