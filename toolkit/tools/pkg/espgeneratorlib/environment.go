// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package espgeneratorlib

import (
	"os"
	"strconv"

	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/espgeneratorapi"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/file"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/logger"
)

const (
	RootPathEnv = "ESPGEN_ROOT_PATH"
	InInitrdEnv = "SYSTEMD_IN_INITRD"

	initrdReleasePath = "/etc/initrd-release"
)

// Environment is everything about the invocation that is not part of the gathered system state.
type Environment struct {
	RootDir  string
	InInitrd bool
	Config   espgeneratorapi.Config
}

func NewEnvironment(rootDir string, config espgeneratorapi.Config) *Environment {
	return &Environment{
		RootDir:  rootDir,
		InInitrd: detectInitrd(rootDir),
		Config:   config,
	}
}

// RootDirFromEnv returns the alternate root directory set through ESPGEN_ROOT_PATH, if any.
func RootDirFromEnv() string {
	return os.Getenv(RootPathEnv)
}

// systemd tells generators whether they run in the initrd. When started some other way, fall back to the
// marker file that systemd itself checks.
func detectInitrd(rootDir string) bool {
	value, found := os.LookupEnv(InInitrdEnv)
	if found {
		inInitrd, err := strconv.ParseBool(value)
		if err != nil {
			logger.Log.Warnf("Invalid %s value (%s), assuming not in initrd", InInitrdEnv, value)
			return false
		}
		return inInitrd
	}

	exists, err := file.PathExists(file.RootedPath(rootDir, initrdReleasePath))
	if err != nil {
		logger.Log.Warnf("Failed to check for (%s): %v", initrdReleasePath, err)
		return false
	}
	return exists
}
