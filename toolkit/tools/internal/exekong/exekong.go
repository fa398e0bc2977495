// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package exekong shares the logging flags of the kong based tools.
package exekong

import (
	"strings"

	"github.com/alecthomas/kong"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/logger"
)

// LogFlags is embedded in a tool's kong command. Its help and enum tags are filled in by Vars.
type LogFlags struct {
	LogColor string `name:"log-color" placeholder:"(always|auto|never)" help:"${logcolorhelp}" enum:"${logcolorvalues}" default:""`
	LogFile  string `name:"log-file" help:"${logfilehelp}"`
	LogLevel string `name:"log-level" placeholder:"(panic|fatal|error|warn|info|debug|trace)" help:"${loglevelhelp}" enum:"${loglevelvalues}" default:""`
}

// Vars returns the kong variables needed by LogFlags plus the "version" variable read by kong.VersionFlag.
func Vars(toolVersion string) kong.Vars {
	// The trailing empty enum value lets a flag stay unset, leaving the choice to logger.InitBestEffort.
	return kong.Vars{
		"version":        toolVersion,
		"logcolorhelp":   logger.ColorFlagHelp,
		"logcolorvalues": strings.Join(logger.Colors(), ",") + ",",
		"logfilehelp":    logger.FileFlagHelp,
		"loglevelhelp":   logger.LevelsHelp,
		"loglevelvalues": strings.Join(logger.Levels(), ",") + ",",
	}
}

func (f LogFlags) AsLoggerFlags() *logger.LogFlags {
	return &logger.LogFlags{
		LogColor: &f.LogColor,
		LogFile:  &f.LogFile,
		LogLevel: &f.LogLevel,
	}
}
