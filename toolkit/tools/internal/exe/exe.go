// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package exe defines QoL functions to simplify and unify creating executables
package exe

import (
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/logger"
	"gopkg.in/alecthomas/kingpin.v2"
)

func SetupLogFlags(k *kingpin.Application) *logger.LogFlags {
	lf := &logger.LogFlags{}
	lf.LogColor = k.Flag(logger.ColorFlag, logger.ColorFlagHelp).PlaceHolder(logger.ColorsPlaceholder).Enum(logger.Colors()...)
	lf.LogFile = k.Flag(logger.FileFlag, logger.FileFlagHelp).String()
	lf.LogLevel = k.Flag(logger.LevelsFlag, logger.LevelsHelp).PlaceHolder(logger.LevelsPlaceholder).Enum(logger.Levels()...)
	return lf
}

// VerbosityFlags are the short-hand alternatives to --log-level that systemd generators are usually run with.
type VerbosityFlags struct {
	Quiet *bool
	Debug *bool
}

func SetupVerbosityFlags(k *kingpin.Application) *VerbosityFlags {
	v := &VerbosityFlags{}
	v.Quiet = k.Flag("quiet", "Only log warnings and errors.").Short('q').Bool()
	v.Debug = k.Flag("debug", "Enable debug logging.").Short('d').Bool()
	return v
}

// ApplyVerbosity folds the verbosity flags into the log flags. An explicit --log-level always wins.
func ApplyVerbosity(lf *logger.LogFlags, v *VerbosityFlags) {
	if lf.LogLevel != nil && *lf.LogLevel != "" {
		return
	}

	level := ""
	switch {
	case v.Debug != nil && *v.Debug:
		level = "debug"
	case v.Quiet != nil && *v.Quiet:
		level = "warning"
	}

	lf.LogLevel = &level
}
