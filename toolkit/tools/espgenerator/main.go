// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// systemd generator that mounts the EFI System Partition on /boot or /efi

package main

import (
	"context"
	"os"

	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/exe"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/file"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/logger"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/telemetry"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/pkg/espgeneratorlib"
	"gopkg.in/alecthomas/kingpin.v2"
)

const (
	toolName = "espgenerator"
)

var (
	app = kingpin.New(toolName, "Generates systemd units that automount the EFI System Partition.")

	normalDir = app.Arg("normal-dir", "Generator output directory for units of normal priority.").String()
	earlyDir  = app.Arg("early-dir", "Generator output directory for units of early priority. Unused.").String()
	lateDir   = app.Arg("late-dir", "Generator output directory for units of late priority. Unused.").String()

	dryRun     = app.Flag("dry-run", "Resolve the mount and log it without writing any units.").Short('n').Bool()
	gatherData = app.Flag("gather-data", "Print the gathered system data as JSON and exit.").Bool()
	saveData   = app.Flag("save-data", "Save the gathered system data to a .cpio, .cpio.gz or .cpio.zst archive or a directory.").String()
	loadData   = app.Flag("load-data", "Use system data saved with --save-data instead of probing the system.").String()
	rootDir    = app.Flag("root", "Alternate root directory to read system state from.").Envar(espgeneratorlib.RootPathEnv).String()
	configFile = app.Flag("config-file", "Path of the generator config file. Defaults to "+espgeneratorlib.DefaultConfigFile+" if it exists.").String()

	logFlags       = exe.SetupLogFlags(app)
	verbosityFlags = exe.SetupVerbosityFlags(app)
)

func main() {
	app.Version(espgeneratorlib.ToolVersion)
	kingpin.MustParse(app.Parse(os.Args[1:]))

	exe.ApplyVerbosity(logFlags, verbosityFlags)
	logger.InitBestEffort(logFlags)

	// Generators run before the journal, so their output only survives in the kernel log.
	if *normalDir != "" && !*gatherData && file.IsWritable(logger.KmsgPath) {
		kmsgFile, err := logger.UseKmsg(toolName)
		if err != nil {
			logger.Log.Warnf("Failed to log to kmsg:\n%v", err)
		} else {
			defer kmsgFile.Close()
		}
	}

	logger.Log.Debugf("Output directories: normal (%s), early (%s), late (%s)", *normalDir, *earlyDir, *lateDir)

	err := telemetry.InitTelemetry(toolName, espgeneratorlib.ToolVersion)
	if err != nil {
		logger.Log.Warnf("Failed to initialize telemetry:\n%v", err)
	}

	err = generate()

	shutdownErr := telemetry.ShutdownTelemetry(context.Background())
	if shutdownErr != nil {
		logger.Log.Warnf("Failed to shut down telemetry:\n%v", shutdownErr)
	}

	if err != nil {
		logger.Log.Fatalf("ESP mount generation failed:\n%v", err)
	}
}

func generate() error {
	options := espgeneratorlib.EspGeneratorOptions{
		RootDir:            *rootDir,
		NormalDir:          *normalDir,
		DryRun:             *dryRun,
		GatherData:         *gatherData,
		SaveDataPath:       *saveData,
		LoadDataPath:       *loadData,
		ConfigFile:         *configFile,
		ConfigFileRequired: *configFile != "",
		Stdout:             os.Stdout,
	}
	if options.ConfigFile == "" {
		options.ConfigFile = file.RootedPath(*rootDir, espgeneratorlib.DefaultConfigFile)
	}

	_, err := espgeneratorlib.GenerateEspMountUnits(context.Background(), options)
	return err
}
