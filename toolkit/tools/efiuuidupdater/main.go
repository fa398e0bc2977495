// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Tool to point EFI boot entries at a new ESP partition UUID

package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/exekong"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/logger"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/pkg/efiuuidlib"
)

type EfiUuidUpdaterCmd struct {
	Verbose     bool             `name:"verbose" short:"v" help:"Print verbose messages."`
	DryRun      bool             `name:"dry-run" short:"n" help:"Only show what would be done."`
	Root        string           `name:"root" help:"Alternate root directory that efivarfs is mounted under."`
	Version     kong.VersionFlag `name:"version" help:"Print the version and exit."`
	CurrentUuid string           `arg:"" name:"cur-uuid" help:"Partition UUID the boot entries currently use." optional:""`
	NewUuid     string           `arg:"" name:"new-uuid" help:"Partition UUID to use instead." optional:""`
	exekong.LogFlags
}

func main() {
	ctx := context.Background()

	cli := &EfiUuidUpdaterCmd{}

	_ = kong.Parse(cli,
		kong.Name("efiuuidupdater"),
		kong.Description("Update all Boot#### options using partition CUR_UUID to NEW_UUID."),
		exekong.Vars(efiuuidlib.ToolVersion),
		kong.HelpOptions{
			Compact:   true,
			FlagsLast: true,
		},
		kong.UsageOnError())

	logger.InitBestEffort(cli.LogFlags.AsLoggerFlags())

	if cli.CurrentUuid == "" || cli.NewUuid == "" {
		logger.Log.Fatalf("No partition UUIDs supplied")
	}

	_, err := efiuuidlib.UpdateLoadOptions(ctx, efiuuidlib.UpdateOptions{
		RootDir:     cli.Root,
		CurrentUuid: cli.CurrentUuid,
		NewUuid:     cli.NewUuid,
		Verbose:     cli.Verbose,
		DryRun:      cli.DryRun,
	})
	if err != nil {
		logger.Log.Fatalf("load option update failed:\n%v", err)
	}
}
