// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package efiuuidlib rewrites EFI boot entries after the ESP's partition UUID changes.
package efiuuidlib

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/asaskevich/govalidator"
	"github.com/google/uuid"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/efivar"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	OtelTracerName = "efiuuidlib"

	loadOptionNamePattern = `^Boot[[:xdigit:]]{4}$`
)

// Version specifies the version of the EFI load option updater.
// The value of this string is inserted during compilation via a linker flag.
var ToolVersion = ""

var ErrInvalidPartUuid = errors.New("invalid partition UUID")

type UpdateOptions struct {
	// Alternate root that efivarfs is found under. Empty means "/".
	RootDir     string
	CurrentUuid string
	NewUuid     string
	Verbose     bool
	DryRun      bool
	Stdout      io.Writer
}

// UpdateLoadOptions points every Boot#### load option that boots from the partition CurrentUuid at NewUuid instead.
// It returns the names of the load options that were (or, for a dry run, would be) updated.
func UpdateLoadOptions(ctx context.Context, options UpdateOptions) ([]string, error) {
	_, span := otel.GetTracerProvider().Tracer(OtelTracerName).Start(ctx, "update_load_options")
	defer span.End()

	stdout := options.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	currentUuid, err := parsePartUuid(options.CurrentUuid)
	if err != nil {
		return nil, err
	}

	newUuid, err := parsePartUuid(options.NewUuid)
	if err != nil {
		return nil, err
	}

	variables, err := efivar.ListAll(options.RootDir)
	if err != nil {
		return nil, err
	}

	updated := []string(nil)
	for _, id := range variables {
		if !isLoadOption(id) {
			if options.Verbose {
				fmt.Fprintf(stdout, "Variable %s is not a load option\n", id.Name)
			}
			continue
		}

		variable, err := efivar.Read(options.RootDir, id.Name, id.Guid)
		if err != nil {
			return updated, fmt.Errorf("failed to read load option %s:\n%w", id.Name, err)
		}

		loadOption, err := ParseLoadOption(variable.Data)
		if err != nil {
			return updated, fmt.Errorf("failed to read load option %s:\n%w", id.Name, err)
		}

		if !loadOption.MatchesPartition(currentUuid) {
			if options.Verbose {
				fmt.Fprintf(stdout, "Load option %s does not match partition %s\n", id.Name, options.CurrentUuid)
			}
			continue
		}

		if options.Verbose {
			dumpLoadOption(stdout, id.Name, loadOption)
		}

		err = loadOption.SetPartitionUuid(newUuid)
		if err != nil {
			return updated, fmt.Errorf("failed to update load option %s partition:\n%w", id.Name, err)
		}

		if options.Verbose {
			dumpLoadOption(stdout, id.Name, loadOption)
		}

		fmt.Fprintf(stdout, "Updating %s HD UUID from %s to %s\n", id.Name, options.CurrentUuid, options.NewUuid)
		updated = append(updated, id.Name)

		if options.DryRun {
			continue
		}

		variable.Data = loadOption.Bytes()
		err = efivar.Write(options.RootDir, variable)
		if err != nil {
			return updated, fmt.Errorf("failed to set load option %s:\n%w", id.Name, err)
		}
		logger.Log.Debugf("Wrote load option %s", id.Name)
	}

	span.SetAttributes(
		attribute.Int("updated_count", len(updated)),
		attribute.Bool("dry_run", options.DryRun),
	)
	return updated, nil
}

func parsePartUuid(value string) (uuid.UUID, error) {
	partUuid, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w \"%s\":\n%w", ErrInvalidPartUuid, value, err)
	}
	return partUuid, nil
}

func isLoadOption(id efivar.VariableId) bool {
	return id.Guid == efivar.GlobalGuid && govalidator.Matches(id.Name, loadOptionNamePattern)
}

func dumpLoadOption(w io.Writer, name string, loadOption *LoadOption) {
	active := ""
	if loadOption.IsActive() {
		active = "* "
	}

	fmt.Fprintf(w, "%s: %s%s %s\n", name, active, loadOption.Description, loadOption.DevicePathString())
	Hexdump(w, loadOption.Bytes())
}
