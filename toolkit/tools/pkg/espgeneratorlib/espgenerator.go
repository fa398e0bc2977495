// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package espgeneratorlib

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	OtelTracerName = "espgeneratorlib"
)

// Version specifies the version of the ESP mount generator.
// The value of this string is inserted during compilation via a linker flag.
var ToolVersion = ""

var (
	ErrGatherPrint = NewEspGeneratorError("Generate:GatherPrint", "failed to print system data")
	ErrWriteUnits  = NewEspGeneratorError("Generate:WriteUnits", "failed to write mount units")
)

type EspGeneratorOptions struct {
	// Alternate root that all system paths are read from. Empty means "/".
	RootDir string
	// The generator's normal priority unit directory. Empty means log the decision only.
	NormalDir string
	DryRun    bool
	// Print the gathered system data as JSON and stop.
	GatherData   bool
	SaveDataPath string
	LoadDataPath string

	ConfigFile         string
	ConfigFileRequired bool

	// Where GatherData output goes. Defaults to os.Stdout.
	Stdout io.Writer
}

// GenerateEspMountUnits runs one gather, resolve and emit cycle. Not finding an ESP to mount is not an error.
func GenerateEspMountUnits(ctx context.Context, options EspGeneratorOptions) (espMount *EspMount, err error) {
	ctx, span := otel.GetTracerProvider().Tracer(OtelTracerName).Start(ctx, "generate_esp_mount_units")
	span.SetAttributes(
		attribute.Bool("dry_run", options.DryRun),
		attribute.Bool("replay", options.LoadDataPath != ""),
	)
	defer func() {
		if err != nil {
			errorNames := []string{"Unset"}
			if namedErrors := GetAllEspGeneratorErrors(err); len(namedErrors) > 0 {
				errorNames = make([]string, len(namedErrors))
				for i, namedError := range namedErrors {
					errorNames[i] = namedError.Name()
				}
			}
			span.SetAttributes(
				attribute.StringSlice("errors.name", errorNames),
			)
			span.SetStatus(codes.Error, errorNames[len(errorNames)-1])
		}
		span.End()
	}()

	config, err := LoadConfig(options.ConfigFile, options.ConfigFileRequired)
	if err != nil {
		return nil, err
	}

	env := NewEnvironment(options.RootDir, config)

	var data *SystemData
	if options.LoadDataPath != "" {
		logger.Log.Infof("Loading system data from (%s)", options.LoadDataPath)
		data, err = LoadSystemData(options.LoadDataPath)
	} else {
		data, err = Gather(ctx, options.RootDir)
	}
	if err != nil {
		return nil, err
	}

	if options.SaveDataPath != "" {
		logger.Log.Infof("Saving system data to (%s)", options.SaveDataPath)
		err = SaveSystemData(options.SaveDataPath, data)
		if err != nil {
			return nil, err
		}
	}

	if options.GatherData {
		err = printSystemData(options.Stdout, data)
		if err != nil {
			return nil, err
		}
		return nil, nil
	}

	espMount = ResolveEspMount(ctx, data, env)
	if espMount == nil {
		return nil, nil
	}

	logger.Log.Infof("Mounting %s", espMount)

	if options.DryRun || options.NormalDir == "" {
		logger.Log.Debugf("Not writing units")
		return espMount, nil
	}

	err = espMount.WriteUnits(options.NormalDir, config.Mount.AutomountIdleTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w:\n%w", ErrWriteUnits, err)
	}

	return espMount, nil
}

// ResolveEspMount combines the partition and mount path decisions. It returns nil when nothing should be mounted.
func ResolveEspMount(ctx context.Context, data *SystemData, env *Environment) *EspMount {
	_, span := otel.GetTracerProvider().Tracer(OtelTracerName).Start(ctx, "resolve_esp_mount")
	defer span.End()

	esp := ResolveEspPartition(data, env)
	if esp == nil {
		return nil
	}
	logger.Log.Debugf("Found ESP (%s)", esp.Path)

	target := ResolveMountPath(esp, data)
	if target == "" {
		return nil
	}

	span.SetAttributes(attribute.String("target", target))
	return NewEspMount(esp, target, env.Config.Mount)
}

func printSystemData(w io.Writer, data *SystemData) error {
	if w == nil {
		w = os.Stdout
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	err := encoder.Encode(data)
	if err != nil {
		return fmt.Errorf("%w:\n%w", ErrGatherPrint, err)
	}
	return nil
}
