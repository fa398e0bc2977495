// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package espgeneratorlib

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/espgeneratorapi"
	"github.com/microsoft/azure-linux-boot-helpers/toolkit/tools/internal/logger"
)

const (
	DefaultConfigFile = "/etc/espgenerator/config.yaml"
)

var (
	ErrConfigRead    = NewEspGeneratorError("Config:Read", "failed to read config file")
	ErrConfigInvalid = NewEspGeneratorError("Config:Invalid", "invalid config file")
)

// LoadConfig reads the config file over the defaults. A missing file is only an error when required is set.
func LoadConfig(configFile string, required bool) (espgeneratorapi.Config, error) {
	config := espgeneratorapi.DefaultConfig()
	if configFile == "" {
		return config, nil
	}

	err := espgeneratorapi.UnmarshalAndValidateYamlFile(configFile, &config)
	if errors.Is(err, fs.ErrNotExist) && !required {
		logger.Log.Debugf("No config file (%s), using defaults", configFile)
		return espgeneratorapi.DefaultConfig(), nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return config, fmt.Errorf("%w (%s):\n%w", ErrConfigRead, configFile, err)
	}
	if err != nil {
		return config, fmt.Errorf("%w (%s):\n%w", ErrConfigInvalid, configFile, err)
	}

	return config, nil
}
