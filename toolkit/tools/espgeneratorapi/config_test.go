// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package espgeneratorapi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	config := DefaultConfig()
	assert.NoError(t, config.IsValid())
}

func TestConfigPartialYamlKeepsDefaults(t *testing.T) {
	config := DefaultConfig()
	err := UnmarshalAndValidateYaml([]byte(`
kernelArguments:
  imageDevice: eos.image.device
mount:
  efiUmask: "0027"
`), &config)
	assert.NoError(t, err)

	expected := DefaultConfig()
	expected.KernelArguments.ImageDevice = "eos.image.device"
	expected.Mount.EfiUmask = "0027"
	assert.Equal(t, expected, config)
}

func TestConfigUnknownField(t *testing.T) {
	config := DefaultConfig()
	err := UnmarshalAndValidateYaml([]byte("mount:\n  bootMask: \"0022\"\n"), &config)
	assert.ErrorContains(t, err, "field bootMask not found")
}

func TestConfigInvalidUmask(t *testing.T) {
	config := DefaultConfig()
	config.Mount.BootUmask = "0089"

	err := config.IsValid()
	assert.ErrorContains(t, err, "invalid mount:\ninvalid bootUmask value (0089)")
}

func TestConfigInvalidTimeout(t *testing.T) {
	config := DefaultConfig()
	config.Mount.AutomountIdleTimeout = "soon"

	err := config.IsValid()
	assert.ErrorContains(t, err, "invalid automountIdleTimeout value (soon)")

	config.Mount.AutomountIdleTimeout = "1min 30s"
	assert.NoError(t, config.IsValid())
}

func TestConfigInvalidArgumentName(t *testing.T) {
	config := DefaultConfig()
	config.KernelArguments.Root = "root="

	err := config.IsValid()
	assert.ErrorContains(t, err, "invalid kernelArguments:\ninvalid root value")

	config.KernelArguments.Root = ""
	err = config.IsValid()
	assert.ErrorContains(t, err, "argument name cannot be empty")
}

func TestUnmarshalAndValidateYamlFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kernelArguments:\n  liveBoot: eos.live\n"), 0o644))

	config := DefaultConfig()
	err := UnmarshalAndValidateYamlFile(path, &config)
	assert.NoError(t, err)
	assert.Equal(t, "eos.live", config.KernelArguments.LiveBoot)

	marshalled, err := MarshalYaml(&config)
	assert.NoError(t, err)
	assert.Contains(t, marshalled, "liveBoot: eos.live")
}
