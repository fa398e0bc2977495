// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package espgeneratorapi

import (
	"fmt"
)

// Config tunes how the ESP mount generator reads the kernel command line and which units it writes. Every field is
// optional. Unset fields take the values in DefaultConfig.
type Config struct {
	KernelArguments KernelArguments `yaml:"kernelArguments" json:"kernelArguments,omitempty"`
	Mount           MountSettings   `yaml:"mount" json:"mount,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		KernelArguments: KernelArguments{
			ImageDevice: DefaultImageDeviceArgument,
			LiveBoot:    DefaultLiveBootArgument,
			Root:        DefaultRootArgument,
		},
		Mount: MountSettings{
			AutomountIdleTimeout: DefaultAutomountIdleTimeout,
			BootUmask:            DefaultBootUmask,
			EfiUmask:             DefaultEfiUmask,
		},
	}
}

func (c *Config) IsValid() error {
	err := c.KernelArguments.IsValid()
	if err != nil {
		return fmt.Errorf("invalid kernelArguments:\n%w", err)
	}

	err = c.Mount.IsValid()
	if err != nil {
		return fmt.Errorf("invalid mount:\n%w", err)
	}

	return nil
}
