// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package espgeneratorapi

import (
	"fmt"
	"strings"

	"github.com/asaskevich/govalidator"
)

const (
	DefaultImageDeviceArgument = "endless.image.device"
	DefaultLiveBootArgument    = "endless.live_boot"
	DefaultRootArgument        = "root"
)

// KernelArguments names the kernel command line arguments the generator looks at.
type KernelArguments struct {
	// Device holding the OS image when it is not the disk the root filesystem lives on. For example, a Windows
	// dual-boot install where the image is a file on an NTFS partition.
	ImageDevice string `yaml:"imageDevice" json:"imageDevice,omitempty"`
	// Present when booting a live image. Without a resolvable image device no ESP is mounted.
	LiveBoot string `yaml:"liveBoot" json:"liveBoot,omitempty"`
	// The root filesystem device. Used when the root mount's device cannot be matched to a partition.
	Root string `yaml:"root" json:"root,omitempty"`
}

func (a *KernelArguments) IsValid() error {
	for _, arg := range []struct {
		field string
		value string
	}{
		{"imageDevice", a.ImageDevice},
		{"liveBoot", a.LiveBoot},
		{"root", a.Root},
	} {
		err := validateArgumentName(arg.value)
		if err != nil {
			return fmt.Errorf("invalid %s value:\n%w", arg.field, err)
		}
	}

	return nil
}

func validateArgumentName(name string) error {
	if name == "" {
		return fmt.Errorf("argument name cannot be empty")
	}

	if !govalidator.IsPrintableASCII(name) || strings.ContainsAny(name, " \t=\"") {
		return fmt.Errorf("argument name (%s) must be printable ASCII without spaces, quotes or '='", name)
	}

	return nil
}
