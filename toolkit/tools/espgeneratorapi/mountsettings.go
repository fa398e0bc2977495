// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package espgeneratorapi

import (
	"fmt"

	"github.com/asaskevich/govalidator"
)

const (
	DefaultAutomountIdleTimeout = "2min"
	DefaultBootUmask            = "0022"
	DefaultEfiUmask             = "0077"

	umaskPattern    = `^0?[0-7]{3}$`
	timespanPattern = `^[0-9]+(us|ms|s|min|h|d|w)?( [0-9]+(us|ms|s|min|h|d|w)?)*$`
)

type MountSettings struct {
	// How long the automounted ESP may stay idle before it is unmounted, as a systemd time span.
	AutomountIdleTimeout string `yaml:"automountIdleTimeout" json:"automountIdleTimeout,omitempty"`
	// Umask used when the ESP is mounted on /boot.
	BootUmask string `yaml:"bootUmask" json:"bootUmask,omitempty"`
	// Umask used when the ESP is mounted on /efi.
	EfiUmask string `yaml:"efiUmask" json:"efiUmask,omitempty"`
}

func (s *MountSettings) IsValid() error {
	if !govalidator.Matches(s.AutomountIdleTimeout, timespanPattern) {
		return fmt.Errorf("invalid automountIdleTimeout value (%s): expected a time span such as 2min",
			s.AutomountIdleTimeout)
	}

	if !govalidator.Matches(s.BootUmask, umaskPattern) {
		return fmt.Errorf("invalid bootUmask value (%s): expected an octal umask such as 0022", s.BootUmask)
	}

	if !govalidator.Matches(s.EfiUmask, umaskPattern) {
		return fmt.Errorf("invalid efiUmask value (%s): expected an octal umask such as 0077", s.EfiUmask)
	}

	return nil
}
