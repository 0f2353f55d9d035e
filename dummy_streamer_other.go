//go:build !linux

package main

import (
	"context"
	"fmt"

	"github.com/mso/pkg/settings"
)

func RunSimulator(ctx context.Context, devicePath string, cfg settings.SimulatorConfig, rate uint8) error {
	return fmt.Errorf("[SIM] simulation via named pipes is not supported on this platform")
}
