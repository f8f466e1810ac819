package core

import (
	"sixstep/commutation"
	"sixstep/config"
)

// BridgeDriver is the three-phase complementary PWM stage the platform
// provides. Platform-specific implementations own the timers and pins.
type BridgeDriver interface {
	// ConfigureBridge claims the gate pins of drive and returns the u, v
	// and w channels, all floating. It may be called once.
	ConfigureBridge(drive *config.Drive) ([3]commutation.Channel, error)

	// MaxDuty returns the compare value of the largest duty the channels
	// accept for the configured period
	MaxDuty() commutation.Duty
}

// Global singleton used by core code.
var bridgeDriver BridgeDriver

// SetBridgeDriver is called by target-specific code to register its driver.
func SetBridgeDriver(d BridgeDriver) {
	bridgeDriver = d
}

// MustBridge returns the configured driver or panics if missing.
func MustBridge() BridgeDriver {
	if bridgeDriver == nil {
		panic("bridge driver not configured")
	}
	return bridgeDriver
}
