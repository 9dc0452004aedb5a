package config

import (
	nativecommon "cdpchain/native/common"
)

// Pauses builds the module switchboard from PausedModules.
func (c *Config) Pauses() *nativecommon.Pauses {
	return nativecommon.NewPauses(c.PausedModules...)
}
