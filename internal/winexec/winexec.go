// Package winexec holds the platform glue for spawning console tools
// without flashing a window on the maintenance environment.
package winexec

import "os/exec"

// Hide marks the command to run without creating a console window. It is a
// no-op on platforms without that concept.
func Hide(cmd *exec.Cmd) { hide(cmd) }
