//go:build !windows

package device

import "syscall"

// terminateSignal asks scrcpy to exit cleanly before we resort to Kill.
var terminateSignal = syscall.SIGTERM
