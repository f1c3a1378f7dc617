//go:build windows

package device

import "os"

// Windows has no SIGTERM delivery for arbitrary processes; Kill is the only
// reliable option, so the soft signal degrades to it.
var terminateSignal = os.Kill
