package mem

import "runtime"

// ZeroBytes wipes key material once it is no longer needed. Copies made by
// the runtime before the call are not reached.
func ZeroBytes(b []byte) {
	clear(b)
	runtime.KeepAlive(b)
}
