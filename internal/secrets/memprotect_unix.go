//go:build linux || darwin

package secrets

import "syscall"

// lockMemory locks the byte slice's memory page(s) to prevent swapping to disk.
// Best-effort: failure is silently ignored (process may lack CAP_IPC_LOCK).
func lockMemory(b []byte) {
	if len(b) == 0 {
		return
	}
	_ = syscall.Mlock(b)
}

// unlockMemory unlocks previously locked memory pages.
// Best-effort: failure is silently ignored.
func unlockMemory(b []byte) {
	if len(b) == 0 {
		return
	}
	_ = syscall.Munlock(b)
}

// disableCoreDumps sets RLIMIT_CORE to 0 to prevent secret material from
// appearing in core dumps. Best-effort: failure is silently ignored.
func disableCoreDumps() {
	_ = syscall.Setrlimit(syscall.RLIMIT_CORE, &syscall.Rlimit{Cur: 0, Max: 0})
}
