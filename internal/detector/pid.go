// Package detector answers "is this process alive" questions against the OS
// process table, by recorded pid or by executable name.
package detector

import (
	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// PIDAlive returns true if a live (non-zombie) process with the given pid
// exists.
func PIDAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	running, err := p.IsRunning()
	return err == nil && running
}

// PIDDetector detects an application by a recorded PID. When StartUnix is
// non-zero it additionally verifies the process start time so a reused PID
// is not mistaken for the original process.
type PIDDetector struct {
	PID       int
	StartUnix int64
}

func (d PIDDetector) Alive() (bool, error) {
	if !PIDAlive(d.PID) {
		return false, nil
	}
	if d.StartUnix > 0 {
		cur := ProcStartUnix(d.PID)
		if cur > 0 && cur != d.StartUnix {
			return false, nil // PID reused; not our process
		}
	}
	return true, nil
}
