package engine

import (
	"io"
	"os/exec"
)

// spawn starts argv detached and returns the child pid. The child's stdio is
// routed to the configured per-app log files, or discarded when no log
// destination is set. A reaper goroutine waits on the child so it never
// lingers as a zombie while the engine is alive; detached children orphaned
// by engine exit are adopted by init as usual.
func (e *Engine) spawn(appID string, argv []string) (int, error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	configureSysProcAttr(cmd)

	outW, errW, err := e.applog.Writers(appID)
	if err != nil {
		return 0, err
	}
	if outW != nil {
		cmd.Stdout = outW
	}
	if errW != nil {
		cmd.Stderr = errW
	}

	if err := cmd.Start(); err != nil {
		closeAllWriters(outW, errW)
		return 0, err
	}
	pid := cmd.Process.Pid
	go func() {
		_ = cmd.Wait()
		closeAllWriters(outW, errW)
	}()
	return pid, nil
}

func closeAllWriters(ws ...io.WriteCloser) {
	for _, w := range ws {
		if w != nil {
			_ = w.Close()
		}
	}
}
