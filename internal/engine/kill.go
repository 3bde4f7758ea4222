package engine

import (
	"context"
	"errors"
	"fmt"

	gops "github.com/shirou/gopsutil/v4/process"

	"github.com/appmand/appmand/internal/detector"
)

// killPID force-terminates a single process. A pid that is already gone is
// an error: the caller treats it as "nothing killed" and escalates to the
// name-based tier.
func killPID(ctx context.Context, pid int) error {
	p, err := gops.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return fmt.Errorf("pid %d not found: %w", pid, err)
	}
	if err := p.KillWithContext(ctx); err != nil {
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	return nil
}

// killByName force-terminates every process whose name matches and returns
// how many were killed. Partial success counts as success; an error is only
// surfaced when matches existed and none could be killed.
func killByName(ctx context.Context, name string) (int, error) {
	pids, err := detector.FindByName(name)
	if err != nil {
		return 0, err
	}
	killed := 0
	var errs []error
	for _, pid := range pids {
		if err := killPID(ctx, pid); err != nil {
			errs = append(errs, err)
			continue
		}
		killed++
	}
	if killed == 0 && len(errs) > 0 {
		return 0, errors.Join(errs...)
	}
	return killed, nil
}
