package detector

import (
	"strings"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// FindByName scans the OS process table for processes whose executable name
// matches name case-insensitively. A trailing ".exe" on either side is
// ignored so catalogs written for one platform keep matching on another.
// Returns the matched pids in process-table order.
func FindByName(name string) ([]int, error) {
	want := normalizeName(name)
	if want == "" {
		return nil, nil
	}
	procs, err := gopsproc.Processes()
	if err != nil {
		return nil, err
	}
	var pids []int
	for _, p := range procs {
		n, err := p.Name()
		if err != nil {
			continue // raced with process exit, or no permission
		}
		if normalizeName(n) == want {
			pids = append(pids, int(p.Pid))
		}
	}
	return pids, nil
}

func normalizeName(n string) string {
	n = strings.ToLower(strings.TrimSpace(n))
	return strings.TrimSuffix(n, ".exe")
}
