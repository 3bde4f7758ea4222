package detector

import (
	"os"
	"strings"
	"testing"

	gops "github.com/shirou/gopsutil/v4/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDAlive(t *testing.T) {
	assert.True(t, PIDAlive(os.Getpid()))
	assert.False(t, PIDAlive(1<<28), "out-of-range pid must be dead")
	assert.False(t, PIDAlive(0))
	assert.False(t, PIDAlive(-1))
}

func ownName(t *testing.T) string {
	t.Helper()
	self, err := gops.NewProcess(int32(os.Getpid()))
	require.NoError(t, err)
	name, err := self.Name()
	require.NoError(t, err)
	return name
}

func TestFindByNameFindsSelf(t *testing.T) {
	pids, err := FindByName(ownName(t))
	require.NoError(t, err)
	assert.Contains(t, pids, os.Getpid())
}

func TestFindByNameIsCaseInsensitive(t *testing.T) {
	pids, err := FindByName(strings.ToUpper(ownName(t)))
	require.NoError(t, err)
	assert.Contains(t, pids, os.Getpid())
}

func TestFindByNameIgnoresExeSuffix(t *testing.T) {
	pids, err := FindByName(ownName(t) + ".exe")
	require.NoError(t, err)
	assert.Contains(t, pids, os.Getpid())
}

func TestFindByNameNoMatch(t *testing.T) {
	pids, err := FindByName("definitely-not-a-real-process-zzz")
	require.NoError(t, err)
	assert.Empty(t, pids)
}

func TestPIDDetectorGuardsAgainstReuse(t *testing.T) {
	start := ProcStartUnix(os.Getpid())
	require.Positive(t, start)

	d := PIDDetector{PID: os.Getpid(), StartUnix: start}
	alive, err := d.Alive()
	require.NoError(t, err)
	assert.True(t, alive)

	// A recorded start time from a different epoch means the pid was reused.
	stale := PIDDetector{PID: os.Getpid(), StartUnix: start - 3600}
	alive, err = stale.Alive()
	require.NoError(t, err)
	assert.False(t, alive)

	// Zero disables the guard for records that predate start tracking.
	legacy := PIDDetector{PID: os.Getpid()}
	alive, err = legacy.Alive()
	require.NoError(t, err)
	assert.True(t, alive)
}
