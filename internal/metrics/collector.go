package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

type Disk struct {
	Path  string
	Used  uint64
	Free  uint64
	Total uint64
}

type System struct {
	CPUPercent float64
	MemUsed    uint64
	MemTotal   uint64
	Disks      []Disk
}

type Snapshot struct {
	System      System
	CollectedAt time.Time
}

// Collector samples host resources relevant to an update: free space where
// the installer is downloaded and installed, memory and CPU load.
type Collector struct {
	mu      sync.RWMutex
	lastCPU float64
	paths   []string
}

// New creates a Collector watching the given filesystem paths.
func New(paths ...string) *Collector {
	return &Collector{paths: paths}
}

// SampleCPU blocks for interval and stores the averaged CPU load.
func (c *Collector) SampleCPU(ctx context.Context, interval time.Duration) {
	if percent, err := cpu.PercentWithContext(ctx, interval, false); err == nil && len(percent) > 0 {
		c.mu.Lock()
		c.lastCPU = percent[0]
		c.mu.Unlock()
	}
}

// Collect gathers a best-effort snapshot. Paths that cannot be read are
// skipped.
func (c *Collector) Collect(ctx context.Context) Snapshot {
	snap := Snapshot{CollectedAt: time.Now()}

	c.mu.RLock()
	snap.System.CPUPercent = c.lastCPU
	c.mu.RUnlock()

	if vmStat, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.System.MemUsed = vmStat.Used
		snap.System.MemTotal = vmStat.Total
	}

	for _, p := range c.paths {
		st, err := disk.UsageWithContext(ctx, p)
		if err != nil {
			continue
		}
		snap.System.Disks = append(snap.System.Disks, Disk{
			Path:  p,
			Used:  st.Used,
			Free:  st.Free,
			Total: st.Total,
		})
	}

	return snap
}

// DiskFree returns the free bytes on the filesystem holding path.
func DiskFree(path string) (uint64, error) {
	st, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return st.Free, nil
}
