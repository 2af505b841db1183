package interp

import (
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/teranos/pyrunner/errors"
)

// Stats describes the session's worker process
type Stats struct {
	SessionID     string  `json:"session_id"`
	Alive         bool    `json:"alive"`
	PID           int     `json:"pid"`
	Python        string  `json:"python"`
	Jedi          bool    `json:"jedi"`
	Restarts      int     `json:"restarts"`
	UptimeSeconds float64 `json:"uptime_seconds"`

	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	NumThreads int32   `json:"num_threads"`

	HostMemoryTotal     uint64 `json:"host_memory_total"`
	HostMemoryAvailable uint64 `json:"host_memory_available"`
}

// Stats samples the worker process. Process metrics are left zero when the
// worker is gone; the error reports why sampling failed.
func (s *Session) Stats() (Stats, error) {
	s.mu.Lock()
	c := s.client
	st := Stats{
		SessionID:     s.id,
		Restarts:      s.restarts,
		UptimeSeconds: time.Since(s.started).Seconds(),
	}
	s.mu.Unlock()

	if vm, err := mem.VirtualMemory(); err == nil {
		st.HostMemoryTotal = vm.Total
		st.HostMemoryAvailable = vm.Available
	}

	if c == nil {
		return st, errors.Wrap(errors.ErrWorkerExited, "no python worker")
	}
	info := c.Info()
	st.PID = c.PID()
	st.Python = info.VersionShort
	st.Jedi = info.Jedi
	st.Alive = c.Alive()
	if !st.Alive {
		return st, nil
	}

	p, err := process.NewProcess(int32(st.PID))
	if err != nil {
		return st, errors.Wrapf(err, "failed to inspect python worker (pid %d)", st.PID)
	}
	if m, err := p.MemoryInfo(); err == nil {
		st.RSSBytes = m.RSS
	}
	if cpu, err := p.CPUPercent(); err == nil {
		st.CPUPercent = cpu
	}
	if n, err := p.NumThreads(); err == nil {
		st.NumThreads = n
	}
	return st, nil
}
