package transcoder

import (
	"fmt"

	"github.com/shirou/gopsutil/v4/process"
)

// Usage is a resource snapshot of a transcoder process.
type Usage struct {
	CPUPercent float64 `json:"cpu_percent"`
	RSSBytes   uint64  `json:"rss_bytes"`
}

// Stats samples CPU and resident memory of pid.
func Stats(pid int) (Usage, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return Usage{}, fmt.Errorf("transcoder: process %d: %w", pid, err)
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		return Usage{}, fmt.Errorf("transcoder: cpu of %d: %w", pid, err)
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return Usage{}, fmt.Errorf("transcoder: memory of %d: %w", pid, err)
	}
	return Usage{CPUPercent: cpu, RSSBytes: mem.RSS}, nil
}
