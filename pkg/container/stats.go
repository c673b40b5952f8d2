package container

import (
	"strings"

	dockerContainerType "github.com/docker/docker/api/types/container"

	"github.com/nicholas-fedor/docker-monitor/pkg/types"
)

// percent scales a ratio to a percentage.
const percent = 100.0

// ComputeStats derives resource usage figures from one Docker stats sample.
//
// CPU usage is only reported when both the container and the system CPU counters advanced
// since the previous sample. Memory percentage is only reported with a non-zero limit.
func ComputeStats(sample dockerContainerType.StatsResponse) types.ContainerStats {
	stats := types.ContainerStats{}

	cpuDelta := float64(sample.CPUStats.CPUUsage.TotalUsage) - float64(sample.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(sample.CPUStats.SystemUsage) - float64(sample.PreCPUStats.SystemUsage)

	if cpuDelta > 0 && systemDelta > 0 {
		cpu := cpuDelta / systemDelta * float64(onlineCPUs(sample.CPUStats)) * percent
		stats.CPUPercent = &cpu
	}

	usage, limit := sample.MemoryStats.Usage, sample.MemoryStats.Limit
	stats.MemoryUsage = &usage
	stats.MemoryLimit = &limit

	if limit > 0 {
		memPercent := float64(usage) / float64(limit) * percent
		stats.MemoryPercent = &memPercent
	}

	var rx, tx uint64
	for _, network := range sample.Networks {
		rx += network.RxBytes
		tx += network.TxBytes
	}

	stats.NetworkRx = &rx
	stats.NetworkTx = &tx

	var reads, writes uint64

	for _, entry := range sample.BlkioStats.IoServiceBytesRecursive {
		switch strings.ToLower(entry.Op) {
		case "read":
			reads += entry.Value
		case "write":
			writes += entry.Value
		}
	}

	stats.BlockRead = &reads
	stats.BlockWrite = &writes

	return stats
}

// onlineCPUs falls back to the per-CPU counter length and then to a single CPU.
func onlineCPUs(cpu dockerContainerType.CPUStats) uint32 {
	if cpu.OnlineCPUs > 0 {
		return cpu.OnlineCPUs
	}

	if n := len(cpu.CPUUsage.PercpuUsage); n > 0 {
		return uint32(n) //nolint:gosec // bounded by the host CPU count
	}

	return 1
}
