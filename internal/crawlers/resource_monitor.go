package crawlers

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const mb = 1024 * 1024

// ResourceMonitorConfig 资源检查阈值
type ResourceMonitorConfig struct {
	MinFreeMemoryMB  uint64        // 可用内存低于该值时告警
	CPULoadThreshold float64       // CPU使用率(%)超过该值时告警,>=100视为禁用
	SampleInterval   time.Duration // CPU采样时长
}

// DefaultResourceMonitorConfig 默认阈值
func DefaultResourceMonitorConfig() ResourceMonitorConfig {
	return ResourceMonitorConfig{
		MinFreeMemoryMB:  500,
		CPULoadThreshold: 90,
		SampleInterval:   100 * time.Millisecond,
	}
}

// ResourceSnapshot 一次系统资源采样
type ResourceSnapshot struct {
	TotalMemory     uint64
	AvailableMemory uint64
	CPUPercent      float64
	MemoryPressure  string // normal, warning, critical
}

// ResourceMonitor 启动浏览器前的系统资源检查
// 资源紧张只告警,不阻止巡检
type ResourceMonitor struct {
	config ResourceMonitorConfig

	// 采样函数,测试中可替换
	virtualMemory func() (*mem.VirtualMemoryStat, error)
	cpuPercent    func(interval time.Duration, percpu bool) ([]float64, error)
}

// NewResourceMonitor 创建资源监控器
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	if config.SampleInterval <= 0 {
		config.SampleInterval = 100 * time.Millisecond
	}
	return &ResourceMonitor{
		config:        config,
		virtualMemory: mem.VirtualMemory,
		cpuPercent:    cpu.Percent,
	}
}

// Snapshot 采样内存和CPU
func (rm *ResourceMonitor) Snapshot() (ResourceSnapshot, error) {
	var snap ResourceSnapshot

	vm, err := rm.virtualMemory()
	if err != nil {
		return snap, fmt.Errorf("获取系统内存失败: %w", err)
	}
	snap.TotalMemory = vm.Total
	snap.AvailableMemory = vm.Available

	// CPU采样失败不影响内存结果
	if percentages, err := rm.cpuPercent(rm.config.SampleInterval, false); err != nil {
		log.Warn().Err(err).Msg("获取CPU使用率失败")
	} else if len(percentages) > 0 {
		snap.CPUPercent = percentages[0]
	}

	availableMB := snap.AvailableMemory / mb
	switch {
	case availableMB < rm.config.MinFreeMemoryMB/2:
		snap.MemoryPressure = "critical"
	case availableMB < rm.config.MinFreeMemoryMB:
		snap.MemoryPressure = "warning"
	default:
		snap.MemoryPressure = "normal"
	}
	return snap, nil
}

// Preflight 检查资源并返回告警信息,没有告警时返回空
func (rm *ResourceMonitor) Preflight() []string {
	snap, err := rm.Snapshot()
	if err != nil {
		log.Warn().Err(err).Msg("资源检查失败,跳过")
		return nil
	}

	log.Debug().
		Float64("total_gb", float64(snap.TotalMemory)/(1024*mb)).
		Uint64("available_mb", snap.AvailableMemory/mb).
		Float64("cpu", snap.CPUPercent).
		Msg("系统资源")

	var warnings []string
	if snap.MemoryPressure != "normal" {
		warnings = append(warnings, fmt.Sprintf("可用内存不足(当前%dMB, 建议至少%dMB),浏览器可能不稳定",
			snap.AvailableMemory/mb, rm.config.MinFreeMemoryMB))
	}
	if rm.config.CPULoadThreshold < 100 && snap.CPUPercent > rm.config.CPULoadThreshold {
		warnings = append(warnings, fmt.Sprintf("CPU负载过高(当前%.1f%%),导航超时的概率会增加", snap.CPUPercent))
	}

	for _, w := range warnings {
		log.Warn().Msg(w)
	}
	return warnings
}
