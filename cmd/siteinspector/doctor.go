package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/RecoveryAshes/SiteInspector/internal/core"
	"github.com/RecoveryAshes/SiteInspector/internal/crawlers"
	"github.com/RecoveryAshes/SiteInspector/internal/utils"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/spf13/cobra"
)

// doctorCmd 检查巡检运行环境
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "检查运行环境 (浏览器、系统资源、报告目录、配置)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !runDoctor(appConfig) {
			return fmt.Errorf("环境检查未通过,请解决上述问题")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// runDoctor 逐项检查并打印结果,全部通过返回true
// 资源紧张只提示,不算失败
func runDoctor(cfg *core.Config) bool {
	fmt.Println("==============================================")
	fmt.Println("  SiteInspector 环境检查")
	fmt.Println("==============================================")

	allOK := true

	fmt.Printf("✅ Go版本: %s\n", runtime.Version())
	fmt.Printf("✅ 操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	// 配置
	if err := cfg.Validate(); err != nil {
		fmt.Printf("❌ 配置无效: %v\n", err)
		allOK = false
	} else {
		audit := cfg.ToAuditConfig()
		fmt.Printf("✅ 配置有效: %s (模式 %s, 驱动 %s)\n", audit.BaseURL, audit.Mode, cfg.Browser.Driver)
	}

	// 浏览器
	if crawlers.DriverKind(cfg.Browser.Driver) == crawlers.DriverStatic {
		fmt.Println("✅ static驱动不需要浏览器")
	} else if ok := checkBrowser(cfg.Browser.Bin); !ok {
		allOK = false
	}

	// 系统资源
	monitor := crawlers.NewResourceMonitor(cfg.ResourceMonitorConfig())
	if snap, err := monitor.Snapshot(); err != nil {
		fmt.Printf("⚠️  无法获取系统资源: %v\n", err)
	} else {
		icon := "✅"
		if snap.MemoryPressure != "normal" {
			icon = "⚠️ "
		}
		fmt.Printf("%s 可用内存: %dMB / %dMB, CPU: %.1f%%\n",
			icon, snap.AvailableMemory/(1024*1024), snap.TotalMemory/(1024*1024), snap.CPUPercent)
	}

	// 报告目录
	reportDir := utils.ResolveReportDir(cfg.Report.Dir)
	if err := checkWritable(reportDir); err != nil {
		fmt.Printf("❌ 报告目录不可写 %s: %v\n", reportDir, err)
		allOK = false
	} else {
		fmt.Printf("✅ 报告目录: %s\n", reportDir)
	}

	fmt.Println("==============================================")
	if allOK {
		fmt.Println("✅ 环境检查通过!")
	} else {
		fmt.Println("❌ 环境检查失败,请解决上述问题。")
	}
	return allOK
}

// checkBrowser 检查Chromium是否可用
func checkBrowser(bin string) bool {
	if bin != "" {
		if _, err := os.Stat(bin); err != nil {
			fmt.Printf("❌ 指定的浏览器不存在: %s\n", bin)
			return false
		}
		fmt.Printf("✅ 浏览器: %s\n", bin)
		return true
	}

	if path, has := launcher.LookPath(); has {
		fmt.Printf("✅ 浏览器: %s\n", path)
		return true
	}
	// rod 会在首次启动时自动下载Chromium
	fmt.Println("⚠️  未找到本地Chromium,首次运行时将自动下载")
	return true
}

// checkWritable 确认目录可创建且可写
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(filepath.Clean(name))
}
