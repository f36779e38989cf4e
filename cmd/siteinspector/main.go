package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RecoveryAshes/SiteInspector/internal/core"
	"github.com/RecoveryAshes/SiteInspector/internal/models"
	"github.com/RecoveryAshes/SiteInspector/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// HTTP头部参数
	headers        []string
	headersFile    string
	validateConfig bool

	// 巡检参数
	startURL       string
	baseURL        string
	mode           string
	maxPages       int
	strict         bool
	strictWarnings bool
	driverKind     string
	headless       bool
	reportDir      string
)

// appConfig 由 PersistentPreRunE 加载,RunE 直接使用
var appConfig *core.Config

// exitCode 进程退出码,PASS为0
var exitCode int

var rootCmd = &cobra.Command{
	Use:   "siteinspector",
	Short: "Web应用巡检工具: 站内爬取 + 购物旅程 + 健康报告",
	Long: `SiteInspector - 对Web应用做一次自动化健康巡检

巡检内容:
  • 同源页面爬取,记录断链和导航失败
  • 控制台错误/警告与失败网络请求收集(过滤字体等噪音)
  • 脚本化购物旅程: 首页 → 商品 → 选尺码 → 加购 → 购物车
  • 输出 audit.json 与 audit.md,退出码反映整体状态

示例:
  # 爬取本地开发服务器
  siteinspector

  # 爬取并执行旅程,最多50页
  siteinspector -u https://shop.example.com -m both --max-pages 50

  # 不启动浏览器,只做静态检查
  siteinspector -u https://shop.example.com --driver static

  # 附加请求头
  siteinspector -u https://staging.example.com -H "Authorization: Bearer token"

  # 验证配置文件
  siteinspector --validate-config

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 命令行参数覆盖配置文件和环境变量
		cfg, err := core.LoadConfig(configFile, cmd.Flags())
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		logConfig := cfg.LogConfig()
		if verbose {
			logConfig.Level = "debug"
		}
		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}
		if verbose {
			utils.Info("详细模式已启用")
		}

		appConfig = cfg
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		headerManager, err := core.NewHeaderManager(appConfig.Headers.File, headers)
		if err != nil {
			return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
		}

		if validateConfig {
			return runValidateConfig(appConfig, headerManager)
		}

		if err := ValidateFlags(startURL, baseURL, mode, maxPages, driverKind); err != nil {
			return err
		}
		if err := appConfig.Validate(); err != nil {
			return fmt.Errorf("配置无效: %w", err)
		}

		// Ctrl+C 取消巡检,已收集的结果仍会写入报告
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		status, err := runAudit(ctx, appConfig, headerManager)
		if err != nil {
			return err
		}
		exitCode = status.ExitCode()
		return nil
	},
}

// runAudit 执行一次巡检并打印终端摘要
func runAudit(ctx context.Context, cfg *core.Config, headerManager *core.HeaderManager) (models.RunStatus, error) {
	opts := cfg.InspectorOptions(headerManager)
	opts.Progress = os.Stderr

	inspector, err := core.NewInspector(opts)
	if err != nil {
		return models.StatusFail, fmt.Errorf("创建巡检器失败: %w", err)
	}

	result, err := inspector.Run(ctx)
	if err != nil {
		return models.StatusFail, err
	}

	fmt.Println()
	fmt.Println(utils.RenderSummary(result.Report))
	fmt.Printf("📄 JSON报告: %s\n", result.JSONPath)
	fmt.Printf("📄 Markdown报告: %s\n", result.MarkdownPath)

	return result.Report.Status, nil
}

// runValidateConfig 校验巡检配置和HTTP头部配置
func runValidateConfig(cfg *core.Config, headerManager *core.HeaderManager) error {
	utils.Info("🔍 验证巡检配置...")
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	utils.Info("🔍 验证HTTP头部配置...")
	if err := headerManager.LoadConfig(); err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if err := headerManager.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	audit := cfg.ToAuditConfig()
	utils.Info("✅ 配置验证通过!")
	utils.Infof("目标: %s (起始 %s)", audit.BaseURL, audit.StartURL)
	utils.Infof("模式: %s, 最大页面数: %d, 驱动: %s", audit.Mode, audit.MaxPages, cfg.Browser.Driver)

	safeHeaders := headerManager.GetSafeHeaders()
	utils.Infof("当前有效的HTTP头部 (%d个):", len(safeHeaders))
	for name, value := range safeHeaders {
		utils.Infof("  %s: %s", name, value)
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	// 不需要加载配置
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("SiteInspector %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径 (默认搜索 ./configs/inspector.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// HTTP头部参数
	rootCmd.PersistentFlags().StringArrayVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().StringVar(&headersFile, "headers-file", "", "HTTP头部配置文件 (默认 configs/headers.yaml)")
	rootCmd.PersistentFlags().BoolVar(&validateConfig, "validate-config", false, "验证配置文件正确性")

	// 巡检参数,默认值只用于帮助信息,实际默认值来自配置
	rootCmd.Flags().StringVarP(&startURL, "url", "u", "", "起始URL (默认等于 --base-url)")
	rootCmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:5173", "站点根URL,决定同源范围")
	rootCmd.Flags().StringVarP(&mode, "mode", "m", string(models.ModeCrawl), "巡检模式 (crawl|journey|both)")
	rootCmd.Flags().IntVar(&maxPages, "max-pages", 50, "最大爬取页面数")
	rootCmd.Flags().BoolVar(&strict, "strict", false, "严格模式 (保留参数,与默认判定相同)")
	rootCmd.Flags().BoolVar(&strictWarnings, "strict-warnings", false, "控制台警告也判定为失败")
	rootCmd.Flags().StringVar(&driverKind, "driver", "rod", "浏览器驱动 (rod|static)")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "无头浏览器模式")
	rootCmd.Flags().StringVarP(&reportDir, "report-dir", "o", "reports", "报告输出目录")

	// 添加子命令
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}
