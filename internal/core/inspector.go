package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/RecoveryAshes/SiteInspector/internal/crawlers"
	"github.com/RecoveryAshes/SiteInspector/internal/journeys"
	"github.com/RecoveryAshes/SiteInspector/internal/models"
	"github.com/RecoveryAshes/SiteInspector/internal/utils"
	"github.com/rs/zerolog/log"
)

// DriverFactory 创建浏览器驱动,事件发往 sink
type DriverFactory func(ctx context.Context, sink crawlers.EventSink) (crawlers.Driver, error)

// InspectorOptions 巡检器参数
type InspectorOptions struct {
	Audit     models.AuditConfig
	Script    journeys.Script
	Policy    *utils.URLPolicy
	ReportDir string

	ConsoleNoise []string // nil时使用默认规则
	NetworkNoise []string

	NewDriver DriverFactory

	// Preflight 启动浏览器前的资源检查,可为nil
	Preflight func() []string

	// Progress 爬取进度条输出,nil时不显示
	Progress io.Writer
}

// Result 巡检结果
type Result struct {
	Report       *models.AuditReport
	JSONPath     string
	MarkdownPath string
}

// Inspector 巡检协调器
// 按模式先执行旅程再执行爬取,两者共用一个驱动和一个事件接收器
type Inspector struct {
	opts   InspectorOptions
	runner *journeys.Runner
}

// NewInspector 创建巡检器
func NewInspector(opts InspectorOptions) (*Inspector, error) {
	if err := opts.Audit.Validate(); err != nil {
		return nil, err
	}
	if opts.NewDriver == nil {
		return nil, fmt.Errorf("未指定浏览器驱动")
	}
	if opts.Policy == nil {
		opts.Policy = utils.DefaultURLPolicy()
	}

	in := &Inspector{opts: opts}
	if opts.Audit.Mode.RunsJourney() {
		runner, err := journeys.NewRunner(opts.Script)
		if err != nil {
			return nil, err
		}
		in.runner = runner
	}
	return in, nil
}

// Run 执行一次巡检
// 任何阶段失败都不会阻止报告生成;只有报告写入失败时返回错误
func (in *Inspector) Run(ctx context.Context) (*Result, error) {
	state := NewRunState(in.opts.Audit, NewObservationSink(in.opts.ConsoleNoise, in.opts.NetworkNoise))

	utils.Infof("🚀 开始巡检 (run_id=%s)", state.RunID)
	utils.Infof("目标: %s", state.Config.BaseURL)
	utils.Infof("模式: %s", state.Config.Mode)

	in.execute(ctx, state)

	report := state.BuildReport(time.Now())
	reporter := utils.NewReporter(in.opts.ReportDir)
	jsonPath, mdPath, err := reporter.WriteReport(report)
	if err != nil {
		return &Result{Report: report}, fmt.Errorf("写入报告失败: %w", err)
	}

	log.Info().
		Str("status", string(report.Status)).
		Int("visited", report.VisitedCount).
		Int("broken_links", len(report.BrokenLinks)).
		Int("console_errors", len(report.ConsoleErrors)).
		Dur("duration", time.Since(state.StartedAt)).
		Msg("巡检完成")

	return &Result{Report: report, JSONPath: jsonPath, MarkdownPath: mdPath}, nil
}

// execute 执行各阶段,意外错误和panic记为 INSPECTOR_CORE
func (in *Inspector) execute(ctx context.Context, state *RunState) {
	defer func() {
		if p := recover(); p != nil {
			reason := fmt.Sprint(p)
			utils.Errorf("❌ 巡检器崩溃: %s", reason)
			state.RecordCrash(reason)
		}
	}()

	if in.opts.Preflight != nil {
		in.opts.Preflight()
	}

	driver, err := in.opts.NewDriver(ctx, state.Sink)
	if err != nil {
		utils.Errorf("❌ 启动浏览器失败: %v", err)
		state.RecordCrash(err.Error())
		return
	}
	defer func() {
		if err := driver.Close(); err != nil {
			utils.Warnf("关闭浏览器失败: %v", err)
		}
	}()

	cfg := state.Config
	if cfg.Mode.RunsJourney() {
		state.AddJourney(in.runner.Run(ctx, driver, cfg.BaseURL))
	}

	if cfg.Mode.RunsCrawl() {
		if ctx.Err() != nil {
			utils.Warn("巡检已取消,跳过爬取")
			return
		}
		if err := in.crawl(ctx, driver, state); err != nil {
			utils.Errorf("❌ 爬取中止: %v", err)
			state.RecordCrash(err.Error())
		}
	}
}

// crawl 执行爬取阶段,取消不算错误
func (in *Inspector) crawl(ctx context.Context, driver crawlers.Driver, state *RunState) error {
	cfg := state.Config
	opts := crawlers.CrawlOptions{
		NavTimeout:        cfg.CrawlTimeout,
		Settle:            cfg.CrawlSettle,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Policy:            in.opts.Policy,
	}

	if in.opts.Progress != nil {
		bar := utils.NewProgressBarTo(in.opts.Progress, cfg.MaxPages, "🕷️  爬取页面")
		defer bar.Finish()
		opts.OnPage = func(_ string, visited, _ int) {
			bar.Set(visited)
		}
	}

	result, err := crawlers.NewSiteCrawler(driver, opts).Crawl(ctx, cfg.StartURL, cfg.BaseURL, cfg.MaxPages)
	if result != nil {
		state.AddVisited(len(result.Visited))
		state.AddBrokenLinks(result.BrokenLinks...)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		utils.Warnf("爬取被中断,已访问 %d 页", state.visitedCount)
		return nil
	}
	return err
}
