package core

import (
	"time"

	"github.com/RecoveryAshes/SiteInspector/internal/models"
)

// RunState 单次巡检的累积状态
// 只在控制线程中修改;驱动回调写入的是 Sink
type RunState struct {
	Config    models.AuditConfig
	RunID     string
	StartedAt time.Time
	Sink      *ObservationSink

	visitedCount int
	brokenLinks  []models.BrokenLink
	journeys     []models.JourneyOutcome
}

// NewRunState 创建运行状态
func NewRunState(cfg models.AuditConfig, sink *ObservationSink) *RunState {
	if sink == nil {
		sink = NewObservationSink(nil, nil)
	}
	return &RunState{
		Config:    cfg,
		RunID:     models.NewRunID(),
		StartedAt: time.Now(),
		Sink:      sink,
	}
}

// AddVisited 累加已访问页面数
func (s *RunState) AddVisited(n int) {
	s.visitedCount += n
}

// AddBrokenLinks 追加断链
func (s *RunState) AddBrokenLinks(links ...models.BrokenLink) {
	s.brokenLinks = append(s.brokenLinks, links...)
}

// AddJourney 追加旅程结果
func (s *RunState) AddJourney(outcome models.JourneyOutcome) {
	s.journeys = append(s.journeys, outcome)
}

// RecordCrash 致命错误记为一条哨兵断链
func (s *RunState) RecordCrash(reason string) {
	s.brokenLinks = append(s.brokenLinks, models.BrokenLink{
		URL:    models.CoreCrashURL,
		Status: 500,
		Reason: reason,
	})
}

// BuildReport 汇总为报告并计算状态
func (s *RunState) BuildReport(now time.Time) *models.AuditReport {
	obs := s.Sink.Snapshot()
	report := &models.AuditReport{
		RunID:           s.RunID,
		Timestamp:       models.FormatTimestamp(now),
		BaseURL:         s.Config.BaseURL,
		StartURL:        s.Config.StartURL,
		Mode:            s.Config.Mode,
		MaxPages:        s.Config.MaxPages,
		VisitedCount:    s.visitedCount,
		BrokenLinks:     append([]models.BrokenLink{}, s.brokenLinks...),
		ConsoleErrors:   obs.ConsoleErrors,
		ConsoleWarnings: obs.ConsoleWarnings,
		NetworkFailures: obs.NetworkFailures,
		Journeys:        append([]models.JourneyOutcome{}, s.journeys...),
	}
	report.Status = Evaluate(report, s.Config.StrictWarnings)
	return report
}

// Evaluate 计算健康状态
// 没有断链、没有控制台错误、所有旅程PASS,且开启 strictWarnings 时没有控制台警告,才算PASS
// 网络失败只记录,不影响状态
func Evaluate(report *models.AuditReport, strictWarnings bool) models.RunStatus {
	if len(report.BrokenLinks) > 0 || len(report.ConsoleErrors) > 0 {
		return models.StatusFail
	}
	for _, j := range report.Journeys {
		if j.Status != models.JourneyPass {
			return models.StatusFail
		}
	}
	if strictWarnings && len(report.ConsoleWarnings) > 0 {
		return models.StatusFail
	}
	return models.StatusPass
}
