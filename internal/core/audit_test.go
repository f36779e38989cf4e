package core

import (
	"testing"
	"time"

	"github.com/RecoveryAshes/SiteInspector/internal/models"
)

func TestEvaluate(t *testing.T) {
	pass := models.JourneyOutcome{Name: "Shopper Flow", Status: models.JourneyPass}
	warn := models.JourneyOutcome{Name: "Shopper Flow", Status: models.JourneyWarn, Error: "No Add Button"}

	tests := []struct {
		name           string
		report         models.AuditReport
		strictWarnings bool
		want           models.RunStatus
	}{
		{"全部为空", models.AuditReport{}, false, models.StatusPass},
		{"有断链", models.AuditReport{BrokenLinks: []models.BrokenLink{{URL: "x", Status: 404, Reason: "HTTP Error"}}}, false, models.StatusFail},
		{"有控制台错误", models.AuditReport{ConsoleErrors: []string{"boom"}}, false, models.StatusFail},
		{"旅程通过", models.AuditReport{Journeys: []models.JourneyOutcome{pass}}, false, models.StatusPass},
		{"旅程WARN也失败", models.AuditReport{Journeys: []models.JourneyOutcome{pass, warn}}, false, models.StatusFail},
		{"警告默认不影响", models.AuditReport{ConsoleWarnings: []string{"w"}}, false, models.StatusPass},
		{"严格警告模式", models.AuditReport{ConsoleWarnings: []string{"w"}}, true, models.StatusFail},
		{"严格警告模式无警告", models.AuditReport{}, true, models.StatusPass},
		{"网络失败不影响", models.AuditReport{NetworkFailures: []string{"GET x - aborted"}}, true, models.StatusPass},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(&tt.report, tt.strictWarnings); got != tt.want {
				t.Errorf("Evaluate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRunState_BuildReport(t *testing.T) {
	cfg := models.AuditConfig{
		BaseURL:  "http://localhost:5173",
		StartURL: "http://localhost:5173/shop",
		Mode:     models.ModeBoth,
		MaxPages: 20,
	}
	sink := NewObservationSink(nil, nil)
	state := NewRunState(cfg, sink)

	state.AddJourney(models.JourneyOutcome{Name: "Shopper Flow", Status: models.JourneyPass})
	state.AddVisited(3)
	state.AddVisited(2)
	sink.OnConsole(models.ConsoleWarning, "deprecated API")
	sink.OnRequestFailed("GET", "http://localhost:5173/api", "net::ERR_ABORTED")

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	report := state.BuildReport(now)

	if report.RunID == "" || report.RunID != state.RunID {
		t.Errorf("RunID = %q", report.RunID)
	}
	if report.Timestamp != models.FormatTimestamp(now) {
		t.Errorf("Timestamp = %q", report.Timestamp)
	}
	if report.Status != models.StatusPass {
		t.Errorf("Status = %s", report.Status)
	}
	if report.VisitedCount != 5 || report.MaxPages != 20 || report.Mode != models.ModeBoth {
		t.Errorf("配置回显错误: %+v", report)
	}
	if report.StartURL != cfg.StartURL || report.BaseURL != cfg.BaseURL {
		t.Errorf("URL回显错误: %+v", report)
	}
	if len(report.ConsoleWarnings) != 1 || len(report.NetworkFailures) != 1 {
		t.Errorf("观测结果缺失: %+v", report)
	}
	if report.BrokenLinks == nil || report.ConsoleErrors == nil {
		t.Error("空列表应为非nil切片")
	}
}

func TestRunState_RecordCrash(t *testing.T) {
	state := NewRunState(models.AuditConfig{Mode: models.ModeCrawl}, nil)
	state.RecordCrash("browser exited unexpectedly")

	report := state.BuildReport(time.Now())
	if report.Status != models.StatusFail {
		t.Errorf("Status = %s", report.Status)
	}
	want := models.BrokenLink{URL: "INSPECTOR_CORE", Status: 500, Reason: "browser exited unexpectedly"}
	if len(report.BrokenLinks) != 1 || report.BrokenLinks[0] != want {
		t.Errorf("BrokenLinks = %+v", report.BrokenLinks)
	}
}
