package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/SiteInspector/internal/models"
	"github.com/schollz/progressbar/v3"
)

const (
	// RootEnv 设置后报告写入 <root>/reports/latest
	RootEnv = "INSPECTOR_ROOT"

	latestDirName  = "latest"
	jsonReportName = "audit.json"
	mdReportName   = "audit.md"
)

// ResolveReportDir 计算报告根目录
// 环境变量 INSPECTOR_ROOT 优先于配置
func ResolveReportDir(configured string) string {
	if root := strings.TrimSpace(os.Getenv(RootEnv)); root != "" {
		return filepath.Join(root, "reports")
	}
	if configured == "" {
		return "reports"
	}
	return configured
}

// Reporter 报告生成器
type Reporter struct {
	outputDir string
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string) *Reporter {
	return &Reporter{outputDir: outputDir}
}

// LatestDir 本次报告的写入目录
func (r *Reporter) LatestDir() string {
	return filepath.Join(r.outputDir, latestDirName)
}

// WriteReport 写入 audit.json 和 audit.md,覆盖上一次的结果
// 返回两个文件的路径
func (r *Reporter) WriteReport(report *models.AuditReport) (jsonPath, mdPath string, err error) {
	dir := r.LatestDir()
	if err := EnsureDir(dir); err != nil {
		return "", "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	data, err := report.ToJSON()
	if err != nil {
		return "", "", fmt.Errorf("序列化JSON失败: %w", err)
	}

	jsonPath = filepath.Join(dir, jsonReportName)
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return "", "", fmt.Errorf("写入报告文件失败: %w", err)
	}
	Debugf("保存报告: %s", jsonPath)

	mdPath = filepath.Join(dir, mdReportName)
	if err := os.WriteFile(mdPath, []byte(RenderNarrative(report)), 0644); err != nil {
		return jsonPath, "", fmt.Errorf("写入报告文件失败: %w", err)
	}
	Debugf("保存报告: %s", mdPath)

	Infof("✅ 报告已生成: %s", dir)
	return jsonPath, mdPath, nil
}

// RenderNarrative 渲染Markdown报告
// 只输出非空的分节,每条记录一行
func RenderNarrative(report *models.AuditReport) string {
	var b strings.Builder

	b.WriteString("# Site Inspector Report\n")
	fmt.Fprintf(&b, "Date: %s\n\n", report.Timestamp)
	fmt.Fprintf(&b, "# Status: [%s]\n\n", report.Status)

	if len(report.BrokenLinks) > 0 {
		b.WriteString("## [X] Broken Links\n")
		for _, l := range report.BrokenLinks {
			fmt.Fprintf(&b, "- %s: %s (%d)\n", l.URL, l.Reason, l.Status)
		}
		b.WriteString("\n")
	}

	writeList(&b, "## [X] Console Errors", report.ConsoleErrors)

	if len(report.Journeys) > 0 {
		b.WriteString("## [JOURNEY] Journeys\n")
		for _, j := range report.Journeys {
			line := strings.TrimRight(fmt.Sprintf("- %s: %s %s", j.Name, j.Status, j.Error), " ")
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}

	writeList(&b, "## [WARN] Network Failures", report.NetworkFailures)
	writeList(&b, "## [INFO] Console Warnings", report.ConsoleWarnings)

	return strings.TrimSpace(b.String()) + "\n"
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(title + "\n")
	for _, item := range items {
		b.WriteString("- " + item + "\n")
	}
	b.WriteString("\n")
}

// NewProgressBarTo 创建输出到指定位置的进度条
func NewProgressBarTo(w io.Writer, max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
