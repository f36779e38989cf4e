package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RecoveryAshes/SiteInspector/internal/core"
	"github.com/RecoveryAshes/SiteInspector/internal/models"
)

func TestValidateFlags(t *testing.T) {
	tests := []struct {
		name     string
		startURL string
		baseURL  string
		mode     string
		maxPages int
		driver   string
		wantErr  bool
	}{
		{"默认参数", "", "http://localhost:5173", "crawl", 50, "rod", false},
		{"指定起始URL", "http://localhost:5173/shop", "http://localhost:5173", "both", 1, "static", false},
		{"起始URL无协议", "localhost:5173/shop", "http://localhost:5173", "crawl", 50, "rod", true},
		{"base-url为ftp", "", "ftp://example.com", "crawl", 50, "rod", true},
		{"无效模式", "", "http://localhost:5173", "smoke", 50, "rod", true},
		{"页数为0", "", "http://localhost:5173", "crawl", 0, "rod", true},
		{"页数超过上限", "", "http://localhost:5173", "crawl", maxPagesLimit + 1, "rod", true},
		{"无效驱动", "", "http://localhost:5173", "journey", 10, "selenium", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFlags(tt.startURL, tt.baseURL, tt.mode, tt.maxPages, tt.driver)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestRootCommand_StaticAudit 用静态驱动对本地站点完整跑一遍命令
func TestRootCommand_StaticAudit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/">Home</a></body></html>`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><body>
			<a href="/about">About</a>
			<a href="/missing">Missing</a>
			<a href="mailto:shop@example.com">Mail</a>
			<a href="https://other.example.com/">Elsewhere</a>
		</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	t.Setenv("INSPECTOR_LOGGING_LOG_DIR", filepath.Join(dir, "logs"))
	reportRoot := filepath.Join(dir, "reports")

	exitCode = 0
	rootCmd.SetArgs([]string{
		"--base-url", srv.URL,
		"--driver", "static",
		"--max-pages", "5",
		"--report-dir", reportRoot,
		"--headers-file", filepath.Join(dir, "headers.yaml"),
		"-H", "X-Canary: 1",
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// /missing 返回404,整体应为FAIL
	if exitCode != 1 {
		t.Errorf("exitCode = %d, want 1", exitCode)
	}

	data, err := os.ReadFile(filepath.Join(reportRoot, "latest", "audit.json"))
	if err != nil {
		t.Fatalf("读取 audit.json 失败: %v", err)
	}
	var report models.AuditReport
	if err := report.FromJSON(data); err != nil {
		t.Fatalf("audit.json 解析失败: %v", err)
	}

	if report.BaseURL != srv.URL || report.StartURL != srv.URL {
		t.Errorf("URL = %q / %q", report.BaseURL, report.StartURL)
	}
	if report.Mode != models.ModeCrawl || report.MaxPages != 5 {
		t.Errorf("配置回显 = %s/%d", report.Mode, report.MaxPages)
	}
	if report.VisitedCount != 3 {
		t.Errorf("VisitedCount = %d, want 3", report.VisitedCount)
	}
	if len(report.BrokenLinks) != 1 {
		t.Fatalf("BrokenLinks = %+v", report.BrokenLinks)
	}
	broken := report.BrokenLinks[0]
	if !strings.HasSuffix(broken.URL, "/missing") || broken.Status != http.StatusNotFound {
		t.Errorf("断链 = %+v", broken)
	}

	if _, err := os.Stat(filepath.Join(reportRoot, "latest", "audit.md")); err != nil {
		t.Errorf("audit.md 未生成: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "headers.yaml")); err != nil {
		t.Errorf("头部配置模板未生成: %v", err)
	}
}

func TestRunDoctor(t *testing.T) {
	t.Setenv("INSPECTOR_ROOT", "")
	cfg, err := core.LoadConfig("", nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Browser.Driver = "static"
	cfg.Report.Dir = filepath.Join(t.TempDir(), "reports")
	if !runDoctor(cfg) {
		t.Error("static驱动和可写目录应通过检查")
	}

	cfg.Browser.Driver = "rod"
	cfg.Browser.Bin = filepath.Join(t.TempDir(), "no-chrome")
	if runDoctor(cfg) {
		t.Error("指定的浏览器不存在时应失败")
	}
}
