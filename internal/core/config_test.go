package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RecoveryAshes/SiteInspector/internal/models"
	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inspector.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	audit := cfg.ToAuditConfig()
	if audit.BaseURL != "http://localhost:5173" || audit.StartURL != audit.BaseURL {
		t.Errorf("默认URL = %q / %q", audit.BaseURL, audit.StartURL)
	}
	if audit.Mode != models.ModeCrawl || audit.MaxPages != 50 {
		t.Errorf("默认模式/页数 = %s/%d", audit.Mode, audit.MaxPages)
	}
	if audit.CrawlTimeout != 10*time.Second || audit.CrawlSettle != 300*time.Millisecond {
		t.Errorf("爬取超时 = %v, 等待 = %v", audit.CrawlTimeout, audit.CrawlSettle)
	}
	if audit.JourneyHomeTimeout != 15*time.Second || audit.JourneyNavTimeout != 30*time.Second {
		t.Errorf("旅程超时 = %v/%v", audit.JourneyHomeTimeout, audit.JourneyNavTimeout)
	}
	if cfg.Browser.Driver != "rod" || !cfg.Browser.Headless {
		t.Errorf("浏览器配置 = %+v", cfg.Browser)
	}

	if err := cfg.Journey.Validate(); err != nil {
		t.Errorf("默认旅程应有效: %v", err)
	}
	if cfg.Journey.ProductLink != models.CSS("a[href*='/product/']") {
		t.Errorf("ProductLink = %+v", cfg.Journey.ProductLink)
	}
	if len(cfg.Journey.CartMarkers) != 2 || cfg.Journey.CartMarkers[1].Value != "Total" {
		t.Errorf("CartMarkers = %+v", cfg.Journey.CartMarkers)
	}
	if len(cfg.Observe.ConsoleNoise) != len(DefaultConsoleNoise) {
		t.Errorf("ConsoleNoise = %v", cfg.Observe.ConsoleNoise)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("默认配置应有效: %v", err)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
target:
  base_url: "https://shop.example.com/"
  mode: both
  max_pages: 5
  strict_warnings: true
browser:
  driver: static
crawl:
  settle: 0s
  requests_per_second: 2
journey:
  name: Checkout Flow
  product_link:
    by: role
    value: link
    name: View product
  cart_path: /basket
  home_timeout: 5s
observe:
  console_noise: ["hydration&mismatch"]
`)

	cfg, err := LoadConfig(path, nil)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	audit := cfg.ToAuditConfig()
	if audit.BaseURL != "https://shop.example.com" {
		t.Errorf("base_url末尾斜杠应被去掉: %q", audit.BaseURL)
	}
	if audit.StartURL != "https://shop.example.com" {
		t.Errorf("start_url应默认为base_url: %q", audit.StartURL)
	}
	if audit.Mode != models.ModeBoth || audit.MaxPages != 5 || !audit.StrictWarnings {
		t.Errorf("target = %+v", audit)
	}
	if audit.CrawlSettle != 0 || audit.RequestsPerSecond != 2 {
		t.Errorf("crawl = %v %v", audit.CrawlSettle, audit.RequestsPerSecond)
	}

	j := cfg.Journey
	if j.Name != "Checkout Flow" || j.CartPath != "/basket" || j.HomeTimeout != 5*time.Second {
		t.Errorf("journey = %+v", j)
	}
	if j.ProductLink != models.Role("link", "View product") {
		t.Errorf("ProductLink = %+v", j.ProductLink)
	}
	// 未覆盖的键保留默认值
	if j.NavTimeout != 30*time.Second || j.AddToCart.Scope != "button" {
		t.Errorf("未覆盖的旅程字段应保留默认值: %+v", j)
	}
	if len(cfg.Observe.ConsoleNoise) != 1 {
		t.Errorf("ConsoleNoise = %v", cfg.Observe.ConsoleNoise)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeConfig(t, `
target:
  mode: journey
  max_pages: 5
report:
  dir: from-file
`)
	t.Setenv("INSPECTOR_TARGET_MAX_PAGES", "7")
	t.Setenv("INSPECTOR_REPORT_DIR", "from-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("mode", "crawl", "")
	flags.Int("max-pages", 50, "")
	flags.String("report-dir", "", "")
	if err := flags.Parse([]string{"--report-dir=from-flag"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path, flags)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"未设置的参数不覆盖配置文件", cfg.Target.Mode, "journey"},
		{"环境变量覆盖配置文件", cfg.Target.MaxPages, 7},
		{"显式参数覆盖环境变量", cfg.Report.Dir, "from-flag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil); err == nil {
		t.Error("显式指定的配置文件不存在时应返回错误")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"无效驱动", func(c *Config) { c.Browser.Driver = "selenium" }, "驱动"},
		{"无效模式", func(c *Config) { c.Target.Mode = "smoke" }, "巡检模式"},
		{"无效URL", func(c *Config) { c.Target.BaseURL = "localhost" }, "base_url"},
		{"页数为0", func(c *Config) { c.Target.MaxPages = 0 }, "最大页面数"},
		{"旅程模式校验脚本", func(c *Config) {
			c.Target.Mode = "journey"
			c.Journey.CartPath = ""
		}, "旅程配置无效"},
		{"爬取模式不校验脚本", func(c *Config) { c.Journey.CartPath = "" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig("", nil)
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_InspectorOptions(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	if err != nil {
		t.Fatal(err)
	}

	opts := cfg.InspectorOptions(nil)
	if opts.Preflight == nil {
		t.Error("rod驱动应启用资源检查")
	}
	if opts.ReportDir != "reports" {
		t.Errorf("ReportDir = %q", opts.ReportDir)
	}

	cfg.Browser.Driver = "static"
	if cfg.InspectorOptions(nil).Preflight != nil {
		t.Error("static驱动不需要资源检查")
	}

	root := t.TempDir()
	t.Setenv("INSPECTOR_ROOT", root)
	if got := cfg.InspectorOptions(nil).ReportDir; got != filepath.Join(root, "reports") {
		t.Errorf("INSPECTOR_ROOT 下的报告目录 = %q", got)
	}
}

func TestConfig_LogConfig(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	if err != nil {
		t.Fatal(err)
	}
	lc := cfg.LogConfig()
	if lc.Level != "info" || lc.LogDir != "logs" || lc.MaxSize != 10 || !lc.Compress {
		t.Errorf("LogConfig() = %+v", lc)
	}
}
