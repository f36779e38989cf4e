package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/SiteInspector/internal/crawlers"
	"github.com/RecoveryAshes/SiteInspector/internal/journeys"
	"github.com/RecoveryAshes/SiteInspector/internal/models"
	"github.com/RecoveryAshes/SiteInspector/internal/utils"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀, 如 INSPECTOR_TARGET_BASE_URL
const EnvPrefix = "INSPECTOR"

// Config 应用程序配置
type Config struct {
	Target   TargetConfig    `mapstructure:"target"`
	Browser  BrowserConfig   `mapstructure:"browser"`
	Crawl    CrawlConfig     `mapstructure:"crawl"`
	Policy   PolicyConfig    `mapstructure:"policy"`
	Observe  ObserveConfig   `mapstructure:"observe"`
	Journey  journeys.Script `mapstructure:"journey"`
	Report   ReportConfig    `mapstructure:"report"`
	Headers  HeadersConfig   `mapstructure:"headers"`
	Logging  LoggingConfig   `mapstructure:"logging"`
	Resource ResourceConfig  `mapstructure:"resource"`
}

// TargetConfig 巡检目标
type TargetConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	StartURL       string `mapstructure:"start_url"` // 为空时等于 base_url
	Mode           string `mapstructure:"mode"`
	MaxPages       int    `mapstructure:"max_pages"`
	Strict         bool   `mapstructure:"strict"`
	StrictWarnings bool   `mapstructure:"strict_warnings"`
}

// BrowserConfig 浏览器驱动
type BrowserConfig struct {
	Driver           string        `mapstructure:"driver"` // rod 或 static
	Headless         bool          `mapstructure:"headless"`
	Bin              string        `mapstructure:"bin"`
	IgnoreCertErrors bool          `mapstructure:"ignore_cert_errors"`
	DefaultTimeout   time.Duration `mapstructure:"default_timeout"`
}

// CrawlConfig 爬取阶段
type CrawlConfig struct {
	NavTimeout        time.Duration `mapstructure:"nav_timeout"`
	Settle            time.Duration `mapstructure:"settle"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// PolicyConfig URL过滤规则
type PolicyConfig struct {
	SkipSchemes       []string `mapstructure:"skip_schemes"`
	SkipExtensions    []string `mapstructure:"skip_extensions"`
	SensitiveKeywords []string `mapstructure:"sensitive_keywords"`
}

// ObserveConfig 控制台与网络噪音过滤
// 每条规则是用 & 连接的子串,全部出现(忽略大小写)才算命中
type ObserveConfig struct {
	ConsoleNoise []string `mapstructure:"console_noise"`
	NetworkNoise []string `mapstructure:"network_noise"`
}

// ReportConfig 报告输出
type ReportConfig struct {
	Dir string `mapstructure:"dir"`
}

// HeadersConfig 自定义头部
type HeadersConfig struct {
	File string `mapstructure:"file"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// ResourceConfig 启动前资源检查
type ResourceConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MinFreeMemoryMB  uint64  `mapstructure:"min_free_memory_mb"`
	CPULoadThreshold float64 `mapstructure:"cpu_load_threshold"`
}

// flagKeys 命令行参数与配置键的对应关系
var flagKeys = map[string]string{
	"url":             "target.start_url",
	"base-url":        "target.base_url",
	"mode":            "target.mode",
	"max-pages":       "target.max_pages",
	"strict":          "target.strict",
	"strict-warnings": "target.strict_warnings",
	"driver":          "browser.driver",
	"headless":        "browser.headless",
	"report-dir":      "report.dir",
	"headers-file":    "headers.file",
	"log-level":       "logging.level",
}

// LoadConfig 加载配置
// 优先级: 命令行(显式设置) > 环境变量 > 配置文件 > 默认值
// flags 可以为nil
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("inspector")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".siteinspector"))
		}
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("绑定参数 --%s 失败: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		utils.Debugf("使用配置文件: %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	return &cfg, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	v.SetDefault("target.base_url", "http://localhost:5173")
	v.SetDefault("target.start_url", "")
	v.SetDefault("target.mode", string(models.ModeCrawl))
	v.SetDefault("target.max_pages", 50)
	v.SetDefault("target.strict", false)
	v.SetDefault("target.strict_warnings", false)

	v.SetDefault("browser.driver", string(crawlers.DriverRod))
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.ignore_cert_errors", false)
	v.SetDefault("browser.default_timeout", 30*time.Second)

	v.SetDefault("crawl.nav_timeout", 10*time.Second)
	v.SetDefault("crawl.settle", 300*time.Millisecond)
	v.SetDefault("crawl.requests_per_second", 0)

	v.SetDefault("policy.skip_schemes", utils.DefaultSkipSchemes)
	v.SetDefault("policy.skip_extensions", utils.DefaultSkipExtensions)
	v.SetDefault("policy.sensitive_keywords", utils.DefaultSensitivePathKeywords)

	v.SetDefault("observe.console_noise", DefaultConsoleNoise)
	v.SetDefault("observe.network_noise", DefaultNetworkNoise)

	script := journeys.DefaultShopperScript()
	v.SetDefault("journey.name", script.Name)
	setLocatorDefault(v, "journey.product_link", script.ProductLink)
	setLocatorDefault(v, "journey.shop_link", script.ShopLink)
	setLocatorDefault(v, "journey.size_option", script.SizeOption)
	setLocatorDefault(v, "journey.add_to_cart", script.AddToCart)
	markers := make([]map[string]interface{}, 0, len(script.CartMarkers))
	for _, m := range script.CartMarkers {
		markers = append(markers, map[string]interface{}{"by": string(m.By), "value": m.Value, "name": m.Name, "scope": m.Scope})
	}
	v.SetDefault("journey.cart_markers", markers)
	v.SetDefault("journey.cart_path", script.CartPath)
	v.SetDefault("journey.home_timeout", script.HomeTimeout)
	v.SetDefault("journey.nav_timeout", script.NavTimeout)
	v.SetDefault("journey.nav_settle", script.NavSettle)
	v.SetDefault("journey.size_settle", script.SizeSettle)
	v.SetDefault("journey.add_settle", script.AddSettle)

	v.SetDefault("report.dir", "reports")
	v.SetDefault("headers.file", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	v.SetDefault("resource.enabled", true)
	v.SetDefault("resource.min_free_memory_mb", 500)
	v.SetDefault("resource.cpu_load_threshold", 90.0)
}

func setLocatorDefault(v *viper.Viper, key string, loc models.Locator) {
	v.SetDefault(key+".by", string(loc.By))
	v.SetDefault(key+".value", loc.Value)
	v.SetDefault(key+".name", loc.Name)
	v.SetDefault(key+".scope", loc.Scope)
}

// ToAuditConfig 转换为运行参数
// base_url 去掉末尾斜杠,start_url 为空时取 base_url
func (c *Config) ToAuditConfig() models.AuditConfig {
	base := strings.TrimRight(strings.TrimSpace(c.Target.BaseURL), "/")
	start := strings.TrimSpace(c.Target.StartURL)
	if start == "" {
		start = base
	}
	return models.AuditConfig{
		BaseURL:            base,
		StartURL:           start,
		Mode:               models.AuditMode(c.Target.Mode),
		MaxPages:           c.Target.MaxPages,
		Strict:             c.Target.Strict,
		StrictWarnings:     c.Target.StrictWarnings,
		CrawlTimeout:       c.Crawl.NavTimeout,
		CrawlSettle:        c.Crawl.Settle,
		RequestsPerSecond:  c.Crawl.RequestsPerSecond,
		JourneyHomeTimeout: c.Journey.HomeTimeout,
		JourneyNavTimeout:  c.Journey.NavTimeout,
	}
}

// DriverConfig 浏览器驱动配置
func (c *Config) DriverConfig(headers models.HeaderProvider) crawlers.DriverConfig {
	return crawlers.DriverConfig{
		Kind:             crawlers.DriverKind(c.Browser.Driver),
		Headless:         c.Browser.Headless,
		Bin:              c.Browser.Bin,
		IgnoreCertErrors: c.Browser.IgnoreCertErrors,
		DefaultTimeout:   c.Browser.DefaultTimeout,
		Headers:          headers,
	}
}

// URLPolicy 爬取过滤规则
func (c *Config) URLPolicy() *utils.URLPolicy {
	return utils.NewURLPolicy(c.Policy.SkipSchemes, c.Policy.SkipExtensions, c.Policy.SensitiveKeywords)
}

// LogConfig 日志配置
func (c *Config) LogConfig() utils.LogConfig {
	lc := utils.DefaultLogConfig()
	lc.Level = c.Logging.Level
	lc.LogDir = c.Logging.LogDir
	lc.MaxSize = c.Logging.Rotation.MaxSize
	lc.MaxBackups = c.Logging.Rotation.MaxBackups
	lc.MaxAge = c.Logging.Rotation.MaxAge
	lc.Compress = c.Logging.Rotation.Compress
	return lc
}

// ResourceMonitorConfig 资源检查阈值
func (c *Config) ResourceMonitorConfig() crawlers.ResourceMonitorConfig {
	rc := crawlers.DefaultResourceMonitorConfig()
	rc.MinFreeMemoryMB = c.Resource.MinFreeMemoryMB
	rc.CPULoadThreshold = c.Resource.CPULoadThreshold
	return rc
}

// Validate 校验整个配置
func (c *Config) Validate() error {
	audit := c.ToAuditConfig()
	if err := audit.Validate(); err != nil {
		return err
	}
	switch crawlers.DriverKind(c.Browser.Driver) {
	case crawlers.DriverRod, crawlers.DriverStatic:
	default:
		return fmt.Errorf("无效的驱动类型: %s (有效值: rod, static)", c.Browser.Driver)
	}
	if audit.Mode.RunsJourney() {
		if err := c.Journey.Validate(); err != nil {
			return fmt.Errorf("旅程配置无效: %w", err)
		}
	}
	return nil
}

// InspectorOptions 由配置生成巡检器参数
// 只有rod驱动会启动浏览器,因此只在该驱动下做资源检查
func (c *Config) InspectorOptions(headers models.HeaderProvider) InspectorOptions {
	opts := InspectorOptions{
		Audit:        c.ToAuditConfig(),
		Script:       c.Journey,
		Policy:       c.URLPolicy(),
		ReportDir:    utils.ResolveReportDir(c.Report.Dir),
		ConsoleNoise: c.Observe.ConsoleNoise,
		NetworkNoise: c.Observe.NetworkNoise,
		NewDriver: func(ctx context.Context, sink crawlers.EventSink) (crawlers.Driver, error) {
			return crawlers.NewDriver(ctx, c.DriverConfig(headers), sink)
		},
	}
	if c.Resource.Enabled && crawlers.DriverKind(c.Browser.Driver) == crawlers.DriverRod {
		monitor := crawlers.NewResourceMonitor(c.ResourceMonitorConfig())
		opts.Preflight = monitor.Preflight
	}
	return opts
}
