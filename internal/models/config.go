package models

import (
	"fmt"
	"time"
)

// AuditConfig 单次巡检的运行参数
type AuditConfig struct {
	BaseURL        string    `json:"base_url"`
	StartURL       string    `json:"start_url"`
	Mode           AuditMode `json:"mode"`
	MaxPages       int       `json:"max_pages"`
	Strict         bool      `json:"strict"`          // 保留的兼容开关,错误与断链始终判失败
	StrictWarnings bool      `json:"strict_warnings"` // 控制台警告也判失败

	CrawlTimeout       time.Duration `json:"crawl_timeout"`        // 爬取单页导航超时(默认10秒)
	CrawlSettle        time.Duration `json:"crawl_settle"`         // 爬取导航后等待(默认300毫秒)
	RequestsPerSecond  float64       `json:"requests_per_second"`  // 爬取导航限速,0表示不限
	JourneyHomeTimeout time.Duration `json:"journey_home_timeout"` // 旅程首页导航超时(默认15秒)
	JourneyNavTimeout  time.Duration `json:"journey_nav_timeout"`  // 旅程其他导航超时(默认30秒)
}

// Validate 验证配置
func (c *AuditConfig) Validate() error {
	if err := ValidateURL(c.BaseURL); err != nil {
		return fmt.Errorf("base_url无效: %w", err)
	}
	if c.Mode.RunsCrawl() {
		if err := ValidateURL(c.StartURL); err != nil {
			return fmt.Errorf("start_url无效: %w", err)
		}
	}
	if _, err := ParseAuditMode(string(c.Mode)); err != nil {
		return err
	}
	if c.MaxPages < 1 {
		return fmt.Errorf("最大页面数必须大于0,当前值: %d", c.MaxPages)
	}
	if c.CrawlTimeout <= 0 || c.JourneyHomeTimeout <= 0 || c.JourneyNavTimeout <= 0 {
		return fmt.Errorf("导航超时必须大于0")
	}
	if c.CrawlSettle < 0 {
		return fmt.Errorf("等待时间不能为负数")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("限速不能为负数")
	}
	return nil
}
