package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// AuditMode 巡检模式
type AuditMode string

const (
	ModeCrawl   AuditMode = "crawl"   // 仅爬取
	ModeJourney AuditMode = "journey" // 仅用户旅程
	ModeBoth    AuditMode = "both"    // 先旅程后爬取
)

// ParseAuditMode 解析巡检模式字符串
func ParseAuditMode(s string) (AuditMode, error) {
	switch AuditMode(s) {
	case ModeCrawl, ModeJourney, ModeBoth:
		return AuditMode(s), nil
	}
	return "", fmt.Errorf("无效的巡检模式: %s (有效值: crawl, journey, both)", s)
}

// RunsCrawl 是否包含爬取阶段
func (m AuditMode) RunsCrawl() bool {
	return m == ModeCrawl || m == ModeBoth
}

// RunsJourney 是否包含旅程阶段
func (m AuditMode) RunsJourney() bool {
	return m == ModeJourney || m == ModeBoth
}

// JourneyStatus 旅程结果状态
type JourneyStatus string

const (
	JourneyPass JourneyStatus = "PASS"
	JourneyFail JourneyStatus = "FAIL"
	JourneyWarn JourneyStatus = "WARN" // 前置条件不满足但不视为缺陷(如缺货)
)

// RunStatus 整体健康状态
type RunStatus string

const (
	StatusPass RunStatus = "PASS"
	StatusFail RunStatus = "FAIL"
)

// ExitCode 返回与状态对应的进程退出码
func (s RunStatus) ExitCode() int {
	if s == StatusPass {
		return 0
	}
	return 1
}

// CoreCrashURL 致命错误时写入断链列表的哨兵URL
const CoreCrashURL = "INSPECTOR_CORE"

// BrokenLink 爬取失败记录
type BrokenLink struct {
	URL    string `json:"url"`
	Status int    `json:"status"` // 无响应或异常时为0
	Reason string `json:"reason"`
}

// JourneyOutcome 单次旅程结果
type JourneyOutcome struct {
	Name   string        `json:"name"`
	Status JourneyStatus `json:"status"`
	Error  string        `json:"error,omitempty"`
}

// AuditReport 巡检报告
// Status 只由其余字段决定,见 core.Evaluate
type AuditReport struct {
	RunID     string    `json:"run_id"`
	Timestamp string    `json:"timestamp"` // ISO-8601,带本地时区偏移
	Status    RunStatus `json:"status"`

	// 配置回显
	BaseURL  string    `json:"base_url"`
	StartURL string    `json:"start_url"`
	Mode     AuditMode `json:"mode"`
	MaxPages int       `json:"max_pages"`

	VisitedCount int `json:"visited_count"`

	BrokenLinks     []BrokenLink     `json:"broken_links"`
	ConsoleErrors   []string         `json:"console_errors"`
	ConsoleWarnings []string         `json:"console_warnings"`
	NetworkFailures []string         `json:"network_failures"`
	Journeys        []JourneyOutcome `json:"journeys"`
}

// FormatTimestamp 按报告要求格式化时间(RFC3339,本地偏移)
func FormatTimestamp(t time.Time) string {
	return t.Local().Format(time.RFC3339Nano)
}

// ToJSON 序列化为JSON
// 空列表输出为 [] 而非 null,URL中的 & < > 不做转义
func (r *AuditReport) ToJSON() ([]byte, error) {
	out := *r
	out.fillEmpty()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *AuditReport) fillEmpty() {
	if r.BrokenLinks == nil {
		r.BrokenLinks = []BrokenLink{}
	}
	if r.ConsoleErrors == nil {
		r.ConsoleErrors = []string{}
	}
	if r.ConsoleWarnings == nil {
		r.ConsoleWarnings = []string{}
	}
	if r.NetworkFailures == nil {
		r.NetworkFailures = []string{}
	}
	if r.Journeys == nil {
		r.Journeys = []JourneyOutcome{}
	}
}

// FromJSON 从JSON反序列化
func (r *AuditReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}
