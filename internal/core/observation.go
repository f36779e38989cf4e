package core

import (
	"fmt"
	"strings"
	"sync"

	"github.com/RecoveryAshes/SiteInspector/internal/crawlers"
	"github.com/RecoveryAshes/SiteInspector/internal/models"
	"github.com/rs/zerolog/log"
)

var (
	// DefaultConsoleNoise 默认忽略的控制台消息
	// 字体跨域和资源加载失败由网络失败记录覆盖
	DefaultConsoleNoise = []string{
		"fonts.gstatic",
		"blocked by cors",
		"cors&font",
		"failed to load resource",
	}

	// DefaultNetworkNoise 默认忽略的失败请求
	DefaultNetworkNoise = []string{"fonts.gstatic"}
)

const (
	unknownField         = "UNKNOWN"
	fallbackFailedReason = "requestfailed"
)

// noiseRule 一条噪音规则,所有子串都出现才命中
type noiseRule []string

func parseNoiseRules(patterns []string) []noiseRule {
	rules := make([]noiseRule, 0, len(patterns))
	for _, p := range patterns {
		var parts noiseRule
		for _, part := range strings.Split(p, "&") {
			if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
				parts = append(parts, part)
			}
		}
		if len(parts) > 0 {
			rules = append(rules, parts)
		}
	}
	return rules
}

func matchesAny(rules []noiseRule, text string) bool {
	lower := strings.ToLower(text)
	for _, rule := range rules {
		hit := true
		for _, part := range rule {
			if !strings.Contains(lower, part) {
				hit = false
				break
			}
		}
		if hit {
			return true
		}
	}
	return false
}

// Observations 观测结果快照
type Observations struct {
	ConsoleErrors   []string
	ConsoleWarnings []string
	NetworkFailures []string
}

// ObservationSink 收集控制台和网络失败事件
// 驱动在自己的goroutine中回调,所有方法并发安全;按到达顺序追加,不去重
type ObservationSink struct {
	consoleNoise []noiseRule
	networkNoise []noiseRule

	mu       sync.Mutex
	errors   []string
	warnings []string
	failures []string
}

// NewObservationSink 创建接收器,噪音规则为nil时使用默认规则
func NewObservationSink(consoleNoise, networkNoise []string) *ObservationSink {
	if consoleNoise == nil {
		consoleNoise = DefaultConsoleNoise
	}
	if networkNoise == nil {
		networkNoise = DefaultNetworkNoise
	}
	return &ObservationSink{
		consoleNoise: parseNoiseRules(consoleNoise),
		networkNoise: parseNoiseRules(networkNoise),
	}
}

// OnConsole 实现 crawlers.EventSink
func (s *ObservationSink) OnConsole(level models.ConsoleLevel, text string) {
	if text == "" || matchesAny(s.consoleNoise, text) {
		return
	}

	switch level {
	case models.ConsoleError:
		s.mu.Lock()
		s.errors = append(s.errors, text)
		s.mu.Unlock()
		log.Warn().Str("console", "error").Msg(text)
	case models.ConsoleWarning:
		s.mu.Lock()
		s.warnings = append(s.warnings, text)
		s.mu.Unlock()
		log.Debug().Str("console", "warning").Msg(text)
	}
}

// OnRequestFailed 实现 crawlers.EventSink
// 字段缺失时仍记录一条,用 UNKNOWN 占位
func (s *ObservationSink) OnRequestFailed(method, url, reason string) {
	var entry string
	if method == "" || url == "" || reason == "" {
		if url != "" && matchesAny(s.networkNoise, url) {
			return
		}
		entry = fmt.Sprintf("%s %s - %s", orUnknown(method), orUnknown(url), fallbackFailedReason)
	} else {
		if matchesAny(s.networkNoise, url) {
			return
		}
		entry = fmt.Sprintf("%s %s - %s", method, url, reason)
	}

	s.mu.Lock()
	s.failures = append(s.failures, entry)
	s.mu.Unlock()
	log.Debug().Str("network", "failed").Msg(entry)
}

func orUnknown(s string) string {
	if s == "" {
		return unknownField
	}
	return s
}

// Snapshot 返回副本,空列表为非nil切片
func (s *ObservationSink) Snapshot() Observations {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Observations{
		ConsoleErrors:   append([]string{}, s.errors...),
		ConsoleWarnings: append([]string{}, s.warnings...),
		NetworkFailures: append([]string{}, s.failures...),
	}
}

var _ crawlers.EventSink = (*ObservationSink)(nil)
