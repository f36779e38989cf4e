package models

import "fmt"

// LoadMilestone 导航等待的加载阶段
type LoadMilestone string

const (
	MilestoneDOMContentLoaded LoadMilestone = "domcontentloaded"
	MilestoneLoad             LoadMilestone = "load"
)

// PageResponse 主文档响应
type PageResponse struct {
	URL        string
	StatusCode int
	MIMEType   string
}

// ConsoleLevel 控制台消息级别
type ConsoleLevel string

const (
	ConsoleError   ConsoleLevel = "error"
	ConsoleWarning ConsoleLevel = "warning"
	ConsoleInfo    ConsoleLevel = "info"
	ConsoleLog     ConsoleLevel = "log"
	ConsoleDebug   ConsoleLevel = "debug"
)

// LocatorKind 元素定位方式
type LocatorKind string

const (
	LocateByCSS  LocatorKind = "css"  // Value为CSS选择器
	LocateByText LocatorKind = "text" // Value为文本片段(忽略大小写),Scope限定候选元素
	LocateByRole LocatorKind = "role" // Value为角色(button/link),Name为可见文本片段
)

// Locator 声明式元素定位器
// 旅程脚本只描述"找什么",由驱动决定"怎么找"
type Locator struct {
	By    LocatorKind `mapstructure:"by" json:"by"`
	Value string      `mapstructure:"value" json:"value"`
	Name  string      `mapstructure:"name" json:"name,omitempty"`
	Scope string      `mapstructure:"scope" json:"scope,omitempty"`
}

// CSS 构造CSS定位器
func CSS(selector string) Locator {
	return Locator{By: LocateByCSS, Value: selector}
}

// Text 构造文本定位器
func Text(pattern string) Locator {
	return Locator{By: LocateByText, Value: pattern}
}

// Role 构造角色定位器
func Role(role, name string) Locator {
	return Locator{By: LocateByRole, Value: role, Name: name}
}

// Validate 校验定位器
func (l Locator) Validate() error {
	switch l.By {
	case LocateByCSS, LocateByText, LocateByRole:
	default:
		return fmt.Errorf("未知的定位方式: %q", l.By)
	}
	if l.Value == "" {
		return fmt.Errorf("定位器 %s 的值不能为空", l.By)
	}
	return nil
}

// String 用于日志
func (l Locator) String() string {
	if l.Name != "" {
		return fmt.Sprintf("%s=%s[%s]", l.By, l.Value, l.Name)
	}
	return fmt.Sprintf("%s=%s", l.By, l.Value)
}
