package crawlers

import (
	"context"
	"errors"
	"time"

	"github.com/RecoveryAshes/SiteInspector/internal/models"
)

// 驱动层错误
var (
	ErrNoResponse        = errors.New("没有主文档响应")
	ErrDriverClosed      = errors.New("浏览器驱动已关闭")
	ErrElementNotFound   = errors.New("未找到匹配的元素")
	ErrUnsupportedAction = errors.New("当前驱动不支持该操作")
)

// NavigateOptions 导航参数
type NavigateOptions struct {
	Milestone models.LoadMilestone
	Timeout   time.Duration
}

// EventSink 接收浏览过程中异步产生的控制台和网络事件
// 实现必须是并发安全的,事件可能来自驱动的后台goroutine
type EventSink interface {
	OnConsole(level models.ConsoleLevel, text string)
	OnRequestFailed(method, url, reason string)
}

// Driver 浏览器驱动
// 爬取和用户旅程共用同一个驱动实例,所有查询作用于当前页面
type Driver interface {
	// Navigate 导航并等待加载阶段
	// 没有主文档响应时返回 ErrNoResponse
	Navigate(ctx context.Context, url string, opts NavigateOptions) (*models.PageResponse, error)

	// Links 按DOM顺序返回当前页面所有<a>的绝对href
	Links(ctx context.Context) ([]string, error)

	// Count 返回匹配定位器的元素数量,不等待
	Count(ctx context.Context, loc models.Locator) (int, error)

	// Attribute 读取第一个匹配元素的属性,元素不存在返回 ErrElementNotFound
	Attribute(ctx context.Context, loc models.Locator, name string) (string, bool, error)

	// Click 点击第一个匹配元素
	Click(ctx context.Context, loc models.Locator) error

	// Visible 第一个匹配元素是否可见,没有匹配时返回false
	Visible(ctx context.Context, loc models.Locator) (bool, error)

	// Text 第一个匹配元素的文本
	Text(ctx context.Context, loc models.Locator) (string, error)

	// Wait 页面内等待(让客户端渲染完成)
	Wait(ctx context.Context, d time.Duration) error

	// Close 释放浏览器资源,可重复调用
	Close() error
}

// DriverKind 驱动类型
type DriverKind string

const (
	DriverRod    DriverKind = "rod"    // Chromium,执行JavaScript
	DriverStatic DriverKind = "static" // HTTP抓取,不执行JavaScript
)

// DriverConfig 创建驱动所需的配置
type DriverConfig struct {
	Kind             DriverKind
	Headless         bool
	Bin              string // 浏览器可执行文件,为空时自动下载/查找
	IgnoreCertErrors bool
	DefaultTimeout   time.Duration
	Headers          models.HeaderProvider
}

// NewDriver 按配置创建驱动
func NewDriver(ctx context.Context, cfg DriverConfig, sink EventSink) (Driver, error) {
	switch cfg.Kind {
	case DriverStatic:
		return NewStaticDriver(cfg, sink)
	case DriverRod, "":
		return NewRodDriver(ctx, cfg, sink)
	}
	return nil, errors.New("未知的驱动类型: " + string(cfg.Kind))
}
