// Package testutils 测试用的内存浏览器驱动和事件接收器
package testutils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RecoveryAshes/SiteInspector/internal/crawlers"
	"github.com/RecoveryAshes/SiteInspector/internal/models"
)

// ConsoleEvent 控制台事件
type ConsoleEvent struct {
	Level models.ConsoleLevel
	Text  string
}

// FailureEvent 网络失败事件
type FailureEvent struct {
	Method string
	URL    string
	Reason string
}

// FakeElement 页面上一个定位器命中的元素
type FakeElement struct {
	Count    int // 0按1处理
	Attrs    map[string]string
	Hidden   bool
	Text     string
	ClickErr error
	Navigate string // 点击后导航到的地址
}

// FakePage 脚本化的页面
type FakePage struct {
	Status     int // 0按200处理
	NoResponse bool
	Err        error
	Panic      string
	Links      []string
	LinksErr   error
	Elements   map[string]*FakeElement // 键为 Locator.String()
	Console    []ConsoleEvent          // 导航时发给sink
	Failures   []FailureEvent
}

// FakeDriver 内存中的 crawlers.Driver 实现
// 未登记的地址返回404
type FakeDriver struct {
	Pages map[string]*FakePage
	Sink  crawlers.EventSink

	mu          sync.Mutex
	current     *FakePage
	Navigations []string
	Timeouts    []time.Duration
	Clicks      []string
	Waits       []time.Duration
	CloseCount  int
}

// NewFakeDriver 创建驱动
func NewFakeDriver(pages map[string]*FakePage) *FakeDriver {
	if pages == nil {
		pages = make(map[string]*FakePage)
	}
	return &FakeDriver{Pages: pages}
}

// Closed 是否已关闭
func (d *FakeDriver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.CloseCount > 0
}

// Visited 返回导航过的地址
func (d *FakeDriver) Visited() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.Navigations...)
}

// Navigate 实现 crawlers.Driver
func (d *FakeDriver) Navigate(ctx context.Context, url string, opts crawlers.NavigateOptions) (*models.PageResponse, error) {
	d.mu.Lock()
	if d.CloseCount > 0 {
		d.mu.Unlock()
		return nil, crawlers.ErrDriverClosed
	}
	d.Navigations = append(d.Navigations, url)
	d.Timeouts = append(d.Timeouts, opts.Timeout)
	page, ok := d.Pages[url]
	d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ok {
		page = &FakePage{Status: 404}
	}
	if page.Panic != "" {
		panic(page.Panic)
	}

	if d.Sink != nil {
		for _, e := range page.Console {
			d.Sink.OnConsole(e.Level, e.Text)
		}
		for _, f := range page.Failures {
			d.Sink.OnRequestFailed(f.Method, f.URL, f.Reason)
		}
	}

	if page.Err != nil {
		return nil, page.Err
	}

	// 没有主文档响应时页面仍然存在
	d.mu.Lock()
	d.current = page
	d.mu.Unlock()

	if page.NoResponse {
		return nil, crawlers.ErrNoResponse
	}

	status := page.Status
	if status == 0 {
		status = 200
	}
	return &models.PageResponse{URL: url, StatusCode: status, MIMEType: "text/html"}, nil
}

func (d *FakeDriver) element(loc models.Locator) (*FakeElement, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.CloseCount > 0 {
		return nil, crawlers.ErrDriverClosed
	}
	if d.current == nil {
		return nil, fmt.Errorf("尚未加载任何页面")
	}
	el, ok := d.current.Elements[loc.String()]
	if !ok || el == nil {
		return nil, fmt.Errorf("%w: %s", crawlers.ErrElementNotFound, loc)
	}
	return el, nil
}

// Links 实现 crawlers.Driver
func (d *FakeDriver) Links(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return nil, fmt.Errorf("尚未加载任何页面")
	}
	if d.current.LinksErr != nil {
		return nil, d.current.LinksErr
	}
	return append([]string(nil), d.current.Links...), nil
}

// Count 实现 crawlers.Driver
func (d *FakeDriver) Count(ctx context.Context, loc models.Locator) (int, error) {
	el, err := d.element(loc)
	if err != nil {
		return 0, nil
	}
	if el.Count == 0 {
		return 1, nil
	}
	return el.Count, nil
}

// Attribute 实现 crawlers.Driver
func (d *FakeDriver) Attribute(ctx context.Context, loc models.Locator, name string) (string, bool, error) {
	el, err := d.element(loc)
	if err != nil {
		return "", false, err
	}
	v, ok := el.Attrs[name]
	return v, ok, nil
}

// Click 实现 crawlers.Driver
func (d *FakeDriver) Click(ctx context.Context, loc models.Locator) error {
	el, err := d.element(loc)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.Clicks = append(d.Clicks, loc.String())
	d.mu.Unlock()

	if el.ClickErr != nil {
		return el.ClickErr
	}
	if el.Navigate != "" {
		_, err := d.Navigate(ctx, el.Navigate, crawlers.NavigateOptions{})
		return err
	}
	return nil
}

// Visible 实现 crawlers.Driver
func (d *FakeDriver) Visible(ctx context.Context, loc models.Locator) (bool, error) {
	el, err := d.element(loc)
	if err != nil {
		return false, nil
	}
	return !el.Hidden, nil
}

// Text 实现 crawlers.Driver
func (d *FakeDriver) Text(ctx context.Context, loc models.Locator) (string, error) {
	el, err := d.element(loc)
	if err != nil {
		return "", err
	}
	return el.Text, nil
}

// Wait 只记录,不真正等待
func (d *FakeDriver) Wait(ctx context.Context, dur time.Duration) error {
	d.mu.Lock()
	d.Waits = append(d.Waits, dur)
	d.mu.Unlock()
	return ctx.Err()
}

// Close 实现 crawlers.Driver
func (d *FakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CloseCount++
	return nil
}

// RecordingSink 记录收到的事件
type RecordingSink struct {
	mu       sync.Mutex
	Console  []ConsoleEvent
	Failures []FailureEvent
}

// OnConsole 实现 crawlers.EventSink
func (s *RecordingSink) OnConsole(level models.ConsoleLevel, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Console = append(s.Console, ConsoleEvent{Level: level, Text: text})
}

// OnRequestFailed 实现 crawlers.EventSink
func (s *RecordingSink) OnRequestFailed(method, url, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Failures = append(s.Failures, FailureEvent{Method: method, URL: url, Reason: reason})
}

// Snapshot 返回失败事件的副本
func (s *RecordingSink) Snapshot() []FailureEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FailureEvent(nil), s.Failures...)
}

var (
	_ crawlers.Driver    = (*FakeDriver)(nil)
	_ crawlers.EventSink = (*RecordingSink)(nil)
)
