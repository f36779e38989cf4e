package crawlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/RecoveryAshes/SiteInspector/internal/models"
	"github.com/RecoveryAshes/SiteInspector/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// linksJS 按DOM顺序返回所有锚点的绝对地址
const linksJS = `() => Array.from(document.querySelectorAll('a'))
	.map(a => typeof a.href === 'string' ? a.href : (a.getAttribute('href') || ''))
	.filter(h => h !== '')`

// locatorJS 把声明式定位器解析为元素数组
// text/role 定位: 规范化空白后不区分大小写的子串匹配,只保留最深层的命中元素
const locatorJS = `(by, value, name, scope) => {
	const norm = s => (s || '').replace(/\s+/g, ' ').trim().toLowerCase();
	if (by === 'css') return Array.from(document.querySelectorAll(value));
	const roles = {
		button: 'button,[role=button],input[type=button],input[type=submit]',
		link: 'a[href],[role=link]',
	};
	let sel, needle;
	if (by === 'role') {
		sel = roles[value] || '[role=' + value + ']';
		needle = norm(name);
	} else {
		sel = scope || '*';
		needle = norm(value);
	}
	const textOf = el => norm(el.innerText || el.textContent || el.value || el.getAttribute('aria-label'));
	const hits = Array.from(document.querySelectorAll(sel))
		.filter(el => !el.closest('head,script,style,noscript,template'))
		.filter(el => !needle || textOf(el).includes(needle));
	return hits.filter(el => !hits.some(o => o !== el && el.contains(o)));
}`

// navStatusJS 事件未捕获到主文档响应时,从Navigation Timing读取状态码
const navStatusJS = `() => {
	const e = performance.getEntriesByType('navigation')[0];
	return e && e.responseStatus ? e.responseStatus : 0;
}`

type pendingRequest struct {
	method string
	url    string
}

// RodDriver 基于go-rod的Chromium驱动
type RodDriver struct {
	cfg      DriverConfig
	sink     EventSink
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	mu       sync.Mutex
	requests map[proto.NetworkRequestID]pendingRequest
	docResp  *models.PageResponse
	closed   bool
}

// NewRodDriver 启动浏览器并打开巡检使用的标签页
func NewRodDriver(ctx context.Context, cfg DriverConfig, sink EventSink) (d *RodDriver, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("启动浏览器panic: %v", r)
		}
	}()

	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}

	l := launcher.New().Context(ctx).Headless(cfg.Headless)
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}
	if cfg.IgnoreCertErrors {
		l = l.Set("ignore-certificate-errors")
		utils.Warnf("浏览器已配置为跳过HTTPS证书验证,适用于内网/开发环境的自签名证书")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}
	utils.Debugf("浏览器已启动: %s", controlURL)

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("创建标签页失败: %w", err)
	}

	d = &RodDriver{
		cfg:      cfg,
		sink:     sink,
		launcher: l,
		browser:  browser,
		page:     page,
		requests: make(map[proto.NetworkRequestID]pendingRequest),
	}

	if err := d.applyHeaders(); err != nil {
		_ = d.Close()
		return nil, err
	}
	d.subscribe()

	return d, nil
}

// applyHeaders User-Agent 走UA覆盖,其余头部作为额外请求头
func (d *RodDriver) applyHeaders() error {
	if d.cfg.Headers == nil {
		return nil
	}
	headers, err := d.cfg.Headers.GetHeaders()
	if err != nil {
		return fmt.Errorf("获取HTTP头部失败: %w", err)
	}
	headers = headers.Clone()

	if ua := headers.Get("User-Agent"); ua != "" {
		if err := d.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			return fmt.Errorf("设置User-Agent失败: %w", err)
		}
		headers.Del("User-Agent")
	}

	if pairs := models.FlattenHeaders(headers); len(pairs) > 0 {
		if _, err := d.page.SetExtraHeaders(pairs); err != nil {
			return fmt.Errorf("设置额外请求头失败: %w", err)
		}
	}
	return nil
}

// subscribe 订阅控制台和网络事件,直到标签页关闭
func (d *RodDriver) subscribe() {
	go d.page.EachEvent(
		func(e *proto.RuntimeConsoleAPICalled) {
			if d.sink == nil {
				return
			}
			d.sink.OnConsole(consoleLevel(string(e.Type)), consoleText(e.Args))
		},
		func(e *proto.LogEntryAdded) {
			if d.sink == nil || e.Entry == nil {
				return
			}
			d.sink.OnConsole(consoleLevel(string(e.Entry.Level)), e.Entry.Text)
		},
		func(e *proto.NetworkRequestWillBeSent) {
			if e.Request == nil {
				return
			}
			d.mu.Lock()
			d.requests[e.RequestID] = pendingRequest{method: e.Request.Method, url: e.Request.URL}
			d.mu.Unlock()
		},
		func(e *proto.NetworkLoadingFinished) {
			d.mu.Lock()
			delete(d.requests, e.RequestID)
			d.mu.Unlock()
		},
		func(e *proto.NetworkLoadingFailed) {
			d.mu.Lock()
			req := d.requests[e.RequestID]
			delete(d.requests, e.RequestID)
			d.mu.Unlock()

			reason := e.ErrorText
			if reason == "" && e.Canceled {
				reason = "net::ERR_ABORTED"
			}
			if d.sink != nil {
				d.sink.OnRequestFailed(req.method, req.url, reason)
			}
		},
		func(e *proto.NetworkResponseReceived) {
			if e.Type != proto.NetworkResourceTypeDocument || e.Response == nil || e.FrameID != d.page.FrameID {
				return
			}
			d.mu.Lock()
			d.docResp = &models.PageResponse{
				URL:        e.Response.URL,
				StatusCode: e.Response.Status,
				MIMEType:   e.Response.MIMEType,
			}
			d.mu.Unlock()
		},
	)()
}

func (d *RodDriver) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// scoped 返回绑定上下文和默认超时的页面
func (d *RodDriver) scoped(ctx context.Context, timeout time.Duration) *rod.Page {
	if timeout <= 0 {
		timeout = d.cfg.DefaultTimeout
	}
	return d.page.Context(ctx).Timeout(timeout)
}

// Navigate 导航并等待指定的生命周期事件
func (d *RodDriver) Navigate(ctx context.Context, url string, opts NavigateOptions) (resp *models.PageResponse, err error) {
	if d.isClosed() {
		return nil, ErrDriverClosed
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("导航panic: %v", r)
		}
	}()

	d.mu.Lock()
	d.docResp = nil
	d.mu.Unlock()

	p := d.scoped(ctx, opts.Timeout)
	defer p.CancelTimeout()

	event := proto.PageLifecycleEventNameDOMContentLoaded
	if opts.Milestone == models.MilestoneLoad {
		event = proto.PageLifecycleEventNameLoad
	}

	wait := p.WaitNavigation(event)
	if err := p.Navigate(url); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return resolveNavigationError(url, err, d.awaitDocResponse(ctx, docEventGrace))
	}
	wait()

	if p.GetContext().Err() != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("导航超时(%s): %s", opts.Timeout, url)
	}

	d.mu.Lock()
	doc := d.docResp
	d.mu.Unlock()

	if doc == nil {
		if res, err := p.Eval(navStatusJS); err == nil {
			if status := res.Value.Int(); status > 0 {
				doc = &models.PageResponse{URL: url, StatusCode: status}
			}
		}
	}
	if doc == nil {
		return nil, ErrNoResponse
	}

	log.Debug().Str("url", url).Int("status", doc.StatusCode).Msg("页面已加载")
	return doc, nil
}

// docEventGrace 导航出错后等待文档响应事件送达的时间
const docEventGrace = 500 * time.Millisecond

// awaitDocResponse 事件在独立goroutine中处理,可能晚于 Navigate 返回
func (d *RodDriver) awaitDocResponse(ctx context.Context, grace time.Duration) *models.PageResponse {
	deadline := time.Now().Add(grace)
	for {
		d.mu.Lock()
		doc := d.docResp
		d.mu.Unlock()
		if doc != nil || time.Now().After(deadline) {
			return doc
		}
		if err := utils.SleepContext(ctx, 20*time.Millisecond); err != nil {
			return nil
		}
	}
}

// errHTTPResponseCode Chrome对空响应体的4xx/5xx文档给出的错误
const errHTTPResponseCode = "net::ERR_HTTP_RESPONSE_CODE_FAILURE"

// resolveNavigationError 处理 Page.Navigate 返回的错误
// 空响应体的HTTP错误页仍有状态码,交给爬取器按 HTTP Error 分类
func resolveNavigationError(url string, err error, doc *models.PageResponse) (*models.PageResponse, error) {
	var navErr *rod.NavigationError
	if errors.As(err, &navErr) && navErr.Reason == errHTTPResponseCode && doc != nil {
		log.Debug().Str("url", url).Int("status", doc.StatusCode).Msg("HTTP错误页")
		return doc, nil
	}
	return nil, fmt.Errorf("导航失败: %w", err)
}

// Links 提取当前页面的锚点
func (d *RodDriver) Links(ctx context.Context) ([]string, error) {
	if d.isClosed() {
		return nil, ErrDriverClosed
	}
	p := d.scoped(ctx, 0)
	defer p.CancelTimeout()

	res, err := p.Eval(linksJS)
	if err != nil {
		return nil, fmt.Errorf("执行JavaScript提取链接失败: %w", err)
	}

	var links []string
	for _, item := range res.Value.Arr() {
		if s := item.Str(); s != "" {
			links = append(links, s)
		}
	}
	return links, nil
}

func (d *RodDriver) query(p *rod.Page, loc models.Locator) (rod.Elements, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	els, err := p.ElementsByJS(rod.Eval(locatorJS, string(loc.By), loc.Value, loc.Name, loc.Scope))
	if err != nil {
		return nil, fmt.Errorf("查询元素失败 [%s]: %w", loc, err)
	}
	return els, nil
}

func (d *RodDriver) first(p *rod.Page, loc models.Locator) (*rod.Element, error) {
	els, err := d.query(p, loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, loc)
	}
	return els.First(), nil
}

// Count 匹配数量
func (d *RodDriver) Count(ctx context.Context, loc models.Locator) (int, error) {
	if d.isClosed() {
		return 0, ErrDriverClosed
	}
	p := d.scoped(ctx, 0)
	defer p.CancelTimeout()

	els, err := d.query(p, loc)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

// Attribute 读取属性
func (d *RodDriver) Attribute(ctx context.Context, loc models.Locator, name string) (string, bool, error) {
	if d.isClosed() {
		return "", false, ErrDriverClosed
	}
	p := d.scoped(ctx, 0)
	defer p.CancelTimeout()

	el, err := d.first(p, loc)
	if err != nil {
		return "", false, err
	}
	v, err := el.Attribute(name)
	if err != nil {
		return "", false, fmt.Errorf("读取属性 %s 失败: %w", name, err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

// Click 左键单击
func (d *RodDriver) Click(ctx context.Context, loc models.Locator) error {
	if d.isClosed() {
		return ErrDriverClosed
	}
	p := d.scoped(ctx, 0)
	defer p.CancelTimeout()

	el, err := d.first(p, loc)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("点击 %s 失败: %w", loc, err)
	}
	return nil
}

// Visible 是否可见
func (d *RodDriver) Visible(ctx context.Context, loc models.Locator) (bool, error) {
	if d.isClosed() {
		return false, ErrDriverClosed
	}
	p := d.scoped(ctx, 0)
	defer p.CancelTimeout()

	els, err := d.query(p, loc)
	if err != nil || len(els) == 0 {
		return false, err
	}
	return els.First().Visible()
}

// Text 元素文本
func (d *RodDriver) Text(ctx context.Context, loc models.Locator) (string, error) {
	if d.isClosed() {
		return "", ErrDriverClosed
	}
	p := d.scoped(ctx, 0)
	defer p.CancelTimeout()

	el, err := d.first(p, loc)
	if err != nil {
		return "", err
	}
	return el.Text()
}

// Wait 固定等待
func (d *RodDriver) Wait(ctx context.Context, dur time.Duration) error {
	return utils.SleepContext(ctx, dur)
}

// Close 关闭浏览器并清理用户数据目录
func (d *RodDriver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	err := d.browser.Close()
	d.launcher.Kill()
	d.launcher.Cleanup()
	utils.Debugf("浏览器已关闭")
	return err
}

// consoleLevel 统一CDP中的级别名称
func consoleLevel(t string) models.ConsoleLevel {
	switch t {
	case "error", "assert":
		return models.ConsoleError
	case "warning", "warn":
		return models.ConsoleWarning
	case "verbose":
		return models.ConsoleDebug
	}
	return models.ConsoleLevel(t)
}

// consoleText 将console.*的参数拼接为一行
func consoleText(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == nil {
			continue
		}
		switch {
		case arg.Type == proto.RuntimeRemoteObjectTypeString:
			parts = append(parts, arg.Value.Str())
		case arg.Description != "":
			parts = append(parts, arg.Description)
		case arg.UnserializableValue != "":
			parts = append(parts, string(arg.UnserializableValue))
		default:
			parts = append(parts, arg.Value.JSON("", ""))
		}
	}
	return strings.Join(parts, " ")
}
