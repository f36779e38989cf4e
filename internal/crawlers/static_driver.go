package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/SiteInspector/internal/models"
	"github.com/RecoveryAshes/SiteInspector/internal/utils"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog/log"
)

// roleSelectors role定位器对应的候选元素
var roleSelectors = map[string]string{
	"button": "button,[role=button],input[type=button],input[type=submit]",
	"link":   "a[href],[role=link]",
}

// staticPage 最近一次抓取的页面
type staticPage struct {
	url    string
	status int
	mime   string
	body   []byte
	doc    *goquery.Document
}

// StaticDriver 不执行JavaScript的HTTP驱动
// 适合服务端渲染的站点;客户端渲染的链接和控制台输出无法观测
type StaticDriver struct {
	cfg       DriverConfig
	sink      EventSink
	collector *colly.Collector

	mu       sync.Mutex
	current  *staticPage
	fetched  *staticPage
	fetchErr error
	closed   bool
}

// NewStaticDriver 创建同步的colly抓取器
func NewStaticDriver(cfg DriverConfig, sink EventSink) (*StaticDriver, error) {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	// 4xx/5xx 也交给OnResponse,由爬取器分类
	c.ParseHTTPErrorResponse = true
	c.SetRequestTimeout(cfg.DefaultTimeout)

	if cfg.IgnoreCertErrors {
		c.WithTransport(&http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		})
		utils.Debugf("静态驱动: TLS证书验证已禁用,适用于内网/开发环境的自签名证书")
	}

	d := &StaticDriver{cfg: cfg, sink: sink, collector: c}

	var headers http.Header
	if cfg.Headers != nil {
		h, err := cfg.Headers.GetHeaders()
		if err != nil {
			return nil, fmt.Errorf("获取HTTP头部失败: %w", err)
		}
		headers = h.Clone()
	}

	c.OnRequest(func(r *colly.Request) {
		for name, values := range headers {
			if len(values) > 0 {
				r.Headers.Set(name, values[0])
			}
		}
		log.Debug().Str("url", r.URL.String()).Msg("静态抓取")
	})

	c.OnResponse(func(r *colly.Response) {
		body := decodeBody(r.Headers.Get("Content-Encoding"), r.Body)
		page := &staticPage{
			url:    r.Request.URL.String(),
			status: r.StatusCode,
			mime:   r.Headers.Get("Content-Type"),
			body:   body,
		}
		if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
			page.doc = doc
		}
		d.mu.Lock()
		d.fetched = page
		d.mu.Unlock()
	})

	c.OnError(func(r *colly.Response, err error) {
		method, target := "GET", ""
		if r != nil && r.Request != nil {
			method = r.Request.Method
			target = r.Request.URL.String()
		}
		d.mu.Lock()
		d.fetchErr = err
		d.mu.Unlock()
		if d.sink != nil {
			d.sink.OnRequestFailed(method, target, err.Error())
		}
	})

	return d, nil
}

func (d *StaticDriver) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Navigate 同步抓取页面
// 加载阶段参数对静态抓取没有意义,响应体读完即视为加载完成
func (d *StaticDriver) Navigate(ctx context.Context, target string, opts NavigateOptions) (*models.PageResponse, error) {
	if d.isClosed() {
		return nil, ErrDriverClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = d.cfg.DefaultTimeout
	}
	d.collector.SetRequestTimeout(timeout)

	d.mu.Lock()
	d.fetched, d.fetchErr = nil, nil
	d.mu.Unlock()

	visitErr := d.collector.Visit(target)

	d.mu.Lock()
	page, fetchErr := d.fetched, d.fetchErr
	if page != nil {
		d.current = page
	}
	d.mu.Unlock()

	switch {
	case fetchErr != nil:
		return nil, fmt.Errorf("导航失败: %w", fetchErr)
	case visitErr != nil:
		return nil, fmt.Errorf("导航失败: %w", visitErr)
	case page == nil:
		return nil, ErrNoResponse
	}

	return &models.PageResponse{URL: page.url, StatusCode: page.status, MIMEType: page.mime}, nil
}

func (d *StaticDriver) page() (*staticPage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDriverClosed
	}
	if d.current == nil {
		return nil, fmt.Errorf("尚未加载任何页面")
	}
	return d.current, nil
}

// Links 从最近抓取的HTML中提取锚点
func (d *StaticDriver) Links(ctx context.Context) ([]string, error) {
	page, err := d.page()
	if err != nil {
		return nil, err
	}
	return ExtractLinksFromHTML(string(page.body), page.url)
}

// resolve 在最近抓取的文档上解析定位器
func (d *StaticDriver) resolve(loc models.Locator) (*goquery.Selection, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	page, err := d.page()
	if err != nil {
		return nil, err
	}
	if page.doc == nil {
		return nil, fmt.Errorf("页面不是有效的HTML: %s", page.url)
	}

	var candidates *goquery.Selection
	var needle string
	switch loc.By {
	case models.LocateByCSS:
		return page.doc.Find(loc.Value), nil
	case models.LocateByRole:
		sel, ok := roleSelectors[loc.Value]
		if !ok {
			sel = fmt.Sprintf("[role=%q]", loc.Value)
		}
		candidates = page.doc.Find(sel)
		needle = normalizeText(loc.Name)
	default:
		scope := loc.Scope
		if scope == "" {
			scope = "*"
		}
		candidates = page.doc.Find(scope)
		needle = normalizeText(loc.Value)
	}

	hits := candidates.FilterFunction(func(_ int, s *goquery.Selection) bool {
		if s.Closest("head,script,style,noscript,template").Length() > 0 {
			return false
		}
		return needle == "" || strings.Contains(normalizeText(selectionText(s)), needle)
	})

	// 只保留最深层的命中
	return hits.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find("*").FilterSelection(hits).Length() == 0
	}), nil
}

func (d *StaticDriver) first(loc models.Locator) (*goquery.Selection, error) {
	sel, err := d.resolve(loc)
	if err != nil {
		return nil, err
	}
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, loc)
	}
	return sel.First(), nil
}

// Count 匹配数量
func (d *StaticDriver) Count(ctx context.Context, loc models.Locator) (int, error) {
	sel, err := d.resolve(loc)
	if err != nil {
		return 0, err
	}
	return sel.Length(), nil
}

// Attribute 读取属性
func (d *StaticDriver) Attribute(ctx context.Context, loc models.Locator, name string) (string, bool, error) {
	el, err := d.first(loc)
	if err != nil {
		return "", false, err
	}
	v, ok := el.Attr(name)
	return v, ok, nil
}

// Click 只支持带href的链接,点击即导航
func (d *StaticDriver) Click(ctx context.Context, loc models.Locator) error {
	el, err := d.first(loc)
	if err != nil {
		return err
	}

	href, ok := el.Attr("href")
	if goquery.NodeName(el) != "a" || !ok {
		return fmt.Errorf("%w: 无法点击 <%s> %s", ErrUnsupportedAction, goquery.NodeName(el), loc)
	}

	page, err := d.page()
	if err != nil {
		return err
	}
	target := href
	if base, err := url.Parse(page.url); err == nil {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			target = base.ResolveReference(ref).String()
		}
	}

	_, err = d.Navigate(ctx, target, NavigateOptions{Timeout: d.cfg.DefaultTimeout})
	return err
}

// Visible 没有布局信息,按hidden属性和内联样式判断
func (d *StaticDriver) Visible(ctx context.Context, loc models.Locator) (bool, error) {
	sel, err := d.resolve(loc)
	if err != nil || sel.Length() == 0 {
		return false, err
	}
	el := sel.First()
	if el.Closest("[hidden]").Length() > 0 {
		return false, nil
	}
	style, _ := el.Attr("style")
	style = strings.ReplaceAll(strings.ToLower(style), " ", "")
	if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
		return false, nil
	}
	return true, nil
}

// Text 元素文本
func (d *StaticDriver) Text(ctx context.Context, loc models.Locator) (string, error) {
	el, err := d.first(loc)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(el.Text()), nil
}

// Wait 固定等待
func (d *StaticDriver) Wait(ctx context.Context, dur time.Duration) error {
	return utils.SleepContext(ctx, dur)
}

// Close 标记关闭
func (d *StaticDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.current = nil
	return nil
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func selectionText(s *goquery.Selection) string {
	if t := s.Text(); strings.TrimSpace(t) != "" {
		return t
	}
	if v, ok := s.Attr("value"); ok {
		return v
	}
	v, _ := s.Attr("aria-label")
	return v
}

// decodeBody 按Content-Encoding解压,失败时返回原始内容
// colly已经处理过的gzip会解压失败,此时原样返回
func decodeBody(contentEncoding string, body []byte) []byte {
	if contentEncoding == "" {
		return body
	}
	decoded, err := decompressResponse(contentEncoding, body)
	if err != nil {
		log.Debug().Err(err).Str("encoding", contentEncoding).Msg("响应体无需解压或解压失败,使用原始内容")
		return body
	}
	return decoded
}

// decompressResponse 支持 gzip, deflate, br
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	var reader io.Reader
	switch encoding {
	case "gzip":
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fr := flate.NewReader(bytes.NewReader(body))
		defer fr.Close()
		reader = fr
	case "br":
		reader = brotli.NewReader(bytes.NewReader(body))
	case "", "identity":
		return body, nil
	default:
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%s读取失败: %w", encoding, err)
	}
	return decompressed, nil
}
