package crawlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RecoveryAshes/SiteInspector/internal/models"
	"github.com/RecoveryAshes/SiteInspector/internal/utils"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// 断链原因
const (
	ReasonNoResponse = "No response object"
	ReasonHTTPError  = "HTTP Error"
	ReasonExtract    = "link extraction failed"
)

// CrawlOptions 爬取参数
type CrawlOptions struct {
	NavTimeout        time.Duration // 单页导航超时
	Settle            time.Duration // 导航后等待客户端渲染
	RequestsPerSecond float64       // 导航限速,0为不限
	Policy            *utils.URLPolicy

	// OnPage 每处理完一个页面回调一次
	OnPage func(pageURL string, visited, budget int)
}

// CrawlResult 爬取结果
type CrawlResult struct {
	Visited     []string
	BrokenLinks []models.BrokenLink
}

// SiteCrawler 同源广度优先爬取
type SiteCrawler struct {
	driver  Driver
	opts    CrawlOptions
	limiter *rate.Limiter
}

// NewSiteCrawler 创建爬取器
func NewSiteCrawler(driver Driver, opts CrawlOptions) *SiteCrawler {
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 10 * time.Second
	}
	if opts.Policy == nil {
		opts.Policy = utils.DefaultURLPolicy()
	}

	c := &SiteCrawler{driver: driver, opts: opts}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return c
}

// Crawl 从入口开始爬取,最多访问 pageBudget 个页面
// 单个页面的失败记为断链,不会中断爬取
// 上下文取消或页面处理之外的panic会返回错误,此时结果为已收集的部分
func (c *SiteCrawler) Crawl(ctx context.Context, entryURL, baseURL string, pageBudget int) (result *CrawlResult, err error) {
	result = &CrawlResult{}
	frontier := NewFrontier()
	frontier.Push(utils.NormalizeURL(entryURL))

	utils.Infof("🕷️  开始爬取: %s (最多 %d 页)", entryURL, pageBudget)

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Int("visited", frontier.VisitedCount()).Msg("爬取panic")
			err = fmt.Errorf("爬取panic: %v", r)
		}
		result.Visited = frontier.Visited()
	}()

	for frontier.VisitedCount() < pageBudget {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		raw, ok := frontier.Pop()
		if !ok {
			break
		}

		pageURL := utils.NormalizeURL(raw)
		if frontier.IsVisited(pageURL) || !utils.SameOrigin(pageURL, baseURL) || c.opts.Policy.ShouldSkip(pageURL) {
			log.Debug().Str("url", pageURL).Msg("丢弃队列中的URL")
			continue
		}
		frontier.MarkVisited(pageURL)

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return result, err
			}
		}

		utils.Infof("🔍 [%d/%d] %s", frontier.VisitedCount(), pageBudget, pageURL)
		links, broken := c.visit(ctx, pageURL)

		// 取消导致的失败不计入断链
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if broken != nil {
			utils.Warnf("❌ 断链: %s - %s (%d)", broken.URL, broken.Reason, broken.Status)
			result.BrokenLinks = append(result.BrokenLinks, *broken)
		}

		added := 0
		for _, href := range links {
			link := utils.NormalizeURL(href)
			if frontier.IsVisited(link) || !c.opts.Policy.Admit(link, baseURL) {
				continue
			}
			if frontier.Push(link) {
				added++
			}
		}
		if added > 0 {
			log.Debug().Str("url", pageURL).Int("added", added).Int("pending", frontier.PendingCount()).Msg("新链接入队")
		}

		if c.opts.OnPage != nil {
			c.opts.OnPage(pageURL, frontier.VisitedCount(), pageBudget)
		}
	}

	utils.Infof("✅ 爬取完成: 访问 %d 页, 断链 %d 个", frontier.VisitedCount(), len(result.BrokenLinks))
	return result, nil
}

// visit 访问单个页面并分类结果
// 成功时返回页面上的链接;失败时返回断链记录
func (c *SiteCrawler) visit(ctx context.Context, pageURL string) (links []string, broken *models.BrokenLink) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("url", pageURL).Interface("panic", r).Msg("页面处理panic")
			links = nil
			broken = &models.BrokenLink{URL: pageURL, Status: 0, Reason: fmt.Sprintf("panic: %v", r)}
		}
	}()

	resp, err := c.driver.Navigate(ctx, pageURL, NavigateOptions{
		Milestone: models.MilestoneDOMContentLoaded,
		Timeout:   c.opts.NavTimeout,
	})
	switch {
	case errors.Is(err, ErrNoResponse), err == nil && resp == nil:
		return nil, &models.BrokenLink{URL: pageURL, Status: 0, Reason: ReasonNoResponse}
	case err != nil:
		return nil, &models.BrokenLink{URL: pageURL, Status: 0, Reason: err.Error()}
	}

	if err := c.driver.Wait(ctx, c.opts.Settle); err != nil {
		return nil, &models.BrokenLink{URL: pageURL, Status: 0, Reason: err.Error()}
	}

	if resp.StatusCode >= 400 {
		return nil, &models.BrokenLink{URL: pageURL, Status: resp.StatusCode, Reason: ReasonHTTPError}
	}

	links, err = c.driver.Links(ctx)
	if err != nil {
		return nil, &models.BrokenLink{
			URL:    pageURL,
			Status: resp.StatusCode,
			Reason: fmt.Sprintf("%s: %v", ReasonExtract, err),
		}
	}
	return links, nil
}
