package journeys

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RecoveryAshes/SiteInspector/internal/crawlers"
	"github.com/RecoveryAshes/SiteInspector/internal/models"
	"github.com/RecoveryAshes/SiteInspector/internal/utils"
	"github.com/rs/zerolog/log"
)

// Runner 旅程执行器
type Runner struct {
	script Script
}

// NewRunner 创建执行器
func NewRunner(script Script) (*Runner, error) {
	if err := script.Validate(); err != nil {
		return nil, fmt.Errorf("旅程脚本无效: %w", err)
	}
	return &Runner{script: script}, nil
}

// Script 返回执行器使用的脚本
func (r *Runner) Script() Script {
	return r.script
}

// journeyRun 单次执行的可变状态
type journeyRun struct {
	driver      crawlers.Driver
	baseURL     string
	productHref string
}

// Run 在给定驱动上执行一次旅程,总是返回且只返回一个结果
// 步骤错误和panic都转换为FAIL,不会向上传播
func (r *Runner) Run(ctx context.Context, driver crawlers.Driver, baseURL string) (outcome models.JourneyOutcome) {
	outcome = models.JourneyOutcome{Name: r.script.Name}

	defer func() {
		if p := recover(); p != nil {
			outcome.Status = models.JourneyFail
			outcome.Error = fmt.Sprintf("panic: %v", p)
			log.Error().Str("journey", r.script.Name).Interface("panic", p).Msg("旅程异常终止")
		}
	}()

	utils.Infof("🧭 开始旅程: %s", r.script.Name)

	run := &journeyRun{driver: driver, baseURL: strings.TrimRight(baseURL, "/")}
	state := StateStart
	for {
		event, err := r.step(ctx, run, state)
		if err != nil {
			return r.finish(outcome, StateFail, err.Error())
		}

		next, reason, err := Next(state, event)
		if err != nil {
			return r.finish(outcome, StateFail, err.Error())
		}
		log.Debug().Str("from", state.String()).Str("event", event.String()).Str("to", next.String()).Msg("旅程状态转移")

		if next.Terminal() {
			return r.finish(outcome, next, reason)
		}
		state = next
	}
}

func (r *Runner) finish(outcome models.JourneyOutcome, state State, reason string) models.JourneyOutcome {
	switch state {
	case StatePass:
		outcome.Status = models.JourneyPass
		utils.Infof("✅ %s 通过", r.script.Name)
	case StateWarn:
		outcome.Status = models.JourneyWarn
		outcome.Error = reason
		utils.Warnf("⚠️  %s: %s", r.script.Name, reason)
	default:
		outcome.Status = models.JourneyFail
		outcome.Error = reason
		utils.Errorf("❌ %s 失败: %s", r.script.Name, reason)
	}
	return outcome
}

// step 执行一个状态对应的动作
func (r *Runner) step(ctx context.Context, run *journeyRun, state State) (Event, error) {
	if err := ctx.Err(); err != nil {
		return EventOK, err
	}

	s := r.script
	switch state {
	case StateStart:
		return EventOK, nil

	case StateNavigateHome:
		return EventOK, r.navigate(ctx, run, run.baseURL, models.MilestoneDOMContentLoaded, s.HomeTimeout)

	case StateFindProduct, StateRetryFindProduct:
		utils.Info("🔎 查找商品链接...")
		href, ok, err := run.driver.Attribute(ctx, s.ProductLink, "href")
		if errors.Is(err, crawlers.ErrElementNotFound) || (err == nil && (!ok || strings.TrimSpace(href) == "")) {
			if state == StateFindProduct {
				utils.Warnf("首页没有商品链接,尝试 %s", s.ShopLink)
			}
			return EventNotFound, nil
		}
		if err != nil {
			return EventOK, err
		}
		run.productHref = href
		return EventOK, nil

	case StateShopFallback:
		n, err := run.driver.Count(ctx, s.ShopLink)
		if err != nil {
			return EventOK, err
		}
		if n == 0 {
			utils.Warnf("没有找到 %s,直接重试查找商品", s.ShopLink)
			return EventOK, nil
		}
		if err := run.driver.Click(ctx, s.ShopLink); err != nil {
			return EventOK, err
		}
		return EventOK, run.driver.Wait(ctx, s.NavSettle)

	case StateNavigateProduct:
		target := utils.ResolveHref(run.productHref, run.baseURL)
		utils.Infof("📦 打开商品: %s", target)
		return EventOK, r.navigate(ctx, run, target, models.MilestoneLoad, s.NavTimeout)

	case StateSelectSize:
		n, err := run.driver.Count(ctx, s.SizeOption)
		if err != nil {
			return EventOK, err
		}
		if n == 0 {
			utils.Warn("没有可选尺码,直接加入购物车")
			return EventOK, nil
		}
		if err := run.driver.Click(ctx, s.SizeOption); err != nil {
			return EventOK, err
		}
		if size, err := run.driver.Text(ctx, s.SizeOption); err == nil {
			utils.Infof("📏 已选择尺码: %s", size)
		}
		return EventOK, run.driver.Wait(ctx, s.SizeSettle)

	case StateAddToCart:
		visible, err := run.driver.Visible(ctx, s.AddToCart)
		if err != nil {
			return EventOK, err
		}
		if !visible {
			return EventNotFound, nil
		}
		utils.Info("🛒 加入购物车")
		if err := run.driver.Click(ctx, s.AddToCart); err != nil {
			return EventOK, err
		}
		return EventOK, run.driver.Wait(ctx, s.AddSettle)

	case StateNavigateCart:
		return EventOK, r.navigate(ctx, run, utils.ResolveHref(s.CartPath, run.baseURL), models.MilestoneLoad, s.NavTimeout)

	case StateVerifyCart:
		for _, marker := range s.CartMarkers {
			visible, err := run.driver.Visible(ctx, marker)
			if err != nil {
				return EventOK, err
			}
			if visible {
				return EventOK, nil
			}
		}
		return EventNotFound, nil
	}

	return EventOK, fmt.Errorf("未知的旅程状态: %s", state)
}

// navigate 导航并等待页面稳定
// 旅程只关心页面能否打开,不检查主文档状态码
func (r *Runner) navigate(ctx context.Context, run *journeyRun, target string, milestone models.LoadMilestone, timeout time.Duration) error {
	_, err := run.driver.Navigate(ctx, target, crawlers.NavigateOptions{Milestone: milestone, Timeout: timeout})
	if err != nil && !errors.Is(err, crawlers.ErrNoResponse) {
		return err
	}
	return run.driver.Wait(ctx, r.script.NavSettle)
}
