package journeys

import (
	"fmt"
	"time"

	"github.com/RecoveryAshes/SiteInspector/internal/models"
)

// Script 购物旅程脚本
// 只描述要找的元素和等待时间,控制流由 Runner 的转移表决定
type Script struct {
	Name string `mapstructure:"name"`

	ProductLink models.Locator   `mapstructure:"product_link"` // 首页上的商品链接,取其href
	ShopLink    models.Locator   `mapstructure:"shop_link"`    // 首页没有商品时点击的入口
	SizeOption  models.Locator   `mapstructure:"size_option"`  // 可选尺码,存在时点击第一个
	AddToCart   models.Locator   `mapstructure:"add_to_cart"`
	CartPath    string           `mapstructure:"cart_path"`
	CartMarkers []models.Locator `mapstructure:"cart_markers"` // 任一可见即认为购物车非空

	HomeTimeout time.Duration `mapstructure:"home_timeout"`
	NavTimeout  time.Duration `mapstructure:"nav_timeout"`
	NavSettle   time.Duration `mapstructure:"nav_settle"`
	SizeSettle  time.Duration `mapstructure:"size_settle"`
	AddSettle   time.Duration `mapstructure:"add_settle"`
}

// DefaultShopperScript 默认的 Shopper Flow
func DefaultShopperScript() Script {
	return Script{
		Name:        "Shopper Flow",
		ProductLink: models.CSS("a[href*='/product/']"),
		ShopLink:    models.Text("Shop"),
		SizeOption:  models.CSS("div.flex.flex-wrap.gap-2 button:not([disabled])"),
		AddToCart:   models.Locator{By: models.LocateByText, Value: "Add to Cart", Scope: "button"},
		CartPath:    "/cart",
		CartMarkers: []models.Locator{models.Text("Checkout"), models.Text("Total")},
		HomeTimeout: 15 * time.Second,
		NavTimeout:  30 * time.Second,
		NavSettle:   time.Second,
		SizeSettle:  500 * time.Millisecond,
		AddSettle:   time.Second,
	}
}

// Validate 校验脚本
func (s Script) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("旅程名称不能为空")
	}

	locators := []struct {
		name string
		loc  models.Locator
	}{
		{"product_link", s.ProductLink},
		{"shop_link", s.ShopLink},
		{"size_option", s.SizeOption},
		{"add_to_cart", s.AddToCart},
	}
	for _, l := range locators {
		if err := l.loc.Validate(); err != nil {
			return fmt.Errorf("定位器 %s 无效: %w", l.name, err)
		}
	}

	if len(s.CartMarkers) == 0 {
		return fmt.Errorf("至少需要一个购物车标记定位器")
	}
	for i, loc := range s.CartMarkers {
		if err := loc.Validate(); err != nil {
			return fmt.Errorf("购物车标记 #%d 无效: %w", i+1, err)
		}
	}

	if s.CartPath == "" {
		return fmt.Errorf("购物车路径不能为空")
	}
	if s.HomeTimeout <= 0 || s.NavTimeout <= 0 {
		return fmt.Errorf("旅程导航超时必须大于0")
	}
	if s.NavSettle < 0 || s.SizeSettle < 0 || s.AddSettle < 0 {
		return fmt.Errorf("等待时间不能为负数")
	}
	return nil
}
