package main

import (
	"fmt"

	"github.com/RecoveryAshes/SiteInspector/internal/crawlers"
	"github.com/RecoveryAshes/SiteInspector/internal/models"
)

// maxPagesLimit 单次巡检的页面数上限
const maxPagesLimit = 10000

// ValidateFlags 验证命令行标志
// 只检查取值范围,配置合并后的整体校验由 core.Config.Validate 完成
func ValidateFlags(
	startURL string,
	baseURL string,
	mode string,
	maxPages int,
	driver string,
) error {
	// 起始URL可以为空,此时取 base-url
	if startURL != "" {
		if err := models.ValidateURL(startURL); err != nil {
			return fmt.Errorf("无效的起始URL: %w", err)
		}
	}

	if err := models.ValidateURL(baseURL); err != nil {
		return fmt.Errorf("无效的base-url: %w", err)
	}

	if _, err := models.ParseAuditMode(mode); err != nil {
		return err
	}

	if maxPages < 1 || maxPages > maxPagesLimit {
		return fmt.Errorf("最大页面数必须在1-%d之间,当前值: %d", maxPagesLimit, maxPages)
	}

	validDrivers := map[string]bool{
		string(crawlers.DriverRod):    true,
		string(crawlers.DriverStatic): true,
	}
	if !validDrivers[driver] {
		return fmt.Errorf("无效的驱动类型: %s (有效值: rod, static)", driver)
	}

	return nil
}
