package core

import (
	"net/http"

	"github.com/RecoveryAshes/SiteInspector/internal/config"
	"github.com/RecoveryAshes/SiteInspector/internal/models"
	"github.com/RecoveryAshes/SiteInspector/internal/utils"
)

const (
	// DefaultUserAgent 巡检器的User-Agent,便于在服务端日志中区分
	DefaultUserAgent = "SiteInspector/1.0"

	// MarkerHeader 标记巡检流量的头部
	MarkerHeader = "X-Site-Inspector"
)

// HeaderManager 管理巡检请求头部
// 合并优先级: 默认 < 配置文件 < 命令行,实现 models.HeaderProvider
type HeaderManager struct {
	defaults http.Header
	config   http.Header
	cli      http.Header

	validator    *utils.HeaderValidator
	redactor     *utils.HeaderRedactor
	configLoader *config.HeaderConfigLoader

	loaded bool
}

// NewHeaderManager 创建头部管理器
// configFile 为空时使用 configs/headers.yaml;cliHeaders 为 -H 参数,格式 "Name: Value"
func NewHeaderManager(configFile string, cliHeaders []string) (*HeaderManager, error) {
	hm := &HeaderManager{
		defaults:     DefaultHeaders(),
		config:       make(http.Header),
		cli:          make(http.Header),
		validator:    utils.NewHeaderValidator(),
		redactor:     utils.NewHeaderRedactor(),
		configLoader: config.NewHeaderConfigLoader(configFile),
	}

	if len(cliHeaders) > 0 {
		parsed, err := models.CliHeaders(cliHeaders).Parse()
		if err != nil {
			return nil, err
		}
		hm.cli = parsed
	}
	return hm, nil
}

// DefaultHeaders 内置默认头部
func DefaultHeaders() http.Header {
	return http.Header{
		"User-Agent": []string{DefaultUserAgent},
		MarkerHeader: []string{"1"},
	}
}

// LoadConfig 加载头部配置文件,只加载一次
func (hm *HeaderManager) LoadConfig() error {
	if hm.loaded {
		return nil
	}

	headerConfig, err := hm.configLoader.LoadConfig()
	if err != nil {
		utils.Errorf("加载HTTP头部配置失败: %v", err)
		return err
	}

	hm.config = make(http.Header)
	for name, value := range headerConfig.Headers {
		hm.config.Set(name, value)
	}
	hm.loaded = true

	if len(hm.config) > 0 {
		utils.Debugf("已加载%d个自定义头部: %s", len(hm.config), hm.redactor.RedactToString(hm.config))
	}
	return nil
}

// Validate 依次验证默认、配置文件、命令行头部
func (hm *HeaderManager) Validate() error {
	sources := []struct {
		name    string
		headers http.Header
	}{
		{"默认", hm.defaults},
		{"配置文件", hm.config},
		{"命令行", hm.cli},
	}
	for _, src := range sources {
		if err := hm.validator.Validate(src.headers); err != nil {
			utils.Errorf("%s头部验证失败: %v", src.name, err)
			return err
		}
	}
	return nil
}

// GetMergedHeaders 按优先级合并
func (hm *HeaderManager) GetMergedHeaders() http.Header {
	result := make(http.Header)
	for _, layer := range []http.Header{hm.defaults, hm.config, hm.cli} {
		for name, values := range layer {
			result[name] = append([]string(nil), values...)
		}
	}
	return result
}

// GetSafeHeaders 脱敏后的合并头部,用于日志
func (hm *HeaderManager) GetSafeHeaders() map[string]string {
	return hm.redactor.Redact(hm.GetMergedHeaders())
}

// GetHeaders 实现 models.HeaderProvider
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	if err := hm.LoadConfig(); err != nil {
		return nil, err
	}
	if err := hm.Validate(); err != nil {
		return nil, err
	}
	return hm.GetMergedHeaders(), nil
}

var _ models.HeaderProvider = (*HeaderManager)(nil)
