package utils

import (
	"net/url"
	"path"
	"strings"
)

var (
	// DefaultSkipSchemes 不会被导航的协议
	DefaultSkipSchemes = []string{"mailto", "tel", "javascript", "data", "sms"}

	// DefaultSkipExtensions 静态资源扩展名,页面爬取时跳过
	DefaultSkipExtensions = []string{
		".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg",
		".css", ".js", ".ico", ".map",
		".woff", ".woff2", ".ttf",
	}

	// DefaultSensitivePathKeywords 路径中出现即跳过,避免巡检过程中改变会话状态
	DefaultSensitivePathKeywords = []string{"logout"}
)

// URLPolicy 爬取范围策略
// 所有方法都是纯函数,可并发使用
type URLPolicy struct {
	skipSchemes    map[string]bool
	skipExtensions map[string]bool
	keywords       []string
}

var defaultPolicy = NewURLPolicy(DefaultSkipSchemes, DefaultSkipExtensions, DefaultSensitivePathKeywords)

// DefaultURLPolicy 返回默认策略
func DefaultURLPolicy() *URLPolicy {
	return defaultPolicy
}

// NewURLPolicy 创建策略
// 协议可带或不带冒号,扩展名可带或不带点,大小写不敏感
func NewURLPolicy(schemes, extensions, keywords []string) *URLPolicy {
	p := &URLPolicy{
		skipSchemes:    make(map[string]bool, len(schemes)),
		skipExtensions: make(map[string]bool, len(extensions)),
	}
	for _, s := range schemes {
		s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), ":")
		if s != "" {
			p.skipSchemes[s] = true
		}
	}
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		p.skipExtensions[e] = true
	}
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			p.keywords = append(p.keywords, k)
		}
	}
	return p
}

// NormalizeURL 去掉片段和末尾的斜杠
// 对任意输入幂等
func NormalizeURL(rawURL string) string {
	if i := strings.Index(rawURL, "#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	return strings.TrimRight(rawURL, "/")
}

// SameOrigin 判断是否与基准URL同源
// 主机名不区分大小写;基准URL显式指定端口时端口必须一致,否则任意端口都接受
func SameOrigin(rawURL, baseURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}

	host := u.Hostname()
	if host == "" || !strings.EqualFold(host, base.Hostname()) {
		return false
	}
	if basePort := base.Port(); basePort != "" && u.Port() != basePort {
		return false
	}
	return true
}

// ShouldSkip 判断URL是否应跳过
// 解析失败视为跳过
func (p *URLPolicy) ShouldSkip(rawURL string) bool {
	if strings.TrimSpace(rawURL) == "" {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}

	if p.skipSchemes[strings.ToLower(u.Scheme)] {
		return true
	}

	// mailto:/tel: 之类的地址没有Path,只有Opaque
	p2 := strings.ToLower(u.Path)
	if u.Opaque != "" && p2 == "" {
		p2 = strings.ToLower(u.Opaque)
	}

	if ext := path.Ext(p2); ext != "" && p.skipExtensions[ext] {
		return true
	}
	for _, k := range p.keywords {
		if strings.Contains(p2, k) {
			return true
		}
	}
	return false
}

// Admit 入队检查: 未跳过且同源
func (p *URLPolicy) Admit(rawURL, baseURL string) bool {
	return !p.ShouldSkip(rawURL) && SameOrigin(rawURL, baseURL)
}

// ShouldSkipURL 使用默认策略判断
func ShouldSkipURL(rawURL string) bool {
	return defaultPolicy.ShouldSkip(rawURL)
}

// ResolveHref 将页面中的href转换为绝对地址
// 绝对地址原样返回,相对地址拼接到基准URL后
func ResolveHref(href, baseURL string) string {
	href = strings.TrimSpace(href)
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		if base, err := url.Parse(baseURL); err == nil && base.Scheme != "" {
			return base.Scheme + ":" + href
		}
	}

	base := strings.TrimRight(baseURL, "/")
	if strings.HasPrefix(href, "/") {
		return base + href
	}
	return base + "/" + href
}
