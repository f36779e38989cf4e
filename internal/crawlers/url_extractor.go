package crawlers

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// ExtractLinksFromHTML 按文档顺序提取所有<a href>并转换为绝对地址
// 遵循页面中的<base href>;无法解析的href被忽略
func ExtractLinksFromHTML(htmlContent string, pageURL string) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("解析HTML失败: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("解析页面URL失败: %w", err)
	}
	if b := findBaseHref(doc); b != "" {
		if ref, err := url.Parse(b); err == nil {
			base = base.ResolveReference(ref)
		}
	}

	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href, ok := attr(n, "href"); ok {
				if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
					links = append(links, base.ResolveReference(ref).String())
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return links, nil
}

// findBaseHref 返回第一个<base>的href
func findBaseHref(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "base" {
		if href, ok := attr(n, "href"); ok {
			return href
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if href := findBaseHref(c); href != "" {
			return href
		}
	}
	return ""
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
