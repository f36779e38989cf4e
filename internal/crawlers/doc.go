// Package crawlers 提供浏览器驱动和同源页面爬取
//
// # 概述
//
// 巡检的所有页面操作都通过 Driver 接口完成。Driver 有两种实现:
//
//   - RodDriver: 基于go-rod启动Chromium,执行JavaScript,订阅控制台和网络失败事件
//   - StaticDriver: 基于Colly的HTTP抓取,用goquery解析DOM,不执行JavaScript
//
// SiteCrawler 在 Driver 之上做广度优先爬取:
//
//	driver, err := NewDriver(ctx, DriverConfig{Kind: DriverRod, Headless: true}, sink)
//	if err != nil { /* 处理错误 */ }
//	defer driver.Close()
//
//	crawler := NewSiteCrawler(driver, CrawlOptions{NavTimeout: 10 * time.Second})
//	result, err := crawler.Crawl(ctx, "http://localhost:5173", "http://localhost:5173", 50)
//
// # 爬取规则
//
//   - Frontier 为FIFO队列,已访问集合保证每个URL最多处理一次
//   - 页面预算限制已访问数量,不限制队列长度
//   - 入队和出队时都检查同源和跳过规则(协议、静态资源扩展名、敏感路径)
//   - 单个URL失败只记录为断链,不会中止爬取;只有ctx取消时Crawl返回错误
//
// # 定位器
//
// 旅程和爬取都用 models.Locator 描述元素,支持 css、text(忽略大小写的文本片段)
// 和 role(ARIA角色 + 可见名称)三种方式。StaticDriver 只支持点击链接。
//
// # 资源检查
//
// ResourceMonitor 在启动浏览器前采样内存和CPU,资源紧张时只告警不阻止巡检。
package crawlers
