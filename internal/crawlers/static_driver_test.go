package crawlers_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/RecoveryAshes/SiteInspector/internal/crawlers"
	"github.com/RecoveryAshes/SiteInspector/internal/models"
	"github.com/RecoveryAshes/SiteInspector/internal/testutils"
	"github.com/andybalholm/brotli"
)

type staticHeaders http.Header

func (h staticHeaders) GetHeaders() (http.Header, error) {
	return http.Header(h), nil
}

const productPage = `<html><body>
	<nav><a href="/">Home</a> <a href="/shop">Shop</a></nav>
	<div class="flex flex-wrap gap-2">
		<button disabled>XS</button>
		<button>M</button>
	</div>
	<button class="primary"><span>Add To Cart</span></button>
	<p hidden>Secret Total</p>
	<a href="/cart">Cart</a>
</body></html>`

func newShopServer(t *testing.T) (*httptest.Server, *http.Header) {
	t.Helper()
	var lastHeaders http.Header

	mux := http.NewServeMux()
	mux.HandleFunc("/product/1", func(w http.ResponseWriter, r *http.Request) {
		lastHeaders = r.Header.Clone()
		fmt.Fprint(w, productPage)
	})
	mux.HandleFunc("/cart", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>Cart</h1><div>Total: $10</div><a href="/checkout">Checkout</a></body></html>`)
	})
	mux.HandleFunc("/br", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		bw.Write([]byte(`<html><body><a href="/from-brotli">x</a></body></html>`))
		bw.Close()
		w.Header().Set("Content-Encoding", "br")
		w.Write(buf.Bytes())
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &lastHeaders
}

func newStaticDriver(t *testing.T, sink crawlers.EventSink) *crawlers.StaticDriver {
	t.Helper()
	headers := http.Header{}
	headers.Set("User-Agent", "SiteInspector/1.0")
	headers.Set("X-Site-Inspector", "1")

	d, err := crawlers.NewStaticDriver(crawlers.DriverConfig{
		Kind:           crawlers.DriverStatic,
		DefaultTimeout: 5 * time.Second,
		Headers:        staticHeaders(headers),
	}, sink)
	if err != nil {
		t.Fatalf("NewStaticDriver() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestStaticDriver_NavigateStatus(t *testing.T) {
	srv, lastHeaders := newShopServer(t)
	d := newStaticDriver(t, nil)
	ctx := context.Background()

	resp, err := d.Navigate(ctx, srv.URL+"/product/1", crawlers.NavigateOptions{})
	if err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
	if got := lastHeaders.Get("X-Site-Inspector"); got != "1" {
		t.Errorf("自定义头部未发送, X-Site-Inspector=%q", got)
	}
	if got := lastHeaders.Get("User-Agent"); got != "SiteInspector/1.0" {
		t.Errorf("User-Agent = %q", got)
	}

	resp, err = d.Navigate(ctx, srv.URL+"/nope", crawlers.NavigateOptions{})
	if err != nil {
		t.Fatalf("404页面不应返回错误: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Errorf("StatusCode = %d, want 404", resp.StatusCode)
	}
}

func TestStaticDriver_TransportErrorFeedsSink(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	sink := &testutils.RecordingSink{}
	d := newStaticDriver(t, sink)

	_, err := d.Navigate(context.Background(), addr+"/down", crawlers.NavigateOptions{Timeout: time.Second})
	if err == nil {
		t.Fatal("连接被拒绝时应返回错误")
	}

	failures := sink.Snapshot()
	if len(failures) != 1 {
		t.Fatalf("应记录1个网络失败, 得到 %v", failures)
	}
	if failures[0].Method != "GET" || !strings.HasSuffix(failures[0].URL, "/down") {
		t.Errorf("网络失败记录 = %+v", failures[0])
	}
}

func TestStaticDriver_Locators(t *testing.T) {
	srv, _ := newShopServer(t)
	d := newStaticDriver(t, nil)
	ctx := context.Background()

	if _, err := d.Navigate(ctx, srv.URL+"/product/1", crawlers.NavigateOptions{}); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}

	sizes := models.CSS("div.flex.flex-wrap.gap-2 button:not([disabled])")
	if n, _ := d.Count(ctx, sizes); n != 1 {
		t.Errorf("可选尺码数量 = %d, want 1", n)
	}
	if txt, _ := d.Text(ctx, sizes); txt != "M" {
		t.Errorf("尺码文本 = %q", txt)
	}

	addBtn := models.Locator{By: models.LocateByText, Value: "add to cart", Scope: "button"}
	if ok, err := d.Visible(ctx, addBtn); err != nil || !ok {
		t.Errorf("加入购物车按钮应可见, ok=%v err=%v", ok, err)
	}

	role := models.Role("button", "Add To Cart")
	if n, _ := d.Count(ctx, role); n != 1 {
		t.Errorf("role定位数量 = %d, want 1", n)
	}

	// 文本定位只保留最深层元素
	if n, _ := d.Count(ctx, models.Text("Add To Cart")); n != 1 {
		t.Errorf("文本定位应只命中最深层元素, 得到 %d", n)
	}
	if txt, _ := d.Text(ctx, models.Text("Add To Cart")); txt != "Add To Cart" {
		t.Errorf("文本定位命中 %q", txt)
	}

	if ok, _ := d.Visible(ctx, models.Text("Secret Total")); ok {
		t.Error("hidden元素不应可见")
	}
	if ok, _ := d.Visible(ctx, models.Text("not on page")); ok {
		t.Error("不存在的元素不应可见")
	}

	if href, ok, err := d.Attribute(ctx, models.CSS("nav a"), "href"); err != nil || !ok || href != "/" {
		t.Errorf("Attribute() = %q, %v, %v", href, ok, err)
	}
	if _, _, err := d.Attribute(ctx, models.CSS("a.none"), "href"); !errors.Is(err, crawlers.ErrElementNotFound) {
		t.Errorf("缺失元素应返回 ErrElementNotFound, 得到 %v", err)
	}
}

func TestStaticDriver_Click(t *testing.T) {
	srv, _ := newShopServer(t)
	d := newStaticDriver(t, nil)
	ctx := context.Background()

	if _, err := d.Navigate(ctx, srv.URL+"/product/1", crawlers.NavigateOptions{}); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}

	if err := d.Click(ctx, models.CSS("div.flex button:not([disabled])")); !errors.Is(err, crawlers.ErrUnsupportedAction) {
		t.Errorf("点击按钮应返回 ErrUnsupportedAction, 得到 %v", err)
	}

	if err := d.Click(ctx, models.Role("link", "Cart")); err != nil {
		t.Fatalf("点击链接失败: %v", err)
	}
	if ok, _ := d.Visible(ctx, models.Text("Checkout")); !ok {
		t.Error("点击链接后应位于购物车页面")
	}
}

func TestStaticDriver_LinksAndBrotli(t *testing.T) {
	srv, _ := newShopServer(t)
	d := newStaticDriver(t, nil)
	ctx := context.Background()

	if _, err := d.Navigate(ctx, srv.URL+"/br", crawlers.NavigateOptions{}); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	links, err := d.Links(ctx)
	if err != nil {
		t.Fatalf("Links() error = %v", err)
	}
	if len(links) != 1 || links[0] != srv.URL+"/from-brotli" {
		t.Errorf("brotli页面链接 = %v", links)
	}
}

func TestStaticDriver_Closed(t *testing.T) {
	d := newStaticDriver(t, nil)
	d.Close()
	d.Close()

	if _, err := d.Navigate(context.Background(), "http://localhost", crawlers.NavigateOptions{}); !errors.Is(err, crawlers.ErrDriverClosed) {
		t.Errorf("关闭后导航应返回 ErrDriverClosed, 得到 %v", err)
	}
}
