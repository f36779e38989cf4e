package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RecoveryAshes/SiteInspector/internal/config"
	"github.com/RecoveryAshes/SiteInspector/internal/models"
)

func TestHeaderConfigLoader_LoadConfig(t *testing.T) {
	t.Run("首次运行自动生成模板", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "configs", "headers.yaml")
		loader := config.NewHeaderConfigLoader(configPath)

		cfg, err := loader.LoadConfig()
		if err != nil {
			t.Fatalf("加载配置失败: %v", err)
		}

		data, err := os.ReadFile(configPath)
		if err != nil {
			t.Fatalf("配置文件应被生成: %v", err)
		}
		if string(data) != config.HeaderTemplate() {
			t.Error("生成的文件应与内置模板一致")
		}
		// 模板中的示例全部是注释
		if len(cfg.Headers) != 0 {
			t.Errorf("模板不应启用任何头部, 得到 %v", cfg.Headers)
		}
	})

	t.Run("读取已有配置", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "headers.yaml")
		content := `headers:
  Authorization: "Basic dXNlcjpwYXNz"
  X-Canary: "false"
`
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatalf("写入测试配置失败: %v", err)
		}

		cfg, err := config.NewHeaderConfigLoader(configPath).LoadConfig()
		if err != nil {
			t.Fatalf("加载配置失败: %v", err)
		}

		// viper会将键名转换为小写
		if cfg.Headers["authorization"] != "Basic dXNlcjpwYXNz" {
			t.Errorf("authorization = %q", cfg.Headers["authorization"])
		}
		if cfg.Headers["x-canary"] != "false" {
			t.Errorf("x-canary = %q", cfg.Headers["x-canary"])
		}
	})

	t.Run("YAML格式错误", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "headers.yaml")
		bad := "headers:\n  User-Agent: \"Test Bot\n  X-Custom: missing quote\n"
		if err := os.WriteFile(configPath, []byte(bad), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := config.NewHeaderConfigLoader(configPath).LoadConfig()
		var cfgErr *models.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("期望 ConfigError, 得到 %v", err)
		}
		if cfgErr.FilePath != configPath {
			t.Errorf("FilePath = %q", cfgErr.FilePath)
		}
	})

	t.Run("headers为空", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "headers.yaml")
		if err := os.WriteFile(configPath, []byte("headers:"), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := config.NewHeaderConfigLoader(configPath).LoadConfig()
		if err != nil {
			t.Fatalf("加载空配置失败: %v", err)
		}
		if cfg.Headers == nil {
			t.Fatal("Headers 应初始化为空map")
		}
	})

	t.Run("超过大小限制", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "headers.yaml")
		if err := os.WriteFile(configPath, make([]byte, config.MaxConfigFileSize+1), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := config.NewHeaderConfigLoader(configPath).LoadConfig()
		if err == nil || !strings.Contains(err.Error(), "配置文件过大") {
			t.Fatalf("超大配置文件应被拒绝, 得到 %v", err)
		}
	})
}

func TestNewHeaderConfigLoader_DefaultPath(t *testing.T) {
	if got := config.NewHeaderConfigLoader("").Path(); got != config.DefaultHeaderFile {
		t.Errorf("Path() = %q, want %q", got, config.DefaultHeaderFile)
	}
}
