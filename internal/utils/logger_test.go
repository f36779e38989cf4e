package utils

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func quietLogConfig(dir, level string) LogConfig {
	return LogConfig{
		Level:      level,
		LogDir:     dir,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   false,
		Console:    io.Discard,
		NoColor:    true,
	}
}

func TestInitLogger(t *testing.T) {
	tempDir := filepath.Join(t.TempDir(), "nested", "logs")

	if err := InitLogger(quietLogConfig(tempDir, "debug")); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	if _, err := os.Stat(tempDir); os.IsNotExist(err) {
		t.Errorf("日志目录未创建: %s", tempDir)
	}

	Info("测试信息日志")
	Warn("测试警告日志")
	Debug("测试调试日志")

	mainLogPath := filepath.Join(tempDir, "inspector.log")
	if _, err := os.Stat(mainLogPath); os.IsNotExist(err) {
		t.Errorf("主日志文件未创建: %s", mainLogPath)
	}
}

func TestLogLevels(t *testing.T) {
	tempDir := t.TempDir()

	if err := InitLogger(quietLogConfig(tempDir, "info")); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	Info("信息日志测试")
	Infof("格式化信息日志: %s", "测试")
	Warnf("格式化警告日志: %d", 123)
	Debugf("调试日志-级别为info时不应出现: %v", true)

	content, err := os.ReadFile(filepath.Join(tempDir, "inspector.log"))
	if err != nil {
		t.Fatalf("读取日志文件失败: %v", err)
	}

	text := string(content)
	if !strings.Contains(text, "信息日志测试") {
		t.Error("主日志缺少信息日志")
	}
	if strings.Contains(text, "级别为info时不应出现") {
		t.Error("debug日志不应写入info级别的主日志")
	}
}

func TestErrorLogOnlyReceivesErrors(t *testing.T) {
	tempDir := t.TempDir()

	if err := InitLogger(quietLogConfig(tempDir, "debug")); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	Warn("只是警告")
	Errorf("真正的错误: %s", "boom")

	content, err := os.ReadFile(filepath.Join(tempDir, "inspector_error.log"))
	if err != nil {
		t.Fatalf("读取错误日志失败: %v", err)
	}

	text := string(content)
	if !strings.Contains(text, "真正的错误") {
		t.Error("错误日志缺少error级别消息")
	}
	if strings.Contains(text, "只是警告") {
		t.Error("错误日志不应包含warn级别消息")
	}
}

func TestFilteredWriter(t *testing.T) {
	var sb strings.Builder
	w := &FilteredWriter{Writer: &sb, MinLevel: zerolog.ErrorLevel}

	n, err := w.WriteLevel(zerolog.InfoLevel, []byte("info"))
	if err != nil || n != 4 {
		t.Errorf("低级别写入应假装成功, n=%d err=%v", n, err)
	}
	if _, err := w.WriteLevel(zerolog.ErrorLevel, []byte("error")); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if _, err := w.Write([]byte("plain")); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	if sb.String() != "error" {
		t.Errorf("期望只写入 'error', 得到 %q", sb.String())
	}
}

func TestDefaultLogConfig(t *testing.T) {
	config := DefaultLogConfig()

	if config.Level != "info" {
		t.Errorf("默认日志级别错误: 期望 'info', 得到 '%s'", config.Level)
	}
	if config.LogDir != "logs" {
		t.Errorf("默认日志目录错误: 期望 'logs', 得到 '%s'", config.LogDir)
	}
	if config.MaxSize != 10 || config.MaxBackups != 3 || config.MaxAge != 28 {
		t.Errorf("默认轮转参数错误: %+v", config)
	}
	if !config.Compress {
		t.Error("默认应该启用压缩")
	}
}
