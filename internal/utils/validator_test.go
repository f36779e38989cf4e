package utils

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/RecoveryAshes/SiteInspector/internal/models"
)

func TestHeaderValidator_ValidateHeader(t *testing.T) {
	validator := NewHeaderValidator()

	tests := []struct {
		name        string
		headerName  string
		headerValue string
		expectError bool
	}{
		{"合法头部", "User-Agent", "SiteInspector/1.0", false},
		{"合法名称-数字", "X-Request-ID-123", "abc", false},
		{"合法值-空字符串", "X-Empty", "", false},
		{"合法值-长字符串", "X-Long", strings.Repeat(" ", 8000), false},
		{"非法名称-空格", "User Agent", "v", true},
		{"非法名称-下划线", "User_Agent", "v", true},
		{"非法名称-空字符串", "", "v", true},
		{"禁止头部-Host", "Host", "example.com", true},
		{"禁止头部-大小写不敏感", "accept-encoding", "gzip", true},
		{"非法值-超长", "X-TooLong", strings.Repeat("a", MaxHeaderValueLength+1), true},
		{"非法值-控制字符", "X-Bad", "value\x00with\x01null", true},
		{"非法值-中文", "X-Bad", "中文", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateHeader(tt.headerName, tt.headerValue)
			if (err != nil) != tt.expectError {
				t.Errorf("期望错误=%v, 实际错误=%v", tt.expectError, err)
			}

			if err != nil {
				var ve *models.ValidationError
				if !errors.As(err, &ve) {
					t.Errorf("错误类型应为 *models.ValidationError, 得到 %T", err)
				}
			}
		})
	}
}

func TestHeaderValidator_Validate(t *testing.T) {
	validator := NewHeaderValidator()

	headers := http.Header{}
	headers.Set("User-Agent", "SiteInspector/1.0")
	headers.Set("X-Site-Inspector", "1")
	if err := validator.Validate(headers); err != nil {
		t.Errorf("合法头部不应报错: %v", err)
	}

	headers.Set("Connection", "close")
	err := validator.Validate(headers)
	if err == nil {
		t.Fatal("包含禁止头部时应报错")
	}
	if !strings.Contains(err.Error(), "Connection") {
		t.Errorf("错误信息应包含头部名称, 得到: %v", err)
	}
}

func TestHeaderRedactor(t *testing.T) {
	redactor := NewHeaderRedactor()

	tests := []struct {
		name   string
		header string
		value  string
		want   string
	}{
		{"非敏感头部保持原样", "User-Agent", "SiteInspector/1.0", "SiteInspector/1.0"},
		{"Bearer令牌", "Authorization", "Bearer abcdefghijkl", "Bearer ***"},
		{"长密钥保留首尾", "X-Api-Key", "1234567890abcdef", "1234***cdef"},
		{"短密钥完全隐藏", "X-Token", "short", "***"},
		{"Cookie", "Cookie", "sid=1", "***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := redactor.RedactHeaderValue(tt.header, tt.value); got != tt.want {
				t.Errorf("RedactHeaderValue() = %q, want %q", got, tt.want)
			}
		})
	}

	headers := http.Header{}
	headers.Set("X-Site-Inspector", "1")
	headers.Set("Authorization", "Bearer secret-token")
	got := redactor.RedactToString(headers)
	want := "Authorization: Bearer ***, X-Site-Inspector: 1"
	if got != want {
		t.Errorf("RedactToString() = %q, want %q", got, want)
	}
}
