package common

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCustomErrorWrap(t *testing.T) {
	cause := errors.New("decode failed")
	err := ErrInvalidImage.Wrap(cause)

	if !errors.Is(err, ErrInvalidImage) {
		t.Error("wrapped error should match its template")
	}
	if errors.Is(err, ErrInvalidInput) {
		t.Error("wrapped error matched a different code")
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped error should unwrap to its cause")
	}
	if err.Status != http.StatusBadRequest {
		t.Errorf("status = %d", err.Status)
	}
	if ErrInvalidImage.Err != nil {
		t.Error("Wrap modified the template")
	}

	outer := fmt.Errorf("handler: %w", err)
	var ce *CustomError
	if !errors.As(outer, &ce) || ce.Code != "INVALID_IMAGE" {
		t.Errorf("errors.As failed through wrapping: %v", outer)
	}
}

func TestCustomErrorResponse(t *testing.T) {
	err := ErrClassifierFailure.Wrap(errors.New("upstream 500"))

	resp := err.Response(false)
	if resp.Code != "CLASSIFIER_ERROR" || resp.Details != "" {
		t.Errorf("non-debug response leaked details: %+v", resp)
	}
	resp = err.Response(true)
	if resp.Details != "upstream 500" {
		t.Errorf("debug response details = %q", resp.Details)
	}
	if !strings.Contains(err.Error(), "upstream 500") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	if err := DecodeJSON(strings.NewReader(`{"name":"a","extra":1}`), &v); err != nil || v.Name != "a" {
		t.Errorf("got %+v, %v", v, err)
	}
	if err := ParseJSON(`{"name":"a"} {"name":"b"}`, &v); err == nil {
		t.Error("expected error for trailing data")
	}
	if err := ParseJSON(`{"name":"b"}`, &v); err != nil || v.Name != "b" {
		t.Errorf("got %+v, %v", v, err)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`[1,2]`, `[1,2]`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{`result: [{"a":[1]}] done`, `[{"a":[1]}]`},
		{`no json here`, `no json here`},
		{`  `, ``},
	}
	for _, tt := range tests {
		if got := ExtractJSON(tt.in); got != tt.want {
			t.Errorf("ExtractJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHash(t *testing.T) {
	if got := HashBytes([]byte("abc")); got != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Errorf("HashBytes = %q", got)
	}
	if GenerateUUID() == GenerateUUID() {
		t.Error("expected unique ids")
	}
}

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	prev, prevMode := Logger, LogMode
	Logger = zap.New(core)
	t.Cleanup(func() {
		Logger, LogMode = prev, prevMode
	})
	return logs
}

func TestLogFiltersImageFields(t *testing.T) {
	logs := observe(t)

	LogInfo("upload",
		zap.String("image", "data:image/png;base64,AAAA"),
		zap.String("image_data", "AAAA"),
		zap.String("raw_base64", "AAAA"),
		zap.String("request_id", "r1"),
	)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if len(fields) != 1 || fields["request_id"] != "r1" {
		t.Errorf("unexpected fields: %v", fields)
	}
}

func TestLogConciseMode(t *testing.T) {
	logs := observe(t)
	LogMode = "concise"

	LogInfo("預測解析完成")
	LogInfo("請求完成")
	LogWarn("快取寫入失敗")

	if logs.Len() != 2 {
		t.Errorf("expected 2 entries in concise mode, got %d", logs.Len())
	}
}

func TestLogClassifierCall(t *testing.T) {
	logs := observe(t)

	LogClassifierCall("remote", 0, 3, nil)
	LogClassifierCall("remote", 0, 0, errors.New("timeout"))

	if n := logs.FilterLevelExact(zapcore.ErrorLevel).Len(); n != 1 {
		t.Errorf("expected 1 error entry, got %d", n)
	}
	if n := logs.FilterMessage("分類請求成功").Len(); n != 1 {
		t.Errorf("expected 1 success entry, got %d", n)
	}
}

func TestInitLoggerWritesFile(t *testing.T) {
	prev := Logger
	t.Cleanup(func() { Logger = prev })

	dir := t.TempDir()
	if err := InitLogger("warn", dir); err != nil {
		t.Fatalf("InitLogger: %v", err)
	}
	if !Logger.Core().Enabled(zapcore.WarnLevel) || Logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("log level not applied")
	}
	LogWarn("disk check")
	Sync()

	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "disk check") {
		t.Errorf("log file missing entry: %s", data)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
