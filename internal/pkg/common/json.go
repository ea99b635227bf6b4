package common

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ParseJSON 解析 JSON 字符串到結構體
func ParseJSON(data string, v interface{}) error {
	return decodeJSON(strings.NewReader(data), v)
}

// DecodeJSON 使用統一設定解析 JSON
func DecodeJSON(r io.Reader, v interface{}) error {
	return decodeJSON(r, v)
}

func decodeJSON(r io.Reader, v interface{}) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := dec.Decode(v); err != nil {
		return err
	}

	// 確保沒有多餘資料
	if _, err := dec.Token(); err != io.EOF {
		if err != nil {
			return err
		}
		return fmt.Errorf("unexpected extra JSON data")
	}
	return nil
}

// ExtractJSON 從模型輸出中取出最外層的 JSON 陣列或物件
// 模型常在 JSON 前後加上說明文字或 ``` 區塊
func ExtractJSON(content string) string {
	content = strings.TrimSpace(content)
	start := strings.IndexAny(content, "[{")
	if start == -1 {
		return content
	}
	closing := "}"
	if content[start] == '[' {
		closing = "]"
	}
	end := strings.LastIndex(content, closing)
	if end <= start {
		return content
	}
	return content[start : end+1]
}

// ToJSON 將結構體轉換為 JSON 字符串
func ToJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
