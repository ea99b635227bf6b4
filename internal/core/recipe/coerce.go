package recipe

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CoerceConfidence 盡力將任意值轉為 [0,1] 的信心值
// nil 與空字串視為 0；無法解析或非有限數值回傳 ErrInvalidInput
func CoerceConfidence(v interface{}) (float64, error) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case json.Number:
		parsed, err := strconv.ParseFloat(x.String(), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: confidence %q is not a number", ErrInvalidInput, x.String())
		}
		f = parsed
	case string:
		parsed, err := parseConfidenceString(x)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: unsupported confidence type %T", ErrInvalidInput, v)
	}
	return sanitizeConfidence(f)
}

// parseConfidenceString 支援 "0.9"、" 0.9 "、"90%"
func parseConfidenceString(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	scale := 1.0
	if strings.HasSuffix(s, "%") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
		scale = 100
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: confidence %q is not a number", ErrInvalidInput, s)
	}
	return f / scale, nil
}

// sanitizeConfidence NaN 與負數視為 0，大於 1 截為 1，無窮大為錯誤
func sanitizeConfidence(f float64) (float64, error) {
	switch {
	case math.IsInf(f, 0):
		return 0, fmt.Errorf("%w: confidence %v is not finite", ErrInvalidInput, f)
	case math.IsNaN(f), f < 0:
		return 0, nil
	case f > 1:
		return 1, nil
	}
	return f, nil
}
