package recipe

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput 預測資料無法轉換為有限數值
	ErrInvalidInput = errors.New("invalid input")
	// ErrIndexNotBuilt 在索引建立前呼叫 Resolve
	ErrIndexNotBuilt = errors.New("recipe index not built")
)

// Prediction 分類器輸出的一個標籤與信心值
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// UnmarshalJSON 接受數字、數字字串或 null 作為 confidence
func (p *Prediction) UnmarshalJSON(data []byte) error {
	var raw struct {
		Label      string          `json:"label"`
		Confidence json.RawMessage `json:"confidence"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var value interface{}
	if len(raw.Confidence) > 0 {
		dec := json.NewDecoder(strings.NewReader(string(raw.Confidence)))
		dec.UseNumber()
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("%w: confidence for %q: %v", ErrInvalidInput, raw.Label, err)
		}
	}

	confidence, err := CoerceConfidence(value)
	if err != nil {
		return fmt.Errorf("confidence for %q: %w", raw.Label, err)
	}

	p.Label = raw.Label
	p.Confidence = confidence
	return nil
}

// RecipeRecord 資料集中的一道食譜
type RecipeRecord struct {
	ClassName   string   `json:"class_name"`
	Name        string   `json:"name"`
	ImageURL    string   `json:"image_url"`
	Ingredients []string `json:"ingredients"`
	Method      []string `json:"method"`
}

// ResolvedResult 顯示給使用者的一筆結果：預測 + 對應食譜
type ResolvedResult struct {
	Label       string   `json:"label"`
	Confidence  float64  `json:"confidence"`
	Name        string   `json:"name"`
	ImageURL    string   `json:"image_url"`
	Ingredients []string `json:"ingredients"`
	Method      []string `json:"method"`
}

func newResolvedResult(p Prediction, r RecipeRecord) ResolvedResult {
	return ResolvedResult{
		Label:       p.Label,
		Confidence:  p.Confidence,
		Name:        r.Name,
		ImageURL:    r.ImageURL,
		Ingredients: cloneStrings(r.Ingredients),
		Method:      cloneStrings(r.Method),
	}
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
