package recipe

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// ExpandPolicy 一個標籤對應多道食譜時的展開方式
type ExpandPolicy string

const (
	// AllMatches 每道符合的食譜各產生一筆結果
	AllMatches ExpandPolicy = "all_matches"
	// FirstMatch 只取資料集順序中的第一道
	FirstMatch ExpandPolicy = "first_match"
)

const (
	// Unlimited MaxResults 不限制
	Unlimited = 0
	// UIConfidenceThreshold 前端使用的較嚴格門檻
	UIConfidenceThreshold = 0.2
	// DefaultTopResults TopMatchesOptions 取前幾個預測
	DefaultTopResults = 5
)

// ParseExpandPolicy 解析設定或請求中的展開方式，空字串為 AllMatches
func ParseExpandPolicy(s string) (ExpandPolicy, error) {
	switch ExpandPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", AllMatches, "all":
		return AllMatches, nil
	case FirstMatch, "first":
		return FirstMatch, nil
	}
	return "", fmt.Errorf("%w: unknown expand policy %q", ErrInvalidInput, s)
}

// Options Resolve 的設定
type Options struct {
	ConfidenceThreshold float64      `json:"confidence_threshold" mapstructure:"confidence_threshold"`
	MaxResults          int          `json:"max_results" mapstructure:"max_results"`
	ExpandPolicy        ExpandPolicy `json:"expand_policy" mapstructure:"expand_policy"`
}

// DefaultOptions 接受所有預測、不限數量、展開所有食譜
func DefaultOptions() Options {
	return Options{
		ConfidenceThreshold: 0,
		MaxResults:          Unlimited,
		ExpandPolicy:        AllMatches,
	}
}

// TopMatchesOptions 門檻 0.2、取前五個預測並展開所有食譜
func TopMatchesOptions() Options {
	return Options{
		ConfidenceThreshold: UIConfidenceThreshold,
		MaxResults:          DefaultTopResults,
		ExpandPolicy:        AllMatches,
	}
}

// FirstMatchOptions 不設門檻，每個預測只取第一道食譜
func FirstMatchOptions() Options {
	return Options{
		ConfidenceThreshold: 0,
		MaxResults:          Unlimited,
		ExpandPolicy:        FirstMatch,
	}
}

// Validate 檢查設定值
func (o Options) Validate() error {
	if math.IsNaN(o.ConfidenceThreshold) {
		return fmt.Errorf("%w: confidence_threshold is NaN", ErrInvalidInput)
	}
	if o.MaxResults < 0 {
		return fmt.Errorf("%w: max_results must not be negative, got %d", ErrInvalidInput, o.MaxResults)
	}
	if _, err := ParseExpandPolicy(string(o.ExpandPolicy)); err != nil {
		return err
	}
	return nil
}

// Report 一次 Resolve 的統計，用於日誌與指標
type Report struct {
	Received   int      // 原始預測數
	Admitted   int      // 通過門檻
	Considered int      // 截斷後實際查詢
	Matched    []string // 有對應食譜的標籤（原始字串）
	Unmatched  []string // 沒有對應食譜的標籤
	Results    int
}

// Resolve 將分類器預測轉為排序後的食譜結果
func Resolve(predictions []Prediction, index *Index, opts Options) ([]ResolvedResult, error) {
	results, _, err := ResolveWithReport(predictions, index, opts)
	return results, err
}

// ResolveWithReport 同 Resolve，另外回傳統計
func ResolveWithReport(predictions []Prediction, index *Index, opts Options) ([]ResolvedResult, Report, error) {
	report := Report{Received: len(predictions)}

	if !index.Built() {
		return nil, report, ErrIndexNotBuilt
	}
	if err := opts.Validate(); err != nil {
		return nil, report, err
	}
	policy, _ := ParseExpandPolicy(string(opts.ExpandPolicy))

	ranked, err := rank(predictions, opts.ConfidenceThreshold)
	if err != nil {
		return nil, report, err
	}
	report.Admitted = len(ranked)

	if opts.MaxResults != Unlimited && len(ranked) > opts.MaxResults {
		ranked = ranked[:opts.MaxResults]
	}
	report.Considered = len(ranked)

	results := make([]ResolvedResult, 0, len(ranked))
	for _, p := range ranked {
		group := index.group(p.Label)
		if len(group) == 0 {
			report.Unmatched = append(report.Unmatched, p.Label)
			continue
		}
		report.Matched = append(report.Matched, p.Label)

		if policy == FirstMatch {
			group = group[:1]
		}
		for _, r := range group {
			results = append(results, newResolvedResult(p, r))
		}
	}
	report.Results = len(results)

	return results, report, nil
}

// rank 清理信心值、過濾門檻以下的預測並依信心值穩定遞減排序
func rank(predictions []Prediction, threshold float64) ([]Prediction, error) {
	ranked := make([]Prediction, 0, len(predictions))
	for _, p := range predictions {
		confidence, err := sanitizeConfidence(p.Confidence)
		if err != nil {
			return nil, fmt.Errorf("prediction %q: %w", p.Label, err)
		}
		if confidence < threshold {
			continue
		}
		p.Confidence = confidence
		ranked = append(ranked, p)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})
	return ranked, nil
}

// Dedupe 每組 (標準化標籤, 食譜名稱) 只保留第一筆
// Resolve 不會呼叫，由呈現層自行決定是否使用
func Dedupe(results []ResolvedResult) []ResolvedResult {
	seen := make(map[string]struct{}, len(results))
	out := make([]ResolvedResult, 0, len(results))
	for _, r := range results {
		key := Normalize(r.Label) + "\x00" + r.Name
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
