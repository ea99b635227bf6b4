package recipe

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize 標準化標籤：去除前後空白並轉小寫
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FoldUnicode NFKC 正規化後做 Unicode case folding
// 全形字元與 "ß"/"ss" 之類的變體會對應到同一個鍵
func FoldUnicode(s string) string {
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(s)))
}

// IndexOption 索引建立選項
type IndexOption func(*Index)

// WithUnicodeFolding 以 FoldUnicode 取代預設的 Normalize
func WithUnicodeFolding() IndexOption {
	return func(idx *Index) {
		idx.normalize = FoldUnicode
	}
}

// Index 標準化類別名稱 -> 食譜列表，建立後唯讀
type Index struct {
	groups    map[string][]RecipeRecord
	normalize func(string) string
	size      int
}

// NewIndex 依標準化後的 class_name 分組，保留每組內原始順序
func NewIndex(records []RecipeRecord, opts ...IndexOption) *Index {
	idx := &Index{
		groups:    make(map[string][]RecipeRecord),
		normalize: Normalize,
	}
	for _, opt := range opts {
		opt(idx)
	}

	for _, r := range records {
		key := idx.normalize(r.ClassName)
		idx.groups[key] = append(idx.groups[key], copyRecord(r))
	}
	idx.size = len(records)
	return idx
}

// Built 索引是否已建立
func (idx *Index) Built() bool {
	return idx != nil && idx.groups != nil
}

// Key 以此索引的標準化方式轉換標籤
func (idx *Index) Key(label string) string {
	if idx == nil || idx.normalize == nil {
		return Normalize(label)
	}
	return idx.normalize(label)
}

// Lookup 取得標籤對應的食譜，沒有時回傳空切片
func (idx *Index) Lookup(label string) []RecipeRecord {
	if !idx.Built() {
		return []RecipeRecord{}
	}
	group := idx.groups[idx.Key(label)]
	out := make([]RecipeRecord, len(group))
	for i, r := range group {
		out[i] = copyRecord(r)
	}
	return out
}

// group 回傳內部群組，不做複製，僅供套件內唯讀使用
func (idx *Index) group(label string) []RecipeRecord {
	return idx.groups[idx.Key(label)]
}

// Len 索引中的食譜總數
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return idx.size
}

// Classes 已排序的標準化類別名稱
func (idx *Index) Classes() []string {
	if !idx.Built() {
		return []string{}
	}
	classes := make([]string, 0, len(idx.groups))
	for k := range idx.groups {
		classes = append(classes, k)
	}
	sort.Strings(classes)
	return classes
}

func copyRecord(r RecipeRecord) RecipeRecord {
	r.Ingredients = cloneStrings(r.Ingredients)
	r.Method = cloneStrings(r.Method)
	return r
}
