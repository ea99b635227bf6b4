package recipe

import (
	"fmt"
	"io"
	"os"

	"recipe-lens/internal/pkg/common"

	"go.uber.org/zap"
)

// datasetEntry 資料集檔案中的原始欄位，選填欄位用指標表示
type datasetEntry struct {
	ClassName   string   `json:"class_name"`
	Name        string   `json:"Name"`
	ImageURL    *string  `json:"image_url"`
	Ingredients []string `json:"Ingredients"`
	Method      []string `json:"Method"`
}

func (e datasetEntry) record() RecipeRecord {
	r := RecipeRecord{
		ClassName:   e.ClassName,
		Name:        e.Name,
		Ingredients: cloneStrings(e.Ingredients),
		Method:      cloneStrings(e.Method),
	}
	if e.ImageURL != nil {
		r.ImageURL = *e.ImageURL
	}
	return r
}

// LoadDataset 解析 JSON 陣列格式的食譜資料集
func LoadDataset(r io.Reader) ([]RecipeRecord, error) {
	var entries []datasetEntry
	if err := common.DecodeJSON(r, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode recipe dataset: %w", err)
	}

	records := make([]RecipeRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, e.record())
	}
	return records, nil
}

// LoadDatasetFile 從檔案載入食譜資料集
func LoadDatasetFile(path string) ([]RecipeRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recipe dataset: %w", err)
	}
	defer f.Close()

	records, err := LoadDataset(f)
	if err != nil {
		return nil, err
	}

	common.LogInfo("食譜資料集已載入",
		zap.String("path", path),
		zap.Int("records", len(records)),
	)
	return records, nil
}
