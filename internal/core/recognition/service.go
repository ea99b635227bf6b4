package recognition

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"recipe-lens/internal/core/classifier"
	"recipe-lens/internal/core/image"
	"recipe-lens/internal/core/queue"
	"recipe-lens/internal/core/recipe"
	"recipe-lens/internal/infrastructure/metrics"
	"recipe-lens/internal/pkg/common"

	"go.uber.org/zap"
)

var (
	// ErrNoClassifier 未設定分類器
	ErrNoClassifier = errors.New("classifier not configured")
	// ErrBadPredictions 分類器回傳無法使用的預測
	ErrBadPredictions = errors.New("classifier returned unusable predictions")
)

// ImageInfo 處理後圖片的摘要
type ImageInfo struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Hash   string `json:"hash"`
}

// Recognition 一次辨識的完整結果
type Recognition struct {
	Image       ImageInfo               `json:"image"`
	Predictions []recipe.Prediction     `json:"predictions"`
	Results     []recipe.ResolvedResult `json:"results"`
}

// Deps 服務依賴
type Deps struct {
	Index            *recipe.Index
	Images           *image.Service
	Classifier       classifier.Classifier
	Queue            *queue.Manager
	ClassifierConfig classifier.Config
	Defaults         recipe.Options
}

// Service 圖片 → 分類 → 食譜解析
type Service struct {
	index      *recipe.Index
	images     *image.Service
	classifier classifier.Classifier
	queue      *queue.Manager
	clfConfig  classifier.Config
	defaults   recipe.Options
}

// NewService 創建辨識服務
func NewService(d Deps) *Service {
	return &Service{
		index:      d.Index,
		images:     d.Images,
		classifier: d.Classifier,
		queue:      d.Queue,
		clfConfig:  d.ClassifierConfig,
		defaults:   d.Defaults,
	}
}

// Defaults 預設的解析設定
func (s *Service) Defaults() recipe.Options {
	return s.defaults
}

// Ready 索引已建立且分類器可用
func (s *Service) Ready() bool {
	return s.index.Built() && s.classifier != nil
}

// IndexSize 索引中的食譜數
func (s *Service) IndexSize() int {
	return s.index.Len()
}

// Classes 已知類別
func (s *Service) Classes() []string {
	return s.index.Classes()
}

// Key 標籤在索引中的標準化鍵
func (s *Service) Key(label string) string {
	return s.index.Key(label)
}

// Lookup 直接查詢索引
func (s *Service) Lookup(label string) []recipe.RecipeRecord {
	return s.index.Lookup(label)
}

// QueueStatus 分類隊列狀態，沒有隊列時回傳 nil
func (s *Service) QueueStatus() *queue.Status {
	if s.queue == nil {
		return nil
	}
	st := s.queue.Status()
	return &st
}

// Recognize 取得圖片、分類並解析為食譜
func (s *Service) Recognize(ctx context.Context, raw string, opts recipe.Options) (*Recognition, error) {
	// 索引未建立時不下載圖片也不呼叫分類器
	if !s.index.Built() {
		return nil, recipe.ErrIndexNotBuilt
	}
	img, err := s.images.Acquire(ctx, raw)
	if err != nil {
		return nil, err
	}
	return s.recognize(ctx, img, opts)
}

// RecognizeBytes 同 Recognize，輸入為上傳的檔案內容
func (s *Service) RecognizeBytes(ctx context.Context, data []byte, opts recipe.Options) (*Recognition, error) {
	if !s.index.Built() {
		return nil, recipe.ErrIndexNotBuilt
	}
	img, err := s.images.AcquireBytes(data)
	if err != nil {
		return nil, err
	}
	return s.recognize(ctx, img, opts)
}

func (s *Service) recognize(ctx context.Context, img image.Handle, opts recipe.Options) (*Recognition, error) {
	preds, err := s.classify(ctx, img)
	if err != nil {
		return nil, err
	}

	results, err := s.ResolvePredictions(preds, opts)
	if err != nil {
		return nil, err
	}

	if preds == nil {
		preds = []recipe.Prediction{}
	}
	return &Recognition{
		Image: ImageInfo{
			Format: img.Format,
			Width:  img.Width,
			Height: img.Height,
			Hash:   img.Hash,
		},
		Predictions: preds,
		Results:     results,
	}, nil
}

func (s *Service) classify(ctx context.Context, img image.Handle) ([]recipe.Prediction, error) {
	if s.classifier == nil {
		return nil, ErrNoClassifier
	}

	task := func(ctx context.Context) ([]recipe.Prediction, error) {
		start := time.Now()
		preds, err := s.classifier.Classify(ctx, img, s.clfConfig)
		took := time.Since(start)
		metrics.ObserveClassifier(s.classifier.Name(), took, err)
		common.LogClassifierCall(s.classifier.Name(), took, len(preds), err)
		if err != nil {
			return nil, classifierError(err)
		}
		return preds, checkPredictions(preds)
	}

	if s.queue == nil {
		return task(ctx)
	}
	return s.queue.Do(ctx, task)
}

// classifierError 分類器回應解碼失敗屬於上游錯誤，不是用戶輸入錯誤
func classifierError(err error) error {
	if errors.Is(err, recipe.ErrInvalidInput) {
		return fmt.Errorf("%w: %v", ErrBadPredictions, err)
	}
	return err
}

// checkPredictions 分類器給出的信心度必須是有限數值
func checkPredictions(preds []recipe.Prediction) error {
	for i, p := range preds {
		if math.IsInf(p.Confidence, 0) {
			return fmt.Errorf("%w: prediction %d (%q) has confidence %v", ErrBadPredictions, i, p.Label, p.Confidence)
		}
	}
	return nil
}

// ResolvePredictions 只執行預測解析（不呼叫分類器）
func (s *Service) ResolvePredictions(preds []recipe.Prediction, opts recipe.Options) ([]recipe.ResolvedResult, error) {
	results, report, err := recipe.ResolveWithReport(preds, s.index, opts)
	if err != nil {
		common.LogWarn("預測解析失敗",
			zap.Int("predictions", len(preds)),
			zap.Error(err),
		)
		return nil, err
	}

	policy, _ := recipe.ParseExpandPolicy(string(opts.ExpandPolicy))
	metrics.ObserveResolution(string(policy), len(report.Matched), len(report.Unmatched), report.Results)
	common.LogInfo("預測解析完成",
		zap.Int("received", report.Received),
		zap.Int("admitted", report.Admitted),
		zap.Int("considered", report.Considered),
		zap.Strings("unmatched", report.Unmatched),
		zap.Int("results", report.Results),
		zap.Float64("threshold", opts.ConfidenceThreshold),
		zap.String("policy", string(policy)),
	)
	return results, nil
}
