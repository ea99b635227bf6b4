package recipe

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"recipe-lens/internal/core/image"
	recipeCore "recipe-lens/internal/core/recipe"
	"recipe-lens/internal/core/recognition"
	"recipe-lens/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 食譜辨識 API
type Handler struct {
	svc   *recognition.Service
	debug bool
}

// NewHandler 創建處理器
func NewHandler(svc *recognition.Service, debug bool) *Handler {
	return &Handler{svc: svc, debug: debug}
}

// Register 註冊路由；recognizeMiddleware 只套用在 /recognize
func (h *Handler) Register(group *gin.RouterGroup, recognizeMiddleware ...gin.HandlerFunc) {
	recognize := make([]gin.HandlerFunc, 0, len(recognizeMiddleware)+1)
	recognize = append(recognize, recognizeMiddleware...)
	group.POST("/recognize", append(recognize, h.HandleRecognize)...)
	group.POST("/resolve", h.HandleResolve)
	group.GET("/classes", h.HandleClasses)
	group.GET("/lookup/:label", h.HandleLookup)
}

// RecognizeRequest 圖片辨識請求
// image: URL、data URI 或 base64
type RecognizeRequest struct {
	Image string `json:"image" form:"image"`
	OptionsRequest
}

// RecognizeResponse 圖片辨識回應
type RecognizeResponse struct {
	RequestID   string                      `json:"request_id"`
	Image       recognition.ImageInfo       `json:"image"`
	Predictions []recipeCore.Prediction     `json:"predictions"`
	Results     []recipeCore.ResolvedResult `json:"results"`
}

// HandleRecognize 處理 /recipe/recognize，支援 JSON 與 multipart 上傳
func (h *Handler) HandleRecognize(c *gin.Context) {
	rid := requestid.Get(c)

	var (
		req  RecognizeRequest
		data []byte
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&req); err != nil {
			writeError(c, common.ErrInvalidRequest.Wrap(err), h.debug)
			return
		}
		if fh, err := c.FormFile("file"); err == nil {
			f, err := fh.Open()
			if err != nil {
				writeError(c, common.ErrInvalidRequest.Wrap(err), h.debug)
				return
			}
			data, err = io.ReadAll(f)
			f.Close()
			if err != nil {
				writeError(c, common.ErrInvalidRequest.Wrap(err), h.debug)
				return
			}
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, common.ErrInvalidRequest.Wrap(err), h.debug)
		return
	}

	if len(data) == 0 && strings.TrimSpace(req.Image) == "" {
		writeError(c, image.ErrEmptyImage, h.debug)
		return
	}

	opts, err := req.OptionsRequest.Resolve(h.svc.Defaults())
	if err != nil {
		writeError(c, err, h.debug)
		return
	}

	common.LogInfo("開始處理食物辨識請求",
		zap.String("request_id", rid),
		zap.String("image_type", describeUpload(req.Image, data)),
		zap.Float64("threshold", opts.ConfidenceThreshold),
		zap.Int("max_results", opts.MaxResults),
	)

	var rec *recognition.Recognition
	if len(data) > 0 {
		rec, err = h.svc.RecognizeBytes(c.Request.Context(), data, opts)
	} else {
		rec, err = h.svc.Recognize(c.Request.Context(), req.Image, opts)
	}
	if err != nil {
		writeError(c, err, h.debug)
		return
	}

	results := rec.Results
	if req.Dedupe {
		results = recipeCore.Dedupe(results)
	}

	common.LogInfo("食物辨識成功",
		zap.String("request_id", rid),
		zap.Int("predictions", len(rec.Predictions)),
		zap.Int("results", len(results)),
	)

	c.JSON(http.StatusOK, RecognizeResponse{
		RequestID:   rid,
		Image:       rec.Image,
		Predictions: rec.Predictions,
		Results:     results,
	})
}

// ResolveRequest 直接解析預測（分類在用戶端完成時使用）
type ResolveRequest struct {
	Predictions []recipeCore.Prediction `json:"predictions"`
	OptionsRequest
}

// HandleResolve 處理 /recipe/resolve
func (h *Handler) HandleResolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if errors.Is(err, recipeCore.ErrInvalidInput) {
			writeError(c, err, h.debug)
			return
		}
		writeError(c, common.ErrInvalidRequest.Wrap(err), h.debug)
		return
	}

	opts, err := req.OptionsRequest.Resolve(h.svc.Defaults())
	if err != nil {
		writeError(c, err, h.debug)
		return
	}

	results, err := h.svc.ResolvePredictions(req.Predictions, opts)
	if err != nil {
		writeError(c, err, h.debug)
		return
	}
	if req.Dedupe {
		results = recipeCore.Dedupe(results)
	}

	c.JSON(http.StatusOK, gin.H{
		"request_id": requestid.Get(c),
		"results":    results,
	})
}

// HandleClasses 列出已知類別
func (h *Handler) HandleClasses(c *gin.Context) {
	classes := h.svc.Classes()
	c.JSON(http.StatusOK, gin.H{
		"classes": classes,
		"count":   len(classes),
	})
}

// HandleLookup 依標籤查詢食譜，查無資料時回傳空列表
func (h *Handler) HandleLookup(c *gin.Context) {
	label := c.Param("label")
	recipes := h.svc.Lookup(label)
	c.JSON(http.StatusOK, gin.H{
		"label":   label,
		"key":     h.svc.Key(label),
		"recipes": recipes,
	})
}

func describeUpload(raw string, data []byte) string {
	if len(data) > 0 {
		return "multipart"
	}
	return image.DescribeInput(raw)
}
