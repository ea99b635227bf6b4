package recipe

import (
	"context"
	"errors"
	"strings"

	"recipe-lens/internal/core/image"
	"recipe-lens/internal/core/queue"
	recipeCore "recipe-lens/internal/core/recipe"
	"recipe-lens/internal/core/recognition"
	"recipe-lens/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OptionsRequest 請求中可覆寫的解析設定，未提供的欄位使用伺服器預設值
type OptionsRequest struct {
	Mode                *string  `json:"mode,omitempty" form:"mode"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty" form:"confidence_threshold"`
	MaxResults          *int     `json:"max_results,omitempty" form:"max_results"`
	ExpandPolicy        *string  `json:"expand_policy,omitempty" form:"expand_policy"`
	Dedupe              bool     `json:"dedupe,omitempty" form:"dedupe"`
}

// Resolve 合併預設值與請求設定
func (r OptionsRequest) Resolve(defaults recipeCore.Options) (recipeCore.Options, error) {
	opts := defaults
	if r.Mode != nil {
		switch strings.ToLower(strings.TrimSpace(*r.Mode)) {
		case "", "default":
		case "top_matches":
			opts = recipeCore.TopMatchesOptions()
		case "first_match":
			opts = recipeCore.FirstMatchOptions()
		default:
			return recipeCore.Options{}, common.ErrInvalidInput.Wrap(errors.New("unknown mode " + *r.Mode))
		}
	}
	if r.ConfidenceThreshold != nil {
		opts.ConfidenceThreshold = *r.ConfidenceThreshold
	}
	if r.MaxResults != nil {
		opts.MaxResults = *r.MaxResults
	}
	if r.ExpandPolicy != nil {
		policy, err := recipeCore.ParseExpandPolicy(*r.ExpandPolicy)
		if err != nil {
			return recipeCore.Options{}, err
		}
		opts.ExpandPolicy = policy
	}
	if err := opts.Validate(); err != nil {
		return recipeCore.Options{}, err
	}
	return opts, nil
}

// toAPIError 將領域錯誤轉為 API 錯誤
func toAPIError(err error) *common.CustomError {
	var ce *common.CustomError
	switch {
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, image.ErrEmptyImage),
		errors.Is(err, image.ErrInvalidImageData),
		errors.Is(err, image.ErrUnsupportedFormat),
		errors.Is(err, image.ErrImageTooLarge),
		errors.Is(err, image.ErrDownloadFailed):
		return common.ErrInvalidImage.Wrap(err)
	case errors.Is(err, recognition.ErrBadPredictions):
		return common.ErrClassifierFailure.Wrap(err)
	case errors.Is(err, recipeCore.ErrInvalidInput):
		return common.ErrInvalidInput.Wrap(err)
	case errors.Is(err, recipeCore.ErrIndexNotBuilt):
		return common.ErrIndexNotReady.Wrap(err)
	case errors.Is(err, queue.ErrQueueFull):
		return common.ErrQueueFull.Wrap(err)
	case errors.Is(err, queue.ErrQueueClosed), errors.Is(err, recognition.ErrNoClassifier):
		return common.ErrServiceUnavailable.Wrap(err)
	case errors.Is(err, context.DeadlineExceeded):
		return common.ErrGatewayTimeout.Wrap(err)
	}
	return common.ErrClassifierFailure.Wrap(err)
}

// writeError 寫入錯誤響應
func writeError(c *gin.Context, err error, debug bool) {
	apiErr := toAPIError(err)
	rid := requestid.Get(c)

	fields := []zap.Field{
		zap.String("request_id", rid),
		zap.String("code", apiErr.Code),
		zap.Error(err),
	}
	if apiErr.Status >= 500 {
		common.LogError("請求處理失敗", fields...)
	} else {
		common.LogWarn("請求處理失敗", fields...)
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(apiErr.Status, gin.H{
		"error":      apiErr.Response(debug),
		"request_id": rid,
	})
}
