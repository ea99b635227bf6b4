package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"strings"
	"time"

	_ "image/gif" // 支援 GIF
	_ "image/png" // 支援 PNG

	"github.com/go-resty/resty/v2"
	_ "golang.org/x/image/webp" // 支援 WebP

	"recipe-lens/internal/pkg/common"
)

var (
	ErrEmptyImage        = errors.New("image data is empty")
	ErrImageTooLarge     = errors.New("image size exceeds limit")
	ErrInvalidImageData  = errors.New("invalid image data format")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrDownloadFailed    = errors.New("failed to download image")
)

const jpegQuality = 85

// Handle 已解碼並轉為 JPEG 的圖片
type Handle struct {
	Data   []byte
	Format string // 原始格式
	Width  int
	Height int
	Hash   string // JPEG 內容的 SHA-256
}

// Empty 是否沒有圖片內容
func (h Handle) Empty() bool {
	return len(h.Data) == 0
}

// DataURI 轉為 data:image/jpeg;base64 字串
func (h Handle) DataURI() string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(h.Data)
}

// Service 圖片取得與處理服務
type Service struct {
	maxSizeBytes int64
	client       *resty.Client
}

// NewService 創建新的圖片處理服務
func NewService(maxSizeBytes int64, downloadTimeout time.Duration) *Service {
	if downloadTimeout <= 0 {
		downloadTimeout = 30 * time.Second
	}
	return &Service{
		maxSizeBytes: maxSizeBytes,
		client:       resty.New().SetTimeout(downloadTimeout),
	}
}

// Acquire 接受 URL、data URI 或純 base64，回傳處理後的圖片
func (s *Service) Acquire(ctx context.Context, raw string) (Handle, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Handle{}, ErrEmptyImage
	}

	var (
		data []byte
		err  error
	)
	switch {
	case strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://"):
		data, err = s.download(ctx, raw)
	case strings.HasPrefix(raw, "data:image/"):
		data, err = decodeDataURI(raw)
	default:
		data, err = base64.StdEncoding.DecodeString(raw)
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidImageData, err)
		}
	}
	if err != nil {
		return Handle{}, err
	}

	return s.AcquireBytes(data)
}

// AcquireBytes 處理上傳的原始圖片位元組
func (s *Service) AcquireBytes(data []byte) (Handle, error) {
	if len(data) == 0 {
		return Handle{}, ErrEmptyImage
	}
	if s.maxSizeBytes > 0 && int64(len(data)) > s.maxSizeBytes {
		return Handle{}, fmt.Errorf("%w: %d bytes, maximum %d", ErrImageTooLarge, len(data), s.maxSizeBytes)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Handle{}, fmt.Errorf("%w: failed to decode image: %v", ErrInvalidImageData, err)
	}
	if !isSupportedFormat(format) {
		return Handle{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Handle{}, fmt.Errorf("failed to encode image as JPEG: %w", err)
	}

	bounds := img.Bounds()
	return Handle{
		Data:   buf.Bytes(),
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Hash:   common.HashBytes(buf.Bytes()),
	}, nil
}

// download 下載遠端圖片
func (s *Service) download(ctx context.Context, url string) ([]byte, error) {
	resp, err := s.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: status code %d", ErrDownloadFailed, resp.StatusCode())
	}
	return resp.Body(), nil
}

// decodeDataURI 解析 data:image/...;base64,xxx
func decodeDataURI(raw string) ([]byte, error) {
	header, payload, ok := strings.Cut(raw, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("%w: invalid data URI", ErrInvalidImageData)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode base64 data: %v", ErrInvalidImageData, err)
	}
	return data, nil
}

// isSupportedFormat 檢查圖片格式是否支援
func isSupportedFormat(format string) bool {
	switch format {
	case "jpeg", "png", "gif", "webp":
		return true
	}
	return false
}

// DescribeInput 取得輸入圖片的類型（僅用於日誌，不輸出內容）
func DescribeInput(raw string) string {
	switch {
	case raw == "":
		return "empty"
	case strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://"):
		return "url"
	case strings.HasPrefix(raw, "data:image/"):
		header, _, _ := strings.Cut(raw, ";")
		return "data_uri_" + strings.TrimPrefix(header, "data:image/")
	default:
		return "base64"
	}
}
