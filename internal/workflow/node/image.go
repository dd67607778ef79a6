package node

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	wfmodel "libra-lite/internal/workflow/model"
)

// ErrImageBlockNotFound 响应中没有 image_url 类型的内容块
var ErrImageBlockNotFound = errors.New("no image block in model response")

const defaultImageMIME = "image/png"

// FirstImageBlock 返回第一个图片块的 URL；不存在时 ok 为 false
func FirstImageBlock(msg *schema.Message) (string, bool) {
	if msg == nil {
		return "", false
	}
	for _, part := range msg.MultiContent {
		if part.Type != schema.ChatMessagePartTypeImageURL || part.ImageURL == nil {
			continue
		}
		if part.ImageURL.URL == "" {
			continue
		}
		return part.ImageURL.URL, true
	}
	return "", false
}

// AdaptImage 提取第一个图片块并解码为字节
func AdaptImage(msg *schema.Message) (*wfmodel.Image, error) {
	url, ok := FirstImageBlock(msg)
	if !ok {
		return nil, ErrImageBlockNotFound
	}
	return DecodeDataURL(url)
}

// DecodeDataURL 解码 data:<mime>;base64,<payload> 形式的 URL
// 取最后一个逗号之后的部分作为载荷；无前缀时按裸 base64 处理
func DecodeDataURL(url string) (*wfmodel.Image, error) {
	mime := defaultImageMIME
	payload := url
	if i := strings.LastIndex(url, ","); i >= 0 {
		payload = url[i+1:]
		if m := parseDataURLMIME(url[:i]); m != "" {
			mime = m
		}
	}

	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("decode image: empty payload")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// 部分提供商返回不带填充的 base64
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, fmt.Errorf("decode image: %w", err)
		}
	}
	return &wfmodel.Image{Data: data, MIMEType: mime}, nil
}

func parseDataURLMIME(prefix string) string {
	rest, ok := strings.CutPrefix(prefix, "data:")
	if !ok {
		return ""
	}
	if i := strings.Index(rest, ";"); i >= 0 {
		rest = rest[:i]
	}
	return strings.TrimSpace(rest)
}
