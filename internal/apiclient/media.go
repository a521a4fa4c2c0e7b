package apiclient

import (
	"fmt"
	"net/url"
	"strings"
)

// MediaResolver は画像パスを表示用の絶対URLに解決する。
type MediaResolver struct {
	base *url.URL
}

// NewMediaResolver はメディアのベースURLからMediaResolverを生成する。
func NewMediaResolver(baseURL string) (*MediaResolver, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("メディアベースURLのパースに失敗しました: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("メディアベースURLは絶対URLである必要があります: %s", baseURL)
	}
	return &MediaResolver{base: u}, nil
}

// Resolve は画像パスを解決する。
//   - 空の場合は空文字列
//   - メディアと同じオリジンの絶対URLはそのまま
//   - 別オリジンの絶対URLはパス部分だけを取り出して再度解決する
//   - 相対パスは先頭のスラッシュを除いてベースURLに連結する
func (r *MediaResolver) Resolve(imagePath string) string {
	imagePath = strings.TrimSpace(imagePath)
	if imagePath == "" {
		return ""
	}

	if u, err := url.Parse(imagePath); err == nil && u.Scheme != "" && u.Host != "" {
		if strings.EqualFold(u.Scheme, r.base.Scheme) && strings.EqualFold(u.Host, r.base.Host) {
			return imagePath
		}
		imagePath = u.EscapedPath()
		if u.RawQuery != "" {
			imagePath += "?" + u.RawQuery
		}
	}

	return r.base.String() + strings.TrimLeft(imagePath, "/")
}
