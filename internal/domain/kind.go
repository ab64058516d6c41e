package domain

import (
	"fmt"
	"strings"
)

// Kind 选择使用哪一张优先级表。
type Kind string

const (
	KindMovie Kind = "movie"
	KindTV    Kind = "tv"
)

func (k Kind) IsTV() bool { return k == KindTV }

// ParseKind 接受 movie/tv（以及 tvshow/tv_show 的写法）。
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie", "":
		return KindMovie, nil
	case "tv", "tvshow", "tv_show":
		return KindTV, nil
	default:
		return "", fmt.Errorf("未知记录类型：%q（只能是 movie 或 tv）", s)
	}
}
