package domain

import (
	"strings"
	"unicode/utf8"
)

// CleanText 去掉非法 UTF-8 字节与 XML 1.0 不允许的字符，再去掉首尾空白。
// 抓取来的值进入 Record 前都经过这里，缓存（xml / json）才能原样往返。
func CleanText(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	if strings.IndexFunc(s, notXMLChar) >= 0 {
		s = strings.Map(func(r rune) rune {
			if notXMLChar(r) {
				return -1
			}
			return r
		}, s)
	}
	return strings.TrimSpace(s)
}

func notXMLChar(r rune) bool {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return false
	case r < 0x20:
		return true
	case r >= 0xD800 && r <= 0xDFFF, r == 0xFFFE, r == 0xFFFF:
		return true
	default:
		return r > utf8.MaxRune
	}
}
