// Package slug 将讲师姓名等自由文本转换为 URL 安全的短标识。
package slug

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxBaseLen 姓名部分的最大长度（按字节，结果只含 ASCII）
const MaxBaseLen = 60

// fallback 姓名无法产生任何可用字符时的占位
const fallback = "instrutor"

// Make 生成姓名部分：去除变音符号、转小写，非字母数字字符折叠为单个 "-"
// 例如 "João  da Silva" → "joao-da-silva"
func Make(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
		if b.Len() >= MaxBaseLen {
			break
		}
	}

	out := strings.Trim(b.String(), "-")
	if out == "" {
		return fallback
	}
	return out
}

// ShortID 取标识符末尾 n 个字母数字字符，作为 slug 后缀
func ShortID(id string, n int) string {
	compact := strings.ReplaceAll(strings.ToLower(id), "-", "")
	if len(compact) <= n {
		return compact
	}
	return compact[len(compact)-n:]
}

// WithCounter 冲突时追加递增计数：base-1, base-2, …
func WithCounter(base string, counter int) string {
	if counter <= 0 {
		return base
	}
	return base + "-" + strconv.Itoa(counter)
}
