package archive

import (
	"strings"
	"time"
	"unicode"

	apperrors "dreamteller-api/pkg/errors"
)

const timestampLayout = "20060102_150405"

// sanitizeTitle 只保留字母、数字、空格、连字符和下划线，并去掉尾部空格
func sanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// deriveFilename 由标题和秒级时间戳生成文件名（不含扩展名）
func deriveFilename(title string, now time.Time) string {
	base := sanitizeTitle(title)
	if base == "" {
		base = "story"
	}
	return base + "_" + now.Format(timestampLayout)
}

// normalizeFilename 校验文件名并确保只有一个扩展名后缀
func normalizeFilename(name, ext string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperrors.NewValidationError("archive filename is required")
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", apperrors.NewValidationError("archive filename %q must not contain path elements", name)
	}
	if !strings.HasSuffix(name, ext) {
		name += ext
	}
	if name == ext {
		return "", apperrors.NewValidationError("archive filename is required")
	}
	return name, nil
}
