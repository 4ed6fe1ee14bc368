package node

import "strings"

const appearanceLabel = "PHYSICAL APPEARANCE"

var profileSectionLabels = []string{"PERSONALITY", "BACKGROUND", "RELATIONSHIPS", "GROWTH"}

// ExtractPhysicalAppearance 取出角色档案中外貌小节的内容并以空格拼接。
// 小节从含外貌标签的行开始，到下一个已知标签结束；标签行冒号后的内容计入小节。
func ExtractPhysicalAppearance(profile string) string {
	var parts []string
	inSection := false

	for _, raw := range strings.Split(profile, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case isSectionLabel(line, appearanceLabel):
			inSection = true
			if rest := labelRemainder(line); rest != "" {
				parts = append(parts, rest)
			}
		case isAnySectionLabel(line):
			inSection = false
		case inSection && line != "":
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}

func isAnySectionLabel(line string) bool {
	for _, label := range profileSectionLabels {
		if isSectionLabel(line, label) {
			return true
		}
	}
	return false
}

// isSectionLabel 大写标签出现在行内，或去掉编号与 Markdown 后行首即为该标签（不区分大小写）
func isSectionLabel(line, label string) bool {
	if strings.Contains(line, label) {
		return true
	}
	return strings.HasPrefix(strings.ToUpper(stripListPrefix(line)), label)
}

func stripListPrefix(line string) string {
	return strings.TrimLeft(line, "0123456789.)*#_- \t")
}

func labelRemainder(line string) string {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(strings.Trim(line[i+1:], "*_ \t"))
}
