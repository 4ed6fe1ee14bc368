package node

import (
	"fmt"
	"regexp"
	"strings"
)

// sceneMarker 行首（允许 Markdown 前缀）的 "SCENE <n>" 标记，可带冒号，不区分大小写
var sceneMarker = regexp.MustCompile(`(?i)^[\s*#_>\-]*SCENE\s+\d+:?`)

// PlaceholderScene 场景缺失时的占位文本，k 从 1 开始
func PlaceholderScene(k int) string {
	return fmt.Sprintf("Scene %d description not available.", k)
}

// ParseScenes 按场景标记切分生成文本，总是返回恰好 n 段非空文本。
// 首个标记前的内容被丢弃；不足 n 段时用占位文本补齐，超出时截断。
func ParseScenes(text string, n int) []string {
	if n < 1 {
		return nil
	}

	scenes := make([]string, 0, n)
	var current []string
	started := false

	flush := func() {
		if !started {
			return
		}
		if s := strings.TrimSpace(strings.Join(current, " ")); s != "" {
			scenes = append(scenes, s)
		}
		current = current[:0]
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if sceneMarker.MatchString(line) {
			flush()
			started = true
			if seed := markerRemainder(line); seed != "" {
				current = append(current, seed)
			}
			continue
		}
		if started && line != "" {
			current = append(current, line)
		}
	}
	flush()

	for len(scenes) < n {
		scenes = append(scenes, PlaceholderScene(len(scenes)+1))
	}
	return scenes[:n]
}

// CountSceneMarkers 统计文本中的场景标记数
func CountSceneMarkers(text string) int {
	count := 0
	for _, raw := range strings.Split(text, "\n") {
		if sceneMarker.MatchString(strings.TrimSpace(raw)) {
			count++
		}
	}
	return count
}

// markerRemainder 返回标记行第一个冒号之后的内容
func markerRemainder(line string) string {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(strings.TrimLeft(line[i+1:], "*_ \t"))
}
