package evidence

import (
	"sort"
	"strings"
)

// 词元切分使用的分隔符
func isTokenSeparator(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
}

// overlapScore 计算文本与关键词的词元重合度。
// 只统计长度 ≥4 的词元，大小写不敏感的包含计数。
func overlapScore(keyword, text string) int {
	text = strings.ToLower(text)
	score := 0
	for _, token := range strings.FieldsFunc(strings.ToLower(keyword), isTokenSeparator) {
		if len(token) < 4 {
			continue
		}
		if strings.Contains(text, token) {
			score++
		}
	}
	return score
}

// rankCandidates 按与关键词的重合度降序排序并截取前 limit 条。
// 排序稳定：同分保持输入顺序，先到的来源优先。
func rankCandidates(keyword string, candidates []*candidateDocument, limit int) []*candidateDocument {
	for _, c := range candidates {
		c.score = overlapScore(keyword, c.Title+" "+c.Content)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// candidateDocument 参与二次排序的候选文档
type candidateDocument struct {
	Title   string
	URL     string
	Source  string
	Content string
	score   int
}
