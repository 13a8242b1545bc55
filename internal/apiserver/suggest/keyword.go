package suggest

import (
	"context"
	"strings"
)

// KeywordSuggester 本地关键词推荐（无外部依赖，结果确定）
type KeywordSuggester struct {
	keywords map[string][]string
	fallback string
}

var _ Suggester = (*KeywordSuggester)(nil)

// NewKeywordSuggester 创建关键词推荐器
func NewKeywordSuggester() *KeywordSuggester {
	return &KeywordSuggester{
		keywords: map[string][]string{
			"McNair": {"engineering", "senior design", "robot", "circuit", "electrical", "mechanical", "capstone"},
			"Martin": {"server", "network", "computer", "lab c", "cyber", "data center"},
			"Graham": {"studio", "art", "design studio", "architecture", "music"},
			"Monroe": {"chemistry", "biology", "physics", "science", "research lab"},
		},
		fallback: "McNair",
	}
}

// Suggest 统计各楼栋关键词命中次数，取最多者；平局按候选顺序，无命中返回默认楼栋
func (k *KeywordSuggester) Suggest(_ context.Context, justification string) (string, error) {
	text := strings.ToLower(justification)
	best, bestHits := k.fallback, 0
	for _, name := range Candidates() {
		hits := 0
		for _, kw := range k.keywords[name] {
			hits += strings.Count(text, kw)
		}
		if hits > bestHits {
			best, bestHits = name, hits
		}
	}
	return best, nil
}
