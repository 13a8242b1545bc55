// Package suggest 根据申请说明推荐楼栋
//
// 推荐只是辅助信息：失败时返回 ErrExternalService，调用方隐藏推荐即可，
// 申请提交从不依赖推荐结果。
package suggest

import (
	"context"
	"errors"
	"strings"

	"campus-access/internal/shared/model"
)

// ErrExternalService 外部推荐服务不可用或返回了无效结果
var ErrExternalService = errors.New("building suggestion unavailable")

// MinJustificationLength 说明超过该长度才触发推荐
const MinJustificationLength = 20

// Suggester 楼栋推荐
type Suggester interface {
	Suggest(ctx context.Context, justification string) (string, error)
}

// ShouldSuggest 说明是否足够长，值得请求推荐
func ShouldSuggest(justification string) bool {
	return len(strings.TrimSpace(justification)) > MinJustificationLength
}

// Candidates 可推荐的楼栋（提示词中的顺序）
func Candidates() []string {
	return []string{"McNair", "Martin", "Graham", "Monroe"}
}

// Normalize 把模型回答归一为候选楼栋名；无法识别返回 false
//
// 接受 "Graham"、"graham."、"Graham Hall"、"Suggested: Monroe" 等形式，
// 回答里同时出现多个楼栋时视为无效。
func Normalize(answer string) (string, bool) {
	lower := strings.ToLower(answer)
	found := ""
	for _, name := range Candidates() {
		if strings.Contains(lower, strings.ToLower(name)) {
			if found != "" {
				return "", false
			}
			found = name
		}
	}
	if found == "" {
		return "", false
	}
	if _, ok := model.BuildingByName(found); !ok {
		return "", false
	}
	return found, true
}

// Prompt 构造推荐提示词
func Prompt(justification string) string {
	return "You are an AI assistant designed to suggest the most appropriate building at North Carolina A&T State University " +
		"based on the justification provided for an after-hours access request. Consider the following buildings: " +
		strings.Join(Candidates(), ", ") + ". Only respond with one of the listed options.\n\nJustification: " + justification
}
