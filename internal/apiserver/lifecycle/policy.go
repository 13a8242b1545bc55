package lifecycle

import (
	"math/rand"
	"sync"
	"time"

	"campus-access/internal/shared/model"
)

// ============================================================================
// ApprovalPolicy - 自动推进的最终裁决
// ============================================================================

// ApprovalPolicy 决定模拟审批的最终状态（Approved 或 Rejected）
type ApprovalPolicy interface {
	Resolve(req *model.Request) model.Status
}

// DefaultApprovalProbability 默认通过概率
const DefaultApprovalProbability = 0.82

// RandomPolicy 以固定概率通过
type RandomPolicy struct {
	mu          sync.Mutex
	rng         *rand.Rand
	probability float64
}

// NewRandomPolicy 创建随机策略；seed 为 0 时使用当前时间
func NewRandomPolicy(probability float64, seed int64) *RandomPolicy {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if probability < 0 {
		probability = 0
	}
	if probability > 1 {
		probability = 1
	}
	return &RandomPolicy{
		rng:         rand.New(rand.NewSource(seed)),
		probability: probability,
	}
}

// Probability 通过概率
func (p *RandomPolicy) Probability() float64 {
	return p.probability
}

func (p *RandomPolicy) Resolve(*model.Request) model.Status {
	p.mu.Lock()
	v := p.rng.Float64()
	p.mu.Unlock()
	if v < p.probability {
		return model.StatusApproved
	}
	return model.StatusRejected
}

// FixedPolicy 总是返回同一状态（测试与演示用）
type FixedPolicy model.Status

func (p FixedPolicy) Resolve(*model.Request) model.Status {
	return model.Status(p)
}
