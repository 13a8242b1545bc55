package lifecycle

import (
	"context"
	"time"

	"campus-access/internal/shared/eventbus"
	"campus-access/internal/shared/model"
)

// SimulationConfig 自动推进参数
type SimulationConfig struct {
	// ReviewDelay 创建后多久进入 Under review
	ReviewDelay time.Duration `yaml:"review_delay"`
	// DecisionDelay 进入 Under review 后多久给出结论
	DecisionDelay time.Duration `yaml:"decision_delay"`
	// ApprovalProbability RandomPolicy 的通过概率
	ApprovalProbability float64 `yaml:"approval_probability"`
}

// DefaultSimulation 默认参数：1.6s 后审核，再 2.6s 后以 0.82 概率通过
func DefaultSimulation() SimulationConfig {
	return SimulationConfig{
		ReviewDelay:         1600 * time.Millisecond,
		DecisionDelay:       2600 * time.Millisecond,
		ApprovalProbability: DefaultApprovalProbability,
	}
}

// AutoAdvance 安排两段式自动推进
//
// ReviewDelay 后写入 Under review，再过 DecisionDelay 由 ApprovalPolicy 给出最终状态。
// 一旦安排不可取消（ctx 的取消不会中止推进）。返回的通道接收最终状态后关闭；
// 申请在推进途中消失时通道直接关闭。
func (m *Manager) AutoAdvance(ctx context.Context, requestID string) <-chan model.Status {
	done := make(chan model.Status, 1)
	ctx = context.WithoutCancel(ctx)
	log := m.log.WithContext(ctx).WithRequestID(requestID)

	if m.metrics != nil {
		m.metrics.SimulationsArmed.Inc()
	}
	finish := func(status model.Status, ok bool) {
		if m.metrics != nil {
			m.metrics.SimulationsArmed.Dec()
		}
		if ok {
			done <- status
		}
		close(done)
	}

	m.clock.AfterFunc(m.sim.ReviewDelay, func() {
		req, err := m.getRequest(ctx, requestID)
		if err != nil {
			log.WithError(err).Warn("Auto-advance stopped before review")
			finish("", false)
			return
		}
		if _, err := m.writeStatus(ctx, req, model.StatusUnderReview, "", eventbus.SourceSimulate); err != nil {
			log.WithError(err).Warn("Auto-advance review write failed")
		}

		m.clock.AfterFunc(m.sim.DecisionDelay, func() {
			req, err := m.getRequest(ctx, requestID)
			if err != nil {
				log.WithError(err).Warn("Auto-advance stopped before decision")
				finish("", false)
				return
			}
			status := m.policy.Resolve(req)
			if _, err := m.writeStatus(ctx, req, status, "", eventbus.SourceSimulate); err != nil {
				log.WithError(err).Warn("Auto-advance decision write failed")
				finish("", false)
				return
			}
			finish(status, true)
		})
	})
	return done
}
