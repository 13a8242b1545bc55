package model

import "math"

// KPIs 看板指标（纯展示聚合，不落库）
type KPIs struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Pending  int `json:"pending"`

	// ApprovalRate 通过率百分比
	ApprovalRate int `json:"approval_rate"`
	// SLACompliance SLA 达成估算百分比，处理中的申请按一半计
	SLACompliance int `json:"sla_compliance"`
	// AvgReviewMinutes 平均审核时长估算（模拟值）
	AvgReviewMinutes int `json:"avg_review_minutes"`
}

// ComputeKPIs 基于申请快照计算指标
func ComputeKPIs(requests []*Request) KPIs {
	k := KPIs{Total: len(requests)}
	for _, r := range requests {
		switch {
		case r.Status.IsApproved():
			k.Approved++
		case r.Status == StatusRejected:
			k.Rejected++
		case r.Status.IsOpen():
			k.Pending++
		}
	}
	if k.Total == 0 {
		return k
	}
	total := float64(k.Total)
	k.ApprovalRate = roundHalfUp(float64(k.Approved) / total * 100)
	k.SLACompliance = roundHalfUp((float64(k.Approved) + 0.5*float64(k.Pending)) / total * 100)
	k.AvgReviewMinutes = roundHalfUp(total * 20 / float64(max(1, k.Approved)))
	return k
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
