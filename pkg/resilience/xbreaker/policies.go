package xbreaker

// TripPolicy 熔断判定策略，返回 true 时 Closed 转为 Open
type TripPolicy interface {
	ReadyToTrip(counts Counts) bool
}

// ConsecutiveFailuresPolicy 连续失败达到阈值时熔断
type ConsecutiveFailuresPolicy struct {
	threshold uint32
}

// NewConsecutiveFailures 创建连续失败策略
func NewConsecutiveFailures(threshold uint32) *ConsecutiveFailuresPolicy {
	return &ConsecutiveFailuresPolicy{threshold: threshold}
}

// ReadyToTrip 实现 TripPolicy
func (p *ConsecutiveFailuresPolicy) ReadyToTrip(counts Counts) bool {
	return counts.ConsecutiveFailures >= p.threshold
}

// FailureRatioPolicy 请求数不少于 minRequests 且失败率达到 ratio 时熔断
type FailureRatioPolicy struct {
	ratio       float64
	minRequests uint32
}

// NewFailureRatio 创建失败率策略，ratio 被限制在 [0, 1]
func NewFailureRatio(ratio float64, minRequests uint32) *FailureRatioPolicy {
	ratio = min(max(ratio, 0), 1)
	return &FailureRatioPolicy{ratio: ratio, minRequests: minRequests}
}

// ReadyToTrip 实现 TripPolicy
func (p *FailureRatioPolicy) ReadyToTrip(counts Counts) bool {
	if counts.Requests == 0 || counts.Requests < p.minRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= p.ratio
}

// CompositePolicy 任一子策略满足即熔断
type CompositePolicy struct {
	policies []TripPolicy
}

// NewCompositePolicy 组合策略，nil 被过滤
func NewCompositePolicy(policies ...TripPolicy) *CompositePolicy {
	filtered := make([]TripPolicy, 0, len(policies))
	for _, p := range policies {
		if p != nil {
			filtered = append(filtered, p)
		}
	}
	return &CompositePolicy{policies: filtered}
}

// ReadyToTrip 实现 TripPolicy
func (p *CompositePolicy) ReadyToTrip(counts Counts) bool {
	for _, policy := range p.policies {
		if policy.ReadyToTrip(counts) {
			return true
		}
	}
	return false
}
