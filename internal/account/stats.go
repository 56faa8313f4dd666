package account

// IntentStats 聚合了账户存活意图的统计信息，常用于仪表盘或健康检查。
type IntentStats struct {
	Total           int   `json:"total"`
	Executable      int   `json:"executable"`
	Scheduled       int   `json:"scheduled"`
	Expired         int   `json:"expired"`
	OldestCreatedAt int64 `json:"oldest_created_at,omitempty"`
	NewestCreatedAt int64 `json:"newest_created_at,omitempty"`
}

// Stats 按当前时钟把存活意图划分为可执行、待时、已过期三类。
// 已过期与另外两类互斥：过期意图只待清理，不再参与执行统计。
func (a *Account) Stats(clock Clock) IntentStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := clock.Now()
	stats := IntentStats{}
	for _, intent := range a.registry.order {
		stats.Total++
		switch {
		case now >= intent.expirationTime:
			stats.Expired++
		case len(intent.executionTimes) > 0 && now >= intent.executionTimes[0]:
			stats.Executable++
		default:
			stats.Scheduled++
		}
		if stats.OldestCreatedAt == 0 || intent.createdAt < stats.OldestCreatedAt {
			stats.OldestCreatedAt = intent.createdAt
		}
		if intent.createdAt > stats.NewestCreatedAt {
			stats.NewestCreatedAt = intent.createdAt
		}
	}
	return stats
}
