package routing

import (
	"deskbackend/models"
)

// SelectCandidate picks at most one supporter from pool under the given
// strategy. It is pure and deterministic: ties always resolve to the earliest
// pool entry, and the round-robin cursor is the supporter of the org's most
// recent active assignment ("" when there is none). The manual strategy and an
// empty pool both return nil.
func SelectCandidate(
	pool []models.SupporterCandidate,
	strategy models.AssignStrategy,
	roundRobinCursor string,
) *models.SupporterCandidate {
	if len(pool) == 0 {
		return nil
	}

	switch strategy {
	case models.AssignStrategyLeastBusy:
		return leastBusy(pool)
	case models.AssignStrategyOnlineFirst:
		online := make([]models.SupporterCandidate, 0, len(pool))
		for _, c := range pool {
			if c.Status == models.PresenceStatusOnline {
				online = append(online, c)
			}
		}
		if len(online) > 0 {
			return leastBusy(online)
		}
		return leastBusy(pool)
	case models.AssignStrategyRoundRobin:
		return nextAfterCursor(pool, roundRobinCursor)
	case models.AssignStrategyManual:
		return nil
	}
	return nil
}

// leastBusy returns the candidate with the minimum active conversation count,
// breaking ties by pool order.
func leastBusy(pool []models.SupporterCandidate) *models.SupporterCandidate {
	best := 0
	for i := 1; i < len(pool); i++ {
		if pool[i].ActiveConversationCount < pool[best].ActiveConversationCount {
			best = i
		}
	}
	c := pool[best]
	return &c
}

// nextAfterCursor returns the pool entry after the cursor supporter, wrapping
// around. No cursor, or a cursor supporter no longer in the pool, both start
// over at pool[0].
func nextAfterCursor(pool []models.SupporterCandidate, cursor string) *models.SupporterCandidate {
	if cursor == "" {
		c := pool[0]
		return &c
	}
	for i, candidate := range pool {
		if candidate.SupporterID == cursor {
			c := pool[(i+1)%len(pool)]
			return &c
		}
	}
	c := pool[0]
	return &c
}
