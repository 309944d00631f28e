package borrowsvc

import "time"

// FineCentsPerDay is the flat overdue penalty: $0.50 per full day late.
const FineCentsPerDay = 50

// FineCents derives the fine for a loan. Nothing is persisted; the value is
// recomputed on every read. The reference time is returnedAt when set,
// otherwise now, and only whole elapsed days count.
func FineCents(dueAt time.Time, returnedAt *time.Time, now time.Time) int64 {
	ref := now
	if returnedAt != nil {
		ref = *returnedAt
	}
	days := int64(ref.Sub(dueAt) / (24 * time.Hour))
	if days < 0 {
		return 0
	}
	return days * FineCentsPerDay
}
