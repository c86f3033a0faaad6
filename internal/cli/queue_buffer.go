package cli

import "sort"

// overdueBuffer keeps the limit most-overdue queue rows seen so far, so a
// bounded listing over a very large pending set never holds every row.
// A limit <= 0 means unbounded.
type overdueBuffer struct {
	limit     int
	rows      []queueRowJSON
	truncated bool
}

func newOverdueBuffer(limit int) *overdueBuffer {
	return &overdueBuffer{limit: limit}
}

func (b *overdueBuffer) Add(row queueRowJSON) {
	i := sort.Search(len(b.rows), func(i int) bool {
		return b.rows[i].DaysOverdue < row.DaysOverdue
	})
	b.rows = append(b.rows, queueRowJSON{})
	copy(b.rows[i+1:], b.rows[i:])
	b.rows[i] = row

	if b.limit > 0 && len(b.rows) > b.limit {
		b.rows = b.rows[:b.limit]
		b.truncated = true
	}
}

func (b *overdueBuffer) Rows() []queueRowJSON { return b.rows }
func (b *overdueBuffer) Truncated() bool      { return b.truncated }
