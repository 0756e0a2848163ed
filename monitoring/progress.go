package monitoring

import (
	"fmt"
	"sync"
	"time"
)

// A ProgressBar tracks how many of the requests of a run have completed.
type ProgressBar struct {
	sync.Mutex
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

// IncrementInProgress adds the number of in-progress element.
func (b *ProgressBar) IncrementInProgress(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress += amount
}

// IncrementFinished add a certain amount to finished element.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished += amount
}

// MoveInProgressToFinished reduces the number of in progress item by a certain
// amount and increase the finished item by the same amount.
func (b *ProgressBar) MoveInProgressToFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress -= amount
	b.Finished += amount
}

// String prints the bar as "name: finished/total (percent)".
func (b *ProgressBar) String() string {
	b.Lock()
	defer b.Unlock()

	percent := 100.0
	if b.Total > 0 {
		percent = float64(b.Finished) * 100 / float64(b.Total)
	}

	return fmt.Sprintf("%s: %d/%d (%.1f%%)",
		b.Name, b.Finished, b.Total, percent)
}
