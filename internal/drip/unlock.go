package drip

import "github.com/ladyboss/academy/internal/model"

// IsUnlocked reports whether a member may access the item on the given
// effective day. Items without a delay are always unlocked.
func IsUnlocked(item model.ContentItem, day int) bool {
	return item.DripDelayDays <= 0 || item.DripDelayDays <= day
}

// NewlyUnlocked returns the items whose delay equals day exactly, preserving
// input order. It answers "what crossed the threshold today", not "what is
// accessible".
func NewlyUnlocked(items []model.ContentItem, day int) []model.ContentItem {
	var out []model.ContentItem
	for _, item := range items {
		if item.DripDelayDays == day {
			out = append(out, item)
		}
	}
	return out
}

// UnlockDay is the first effective day on which the item is accessible.
func UnlockDay(item model.ContentItem) int {
	if item.DripDelayDays < 1 {
		return 1
	}
	return item.DripDelayDays
}

// Partition splits a catalog by unlock state for one effective day.
type Partition struct {
	New     []model.ContentItem
	Earlier []model.ContentItem
	Locked  []model.ContentItem
}

func Evaluate(items []model.ContentItem, day int) Partition {
	var p Partition
	for _, item := range items {
		switch {
		case !IsUnlocked(item, day):
			p.Locked = append(p.Locked, item)
		case item.DripDelayDays == day:
			p.New = append(p.New, item)
		default:
			p.Earlier = append(p.Earlier, item)
		}
	}
	return p
}

// NextUnlocked scans forward from current and returns the index of the first
// later item that is unlocked on day. Locked items are skipped, not treated
// as the end of the playlist.
func NextUnlocked(items []model.ContentItem, current, day int) (int, bool) {
	for i := current + 1; i < len(items); i++ {
		if i < 0 {
			continue
		}
		if IsUnlocked(items[i], day) {
			return i, true
		}
	}
	return -1, false
}
