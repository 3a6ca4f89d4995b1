package chat

import (
	"sort"
	"time"
)

type ChatGroup struct {
	Title string `json:"title"`
	Chats []Chat `json:"chats"`
}

// GroupChats buckets chats by their last message date relative to now, newest first.
// Empty buckets are omitted.
func GroupChats(chats []Chat, now time.Time) []ChatGroup {
	sorted := append([]Chat(nil), chats...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LastMessageDate().After(sorted[j].LastMessageDate())
	})

	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	yesterday := today.AddDate(0, 0, -1)
	weekAgo := now.AddDate(0, 0, -7)

	titles := []string{"Today", "Yesterday", "Last 7 Days", "More than a week"}
	buckets := make([][]Chat, len(titles))
	for _, c := range sorted {
		d := c.LastMessageDate().In(loc)
		switch {
		case !d.Before(today):
			buckets[0] = append(buckets[0], c)
		case !d.Before(yesterday):
			buckets[1] = append(buckets[1], c)
		case !d.Before(weekAgo):
			buckets[2] = append(buckets[2], c)
		default:
			buckets[3] = append(buckets[3], c)
		}
	}

	var out []ChatGroup
	for i, b := range buckets {
		if len(b) > 0 {
			out = append(out, ChatGroup{Title: titles[i], Chats: b})
		}
	}
	return out
}
