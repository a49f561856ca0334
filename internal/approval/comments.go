package approval

import (
	"sort"
	"time"
)

// Comment is one entry in a document's discussion.
type Comment struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	UserID     string    `json:"user_id"`
	Text       string    `json:"text"`
	IsInternal bool      `json:"is_internal"`
	ParentID   *string   `json:"parent_id,omitempty"`
	Version    int       `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
}

// Thread is a root comment and its replies.
type Thread struct {
	*Comment
	Replies []*Comment `json:"replies"`
}

// BuildThreads assembles one document's comments into threads. Roots and
// replies are both ordered by created_at. Replies are flattened one level: a
// reply to a reply sits under its root. A comment whose parent is absent from
// the input is treated as a root.
func BuildThreads(comments []*Comment) []*Thread {
	byID := make(map[string]*Comment, len(comments))
	for _, c := range comments {
		byID[c.ID] = c
	}

	rootOf := func(c *Comment) *Comment {
		cur := c
		for hops := 0; cur.ParentID != nil && hops <= len(comments); hops++ {
			parent, ok := byID[*cur.ParentID]
			if !ok {
				break
			}
			cur = parent
		}
		return cur
	}

	threads := make(map[string]*Thread)
	var roots []*Thread
	for _, c := range comments {
		if root := rootOf(c); root == c {
			t := &Thread{Comment: c, Replies: []*Comment{}}
			threads[c.ID] = t
			roots = append(roots, t)
		}
	}
	for _, c := range comments {
		root := rootOf(c)
		if root == c {
			continue
		}
		if t, ok := threads[root.ID]; ok {
			t.Replies = append(t.Replies, c)
		}
	}

	sort.SliceStable(roots, func(i, j int) bool { return earlier(roots[i].Comment, roots[j].Comment) })
	for _, t := range roots {
		sort.SliceStable(t.Replies, func(i, j int) bool { return earlier(t.Replies[i], t.Replies[j]) })
	}
	if roots == nil {
		roots = []*Thread{}
	}
	return roots
}

func earlier(a, b *Comment) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
