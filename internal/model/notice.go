package model

import "sort"

// Notice audiences.
const (
	NoticeGeneral      = "GENERAL"
	NoticeStoreManager = "STORE_MANAGER"
	NoticeMemberOnly   = "MEMBER_ONLY"
)

// Notice is one entry of the notice board.
type Notice struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Content    string `json:"content,omitempty"`
	NoticeType string `json:"notice_type"`
	Priority   string `json:"priority"`
	AuthorName string `json:"author_name,omitempty"`
	IsPinned   bool   `json:"is_pinned"`
	IsRead     bool   `json:"is_read"`
	ViewCount  int    `json:"view_count,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
	StartDate  string `json:"start_date,omitempty"`
	EndDate    string `json:"end_date,omitempty"`
}

// VisibleTo reports whether a session of role r may see the notice.
// Anonymous callers pass "" and see general notices only.
func (n Notice) VisibleTo(r Role) bool {
	switch n.NoticeType {
	case NoticeStoreManager:
		return r == RoleStore || r == RoleAdmin
	case NoticeMemberOnly:
		return r == RoleUser || r == RoleAdmin
	}
	return true
}

var priorityRank = map[string]int{"URGENT": 3, "HIGH": 2, "NORMAL": 1, "LOW": 0}

// SortNotices orders pinned notices first, then by priority, newest first
// within a priority.  CreatedAt is RFC 3339 so string order is time order.
func SortNotices(ns []Notice) {
	sort.SliceStable(ns, func(i, j int) bool {
		a, b := ns[i], ns[j]
		if a.IsPinned != b.IsPinned {
			return a.IsPinned
		}
		if pa, pb := priorityRank[a.Priority], priorityRank[b.Priority]; pa != pb {
			return pa > pb
		}
		return a.CreatedAt > b.CreatedAt
	})
}

// Signup is a new player account as the sign-up form submits it.
type Signup struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Nickname string `json:"nickname,omitempty"`
}
