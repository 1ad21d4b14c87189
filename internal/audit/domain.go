package audit

import "time"

// Entry is one recorded activity row.
type Entry struct {
	ID        int64     `json:"id"`
	ActorID   *int64    `json:"actor_id,omitempty"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  *int64    `json:"entity_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filters narrows a timeline listing.
type Filters struct {
	Actor    *int64
	Entity   string
	Action   string
	Page     int
	PageSize int
}
