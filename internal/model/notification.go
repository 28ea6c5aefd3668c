package model

import "time"

// Notification 通知。Read 只会 false→true，客户端不得回退。
type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Link      string    `json:"link"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}
