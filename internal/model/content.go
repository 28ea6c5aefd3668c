package model

import "time"

// ContentKind 区分三类可评论内容
type ContentKind string

const (
	KindBoard ContentKind = "board"
	KindFeed  ContentKind = "feed"
	KindNews  ContentKind = "news"
)

// ContentItem 内容主体（板块帖 / 动态 / 新闻），字段名与平台 API 对齐
type ContentItem struct {
	ID           string       `json:"id"`
	Kind         ContentKind  `json:"kind"`
	WriterEmail  string       `json:"writerEmail"`
	WriterName   string       `json:"writerName"`
	WriterAvatar string       `json:"writerAvatar,omitempty"`
	Title        string       `json:"title,omitempty"`
	Content      string       `json:"content"`
	Category     string       `json:"category,omitempty"`
	Images       []Attachment `json:"images,omitempty"`
	Replies      []*Comment   `json:"replies,omitempty"`
	// ViewCount 由服务端维护，客户端只读
	ViewCount  int64 `json:"viewCount"`
	HeartCount int64 `json:"heartCount"`
	IsHearted  bool  `json:"isHearted"`
	IsFollowed bool  `json:"isFollowed"`
	// RetweetCount 转发数；OriginalFeed 非空表示本条是转发壳
	RetweetCount int64        `json:"retweetCount"`
	OriginalFeed *ContentItem `json:"originalFeed,omitempty"`
	Editable     bool         `json:"editable"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// Attachment 附件，归属唯一内容，随内容删除而级联删除
type Attachment struct {
	ID        string `json:"id"`
	ContentID string `json:"contentId"`
	URL       string `json:"url"`
}

// Display 转发壳渲染原始内容
func (c *ContentItem) Display() *ContentItem {
	if c.OriginalFeed != nil {
		return c.OriginalFeed
	}
	return c
}
