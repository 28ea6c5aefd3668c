package gateway

import (
	"context"

	"github.com/d60-Lab/azit-engine/internal/model"
)

// FileUpload 随内容一起上传的文件
type FileUpload struct {
	Name string
	Data []byte
}

// ContentDraft 创建/编辑内容的表单字段 + 附件
type ContentDraft struct {
	Title    string
	Content  string
	Category string
	Files    []FileUpload
}

// ListOptions 列表查询参数。Tab 仅对 feed 生效（global / following）。
type ListOptions struct {
	Tab      string
	Page     int
	PageSize int
	Category string
}

// Gateway 平台后端的边界。语义层面的操作集合，
// 鉴权由会话 cookie / bearer 透传，匿名时读操作可用、写操作返回 401。
type Gateway interface {
	FetchContent(ctx context.Context, kind model.ContentKind, id string) (*model.ContentItem, error)
	ListContent(ctx context.Context, kind model.ContentKind, opts ListOptions) ([]*model.ContentItem, error)
	CreateContent(ctx context.Context, kind model.ContentKind, draft ContentDraft) error
	UpdateContent(ctx context.Context, kind model.ContentKind, id string, draft ContentDraft) error
	DeleteContent(ctx context.Context, kind model.ContentKind, id string) error
	DeleteAttachment(ctx context.Context, kind model.ContentKind, attachmentID string) error

	CreateComment(ctx context.Context, kind model.ContentKind, contentID string, parentID *string, body string) error
	UpdateComment(ctx context.Context, kind model.ContentKind, commentID, body string) error
	DeleteComment(ctx context.Context, kind model.ContentKind, commentID string) error

	ToggleHeart(ctx context.Context, kind model.ContentKind, contentID string) (bool, error)
	ToggleFollow(ctx context.Context, targetEmail string) (bool, error)
	Retweet(ctx context.Context, contentID string) error
	ListFollowers(ctx context.Context) ([]*model.UserSnapshot, error)
	ListFollowings(ctx context.Context) ([]*model.UserSnapshot, error)

	UnreadCount(ctx context.Context) (int, error)
	ListNotifications(ctx context.Context) ([]*model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error

	MyInfo(ctx context.Context) (*model.UserSnapshot, error)
	ListKeywords(ctx context.Context) ([]string, error)
	AddKeyword(ctx context.Context, keyword string) error
	RemoveKeyword(ctx context.Context, keyword string) error
}
