package thread

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/d60-Lab/azit-engine/internal/apperr"
	"github.com/d60-Lab/azit-engine/internal/gateway"
	"github.com/d60-Lab/azit-engine/internal/model"
	"github.com/d60-Lab/azit-engine/internal/session"
	"github.com/d60-Lab/azit-engine/pkg/logger"
)

// Model 持有单个内容的回复森林。写操作全部走"写后刷新"：
// 不在本地推测插入，成功后从网关重取整棵树，id / 顺序 / 计数以服务端为准。
type Model struct {
	gw   gateway.Gateway
	sess *session.Session
	kind model.ContentKind
	id   string

	mu     sync.Mutex
	item   *model.ContentItem
	forest []*model.Comment
	// 刷新按发起顺序生效，迟到的旧响应直接丢弃
	issued  uint64
	applied uint64
}

func NewModel(gw gateway.Gateway, sess *session.Session, kind model.ContentKind, contentID string) *Model {
	return &Model{gw: gw, sess: sess, kind: kind, id: contentID}
}

// Load 首次拉取内容与回复森林
func (m *Model) Load(ctx context.Context) (*model.ContentItem, error) {
	if err := m.refresh(ctx); err != nil {
		return nil, err
	}
	return m.Item(), nil
}

// Item 当前内容快照（含森林）
func (m *Model) Item() *model.ContentItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.item == nil {
		return nil
	}
	out := *m.item
	out.Replies = cloneForest(m.forest)
	return &out
}

// Snapshot 只读森林快照
func (m *Model) Snapshot() []*model.Comment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneForest(m.forest)
}

// Walk 深度优先遍历，子节点保持创建顺序。fn 返回 false 终止。
func (m *Model) Walk(fn func(c *model.Comment, depth int) bool) {
	walk(m.Snapshot(), 0, fn)
}

// Find 按 id 查找节点（快照副本）
func (m *Model) Find(id string) *model.Comment {
	var found *model.Comment
	m.Walk(func(c *model.Comment, _ int) bool {
		if c.ID == id {
			found = c
			return false
		}
		return true
	})
	return found
}

// Count 全部节点数（含所有层级）
func (m *Model) Count() int {
	n := 0
	m.Walk(func(*model.Comment, int) bool { n++; return true })
	return n
}

// AppendReply 追加回复。parentID 为 nil 表示顶层评论。
// 空白内容不发起网络请求；父节点必须已存在于当前森林。
func (m *Model) AppendReply(ctx context.Context, parentID *string, body string) error {
	if strings.TrimSpace(body) == "" {
		return apperr.Validation("content", "must not be empty")
	}
	if !m.sess.Authenticated() {
		return apperr.ErrUnauthenticated
	}
	if parentID != nil {
		if m.find(*parentID) == nil {
			return apperr.ErrNotFound
		}
	}
	if err := m.gw.CreateComment(ctx, m.kind, m.id, parentID, body); err != nil {
		return err
	}
	return m.refresh(ctx)
}

// EditComment 仅作者可编辑；只替换内容，id/父子/时间不变，顺序不变。
func (m *Model) EditComment(ctx context.Context, id, body string) error {
	if strings.TrimSpace(body) == "" {
		return apperr.Validation("content", "must not be empty")
	}
	if err := m.authorize(id); err != nil {
		return err
	}
	if err := m.gw.UpdateComment(ctx, m.kind, id, body); err != nil {
		return err
	}
	return m.refresh(ctx)
}

// DeleteComment 仅作者可删除。非叶子节点级联删除整棵子树，
// 之后整树刷新，最终形态以服务端为准。
func (m *Model) DeleteComment(ctx context.Context, id string) error {
	if err := m.authorize(id); err != nil {
		return err
	}
	if err := m.gw.DeleteComment(ctx, m.kind, id); err != nil {
		return err
	}
	return m.refresh(ctx)
}

func (m *Model) authorize(id string) error {
	viewer := m.sess.Viewer()
	if viewer == nil {
		return apperr.ErrUnauthenticated
	}
	target := m.find(id)
	if target == nil {
		return apperr.ErrNotFound
	}
	if target.WriterEmail != viewer.Email {
		return apperr.ErrForbidden
	}
	return nil
}

func (m *Model) find(id string) *model.Comment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *model.Comment
	walk(m.forest, 0, func(c *model.Comment, _ int) bool {
		if c.ID == id {
			found = c
			return false
		}
		return true
	})
	return found
}

func (m *Model) refresh(ctx context.Context) error {
	m.mu.Lock()
	m.issued++
	token := m.issued
	m.mu.Unlock()

	item, err := m.gw.FetchContent(ctx, m.kind, m.id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if token <= m.applied {
		// 已有更新的刷新生效，丢弃本次结果
		logger.Debug("thread: stale refresh discarded",
			zap.String("content", m.id), zap.Uint64("token", token))
		return nil
	}
	m.applied = token
	m.forest = item.Replies
	item.Replies = nil
	m.item = item
	return nil
}

func walk(list []*model.Comment, depth int, fn func(c *model.Comment, depth int) bool) bool {
	for _, c := range list {
		if !fn(c, depth) {
			return false
		}
		if !walk(c.Children, depth+1, fn) {
			return false
		}
	}
	return true
}

func cloneForest(list []*model.Comment) []*model.Comment {
	if list == nil {
		return nil
	}
	out := make([]*model.Comment, len(list))
	for i, c := range list {
		out[i] = c.Clone()
	}
	return out
}
