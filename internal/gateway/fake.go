package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/d60-Lab/azit-engine/internal/apperr"
	"github.com/d60-Lab/azit-engine/internal/model"
)

// Fake 内存网关，测试与基准共用。行为对齐真实后端：
// 服务端分配 id、评论级联删除、按 viewer 计算 isHearted/isFollowed。
type Fake struct {
	mu sync.Mutex

	Viewer *model.UserSnapshot // nil 表示匿名

	items    map[string]*model.ContentItem
	hearts   map[string]map[string]bool // contentID -> set of emails
	follows  map[string]map[string]bool // follower email -> set of followee emails
	users    map[string]*model.UserSnapshot
	notis    []*model.Notification
	keywords []string

	nextID int

	// ctl 保护测试注入点，允许在操作飞行中改写
	ctl  sync.Mutex
	hook func(op string)
	fail map[string]error
}

var _ Gateway = (*Fake)(nil)

func NewFake() *Fake {
	return &Fake{
		items:   make(map[string]*model.ContentItem),
		hearts:  make(map[string]map[string]bool),
		follows: make(map[string]map[string]bool),
		users:   make(map[string]*model.UserSnapshot),
		fail:    make(map[string]error),
	}
}

// SetHook 注册在每个操作进入临界区前调用的钩子（注入延迟 / 计数）
func (f *Fake) SetHook(fn func(op string)) {
	f.ctl.Lock()
	f.hook = fn
	f.ctl.Unlock()
}

// SetFail 让指定操作直接返回错误；err 为 nil 时恢复正常
func (f *Fake) SetFail(op string, err error) {
	f.ctl.Lock()
	if err == nil {
		delete(f.fail, op)
	} else {
		f.fail[op] = err
	}
	f.ctl.Unlock()
}

func (f *Fake) enter(op string) error {
	f.ctl.Lock()
	hook := f.hook
	err := f.fail[op]
	f.ctl.Unlock()
	if hook != nil {
		hook(op)
	}
	f.mu.Lock()
	if err != nil {
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *Fake) requireViewer() (string, error) {
	if f.Viewer == nil {
		return "", apperr.ErrUnauthenticated
	}
	return f.Viewer.Email, nil
}

func (f *Fake) genID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s%d", prefix, f.nextID)
}

// SeedViewer 设定当前登录用户
func (f *Fake) SeedViewer(email, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &model.UserSnapshot{Email: email, Name: name}
	f.Viewer = u
	f.users[email] = u
}

// SeedUser 注册一个可被关注的用户
func (f *Fake) SeedUser(email, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[email] = &model.UserSnapshot{Email: email, Name: name}
}

// SeedContent 植入内容并返回 id
func (f *Fake) SeedContent(kind model.ContentKind, writerEmail, writerName, content string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.genID("p")
	f.items[id] = &model.ContentItem{
		ID: id, Kind: kind,
		WriterEmail: writerEmail, WriterName: writerName,
		Content: content, CreatedAt: time.Now(),
	}
	f.hearts[id] = make(map[string]bool)
	return id
}

// SeedHearts 直接设定服务端心数基线
func (f *Fake) SeedHearts(contentID string, emails ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range emails {
		f.hearts[contentID][e] = true
	}
}

// SeedNotification 植入通知
func (f *Fake) SeedNotification(message, link string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.genID("n")
	// newest first
	f.notis = append([]*model.Notification{{
		ID: id, Message: message, Link: link, CreatedAt: time.Now(),
	}}, f.notis...)
	return id
}

// ResetNotificationRead 模拟服务端丢失已读状态（测试台账兜底用）
func (f *Fake) ResetNotificationRead(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notis {
		if n.ID == id {
			n.Read = false
		}
	}
}

func (f *Fake) findComment(list []*model.Comment, id string) *model.Comment {
	for _, cm := range list {
		if cm.ID == id {
			return cm
		}
		if found := f.findComment(cm.Children, id); found != nil {
			return found
		}
	}
	return nil
}

func removeComment(list []*model.Comment, id string) ([]*model.Comment, bool) {
	for i, cm := range list {
		if cm.ID == id {
			// 级联删除整棵子树
			return append(list[:i:i], list[i+1:]...), true
		}
		if children, ok := removeComment(cm.Children, id); ok {
			cm.Children = children
			return list, true
		}
	}
	return list, false
}

func (f *Fake) view(item *model.ContentItem) *model.ContentItem {
	out := *item
	out.HeartCount = int64(len(f.hearts[item.ID]))
	if f.Viewer != nil {
		out.IsHearted = f.hearts[item.ID][f.Viewer.Email]
		out.IsFollowed = f.follows[f.Viewer.Email][item.WriterEmail]
		out.Editable = item.WriterEmail == f.Viewer.Email
	}
	out.Replies = make([]*model.Comment, len(item.Replies))
	for i, cm := range item.Replies {
		out.Replies[i] = cm.Clone()
	}
	return &out
}

func (f *Fake) FetchContent(_ context.Context, _ model.ContentKind, id string) (*model.ContentItem, error) {
	if err := f.enter("FetchContent"); err != nil {
		return nil, err
	}
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return f.view(item), nil
}

func (f *Fake) ListContent(_ context.Context, kind model.ContentKind, _ ListOptions) ([]*model.ContentItem, error) {
	if err := f.enter("ListContent"); err != nil {
		return nil, err
	}
	defer f.mu.Unlock()
	var out []*model.ContentItem
	for _, item := range f.items {
		if item.Kind == kind {
			out = append(out, f.view(item))
		}
	}
	return out, nil
}

func (f *Fake) CreateContent(_ context.Context, kind model.ContentKind, draft ContentDraft) error {
	if err := f.enter("CreateContent"); err != nil {
		return err
	}
	defer f.mu.Unlock()
	email, err := f.requireViewer()
	if err != nil {
		return err
	}
	id := f.genID("p")
	item := &model.ContentItem{
		ID: id, Kind: kind, WriterEmail: email, WriterName: f.Viewer.Name,
		Title: draft.Title, Content: draft.Content, Category: draft.Category,
		CreatedAt: time.Now(),
	}
	for _, file := range draft.Files {
		item.Images = append(item.Images, model.Attachment{
			ID: f.genID("a"), ContentID: id, URL: "/uploads/" + file.Name,
		})
	}
	f.items[id] = item
	f.hearts[id] = make(map[string]bool)
	return nil
}

func (f *Fake) UpdateContent(_ context.Context, _ model.ContentKind, id string, draft ContentDraft) error {
	if err := f.enter("UpdateContent"); err != nil {
		return err
	}
	defer f.mu.Unlock()
	email, err := f.requireViewer()
	if err != nil {
		return err
	}
	item, ok := f.items[id]
	if !ok {
		return apperr.ErrNotFound
	}
	if item.WriterEmail != email {
		return apperr.ErrForbidden
	}
	item.Title, item.Content, item.Category = draft.Title, draft.Content, draft.Category
	for _, file := range draft.Files {
		item.Images = append(item.Images, model.Attachment{
			ID: f.genID("a"), ContentID: id, URL: "/uploads/" + file.Name,
		})
	}
	return nil
}

func (f *Fake) DeleteContent(_ context.Context, _ model.ContentKind, id string) error {
	if err := f.enter("DeleteContent"); err != nil {
		return err
	}
	defer f.mu.Unlock()
	email, err := f.requireViewer()
	if err != nil {
		return err
	}
	item, ok := f.items[id]
	if !ok {
		return apperr.ErrNotFound
	}
	if item.WriterEmail != email {
		return apperr.ErrForbidden
	}
	delete(f.items, id)
	delete(f.hearts, id)
	return nil
}

func (f *Fake) DeleteAttachment(_ context.Context, _ model.ContentKind, attachmentID string) error {
	if err := f.enter("DeleteAttachment"); err != nil {
		return err
	}
	defer f.mu.Unlock()
	email, err := f.requireViewer()
	if err != nil {
		return err
	}
	for _, item := range f.items {
		for i, img := range item.Images {
			if img.ID == attachmentID {
				if item.WriterEmail != email {
					return apperr.ErrForbidden
				}
				item.Images = append(item.Images[:i], item.Images[i+1:]...)
				return nil
			}
		}
	}
	return apperr.ErrNotFound
}

func (f *Fake) CreateComment(_ context.Context, _ model.ContentKind, contentID string, parentID *string, body string) error {
	if err := f.enter("CreateComment"); err != nil {
		return err
	}
	defer f.mu.Unlock()
	email, err := f.requireViewer()
	if err != nil {
		return err
	}
	item, ok := f.items[contentID]
	if !ok {
		return apperr.ErrNotFound
	}
	cm := &model.Comment{
		ID: f.genID("c"), ContentID: contentID, ParentID: parentID,
		WriterEmail: email, WriterName: f.Viewer.Name,
		Content: body, CreatedAt: time.Now(),
	}
	if parentID == nil {
		item.Replies = append(item.Replies, cm)
		return nil
	}
	parent := f.findComment(item.Replies, *parentID)
	if parent == nil {
		return apperr.ErrNotFound
	}
	parent.Children = append(parent.Children, cm)
	return nil
}

func (f *Fake) UpdateComment(_ context.Context, _ model.ContentKind, commentID, body string) error {
	if err := f.enter("UpdateComment"); err != nil {
		return err
	}
	defer f.mu.Unlock()
	email, err := f.requireViewer()
	if err != nil {
		return err
	}
	for _, item := range f.items {
		if cm := f.findComment(item.Replies, commentID); cm != nil {
			if cm.WriterEmail != email {
				return apperr.ErrForbidden
			}
			cm.Content = body
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (f *Fake) DeleteComment(_ context.Context, _ model.ContentKind, commentID string) error {
	if err := f.enter("DeleteComment"); err != nil {
		return err
	}
	defer f.mu.Unlock()
	email, err := f.requireViewer()
	if err != nil {
		return err
	}
	for _, item := range f.items {
		if cm := f.findComment(item.Replies, commentID); cm != nil {
			if cm.WriterEmail != email {
				return apperr.ErrForbidden
			}
			item.Replies, _ = removeComment(item.Replies, commentID)
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (f *Fake) ToggleHeart(_ context.Context, _ model.ContentKind, contentID string) (bool, error) {
	if err := f.enter("ToggleHeart"); err != nil {
		return false, err
	}
	defer f.mu.Unlock()
	email, err := f.requireViewer()
	if err != nil {
		return false, err
	}
	set, ok := f.hearts[contentID]
	if !ok {
		return false, apperr.ErrNotFound
	}
	if set[email] {
		delete(set, email)
		return false, nil
	}
	set[email] = true
	return true, nil
}

func (f *Fake) ToggleFollow(_ context.Context, targetEmail string) (bool, error) {
	if err := f.enter("ToggleFollow"); err != nil {
		return false, err
	}
	defer f.mu.Unlock()
	email, err := f.requireViewer()
	if err != nil {
		return false, err
	}
	if _, ok := f.users[targetEmail]; !ok {
		return false, apperr.ErrNotFound
	}
	set := f.follows[email]
	if set == nil {
		set = make(map[string]bool)
		f.follows[email] = set
	}
	if set[targetEmail] {
		delete(set, targetEmail)
		return false, nil
	}
	set[targetEmail] = true
	return true, nil
}

func (f *Fake) Retweet(_ context.Context, contentID string) error {
	if err := f.enter("Retweet"); err != nil {
		return err
	}
	defer f.mu.Unlock()
	email, err := f.requireViewer()
	if err != nil {
		return err
	}
	orig, ok := f.items[contentID]
	if !ok {
		return apperr.ErrNotFound
	}
	orig.RetweetCount++
	id := f.genID("p")
	shell := *orig
	f.items[id] = &model.ContentItem{
		ID: id, Kind: model.KindFeed,
		WriterEmail: email, WriterName: f.Viewer.Name,
		OriginalFeed: &shell, CreatedAt: time.Now(),
	}
	f.hearts[id] = make(map[string]bool)
	return nil
}

func (f *Fake) ListFollowers(_ context.Context) ([]*model.UserSnapshot, error) {
	if err := f.enter("ListFollowers"); err != nil {
		return nil, err
	}
	defer f.mu.Unlock()
	email, err := f.requireViewer()
	if err != nil {
		return nil, err
	}
	var out []*model.UserSnapshot
	for follower, set := range f.follows {
		if set[email] {
			u := *f.users[follower]
			u.IsFollowedByMe = f.follows[email][follower]
			out = append(out, &u)
		}
	}
	return out, nil
}

func (f *Fake) ListFollowings(_ context.Context) ([]*model.UserSnapshot, error) {
	if err := f.enter("ListFollowings"); err != nil {
		return nil, err
	}
	defer f.mu.Unlock()
	email, err := f.requireViewer()
	if err != nil {
		return nil, err
	}
	var out []*model.UserSnapshot
	for followee := range f.follows[email] {
		u := *f.users[followee]
		u.IsFollowedByMe = true
		out = append(out, &u)
	}
	return out, nil
}

func (f *Fake) UnreadCount(_ context.Context) (int, error) {
	if err := f.enter("UnreadCount"); err != nil {
		return 0, err
	}
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.notis {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (f *Fake) ListNotifications(_ context.Context) ([]*model.Notification, error) {
	if err := f.enter("ListNotifications"); err != nil {
		return nil, err
	}
	defer f.mu.Unlock()
	out := make([]*model.Notification, len(f.notis))
	for i, n := range f.notis {
		cp := *n
		out[i] = &cp
	}
	return out, nil
}

func (f *Fake) MarkNotificationRead(_ context.Context, id string) error {
	if err := f.enter("MarkNotificationRead"); err != nil {
		return err
	}
	defer f.mu.Unlock()
	for _, n := range f.notis {
		if n.ID == id {
			n.Read = true
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (f *Fake) MyInfo(_ context.Context) (*model.UserSnapshot, error) {
	if err := f.enter("MyInfo"); err != nil {
		return nil, err
	}
	defer f.mu.Unlock()
	if f.Viewer == nil {
		return nil, apperr.ErrUnauthenticated
	}
	me := *f.Viewer
	return &me, nil
}

func (f *Fake) ListKeywords(_ context.Context) ([]string, error) {
	if err := f.enter("ListKeywords"); err != nil {
		return nil, err
	}
	defer f.mu.Unlock()
	if _, err := f.requireViewer(); err != nil {
		return nil, err
	}
	return append([]string(nil), f.keywords...), nil
}

func (f *Fake) AddKeyword(_ context.Context, keyword string) error {
	if err := f.enter("AddKeyword"); err != nil {
		return err
	}
	defer f.mu.Unlock()
	if _, err := f.requireViewer(); err != nil {
		return err
	}
	for _, kw := range f.keywords {
		if kw == keyword {
			return nil
		}
	}
	f.keywords = append(f.keywords, keyword)
	return nil
}

func (f *Fake) RemoveKeyword(_ context.Context, keyword string) error {
	if err := f.enter("RemoveKeyword"); err != nil {
		return err
	}
	defer f.mu.Unlock()
	if _, err := f.requireViewer(); err != nil {
		return err
	}
	for i, kw := range f.keywords {
		if kw == keyword {
			f.keywords = append(f.keywords[:i], f.keywords[i+1:]...)
			return nil
		}
	}
	return nil
}
