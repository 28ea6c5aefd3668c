package engage

import (
	"sync"

	"github.com/google/uuid"
)

// Event 广播给订阅方的状态事件
type Event interface{ entity() string }

// HeartEvent 某内容的心状态变化（乐观或已校准）
type HeartEvent struct {
	ContentID string
	Hearted   bool
	Count     int64
}

func (e HeartEvent) entity() string { return heartKey(e.ContentID) }

// FollowEvent 对某用户的关注状态变化
type FollowEvent struct {
	Email     string
	Following bool
}

func (e FollowEvent) entity() string { return followKey(e.Email) }

// RefreshEvent 列表需要整体重取（转发等产生新条目的操作）
type RefreshEvent struct {
	Scope string
}

func (e RefreshEvent) entity() string { return e.Scope }

// ScopeFeedList 转发后需要刷新的范围
const ScopeFeedList = "feed:list"

func heartKey(contentID string) string { return "heart:" + contentID }
func followKey(email string) string    { return "follow:" + email }

// Registry 订阅登记表。同一实体出现在多个独立拉取的视图里
// （动态卡片、粉丝弹窗、关注弹窗），一次变更必须在同一轮
// 广播里送达所有订阅方。视图挂载/卸载与广播并发安全。
type Registry struct {
	mu   sync.RWMutex
	subs map[string]map[string]func(Event)
}

func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]map[string]func(Event))}
}

// SubscribeHeart 订阅某内容的心状态
func (r *Registry) SubscribeHeart(contentID string, fn func(Event)) string {
	return r.subscribe(heartKey(contentID), fn)
}

// SubscribeFollow 订阅某用户的关注状态
func (r *Registry) SubscribeFollow(email string, fn func(Event)) string {
	return r.subscribe(followKey(email), fn)
}

// SubscribeRefresh 订阅列表刷新信号
func (r *Registry) SubscribeRefresh(scope string, fn func(Event)) string {
	return r.subscribe(scope, fn)
}

func (r *Registry) subscribe(entity string, fn func(Event)) string {
	token := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.subs[entity]
	if m == nil {
		m = make(map[string]func(Event))
		r.subs[entity] = m
	}
	m[token] = fn
	return token
}

// Unsubscribe 视图卸载时移除订阅；之后到达的广播不再送达该视图。
func (r *Registry) Unsubscribe(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for entity, m := range r.subs {
		if _, ok := m[token]; ok {
			delete(m, token)
			if len(m) == 0 {
				delete(r.subs, entity)
			}
			return
		}
	}
}

// Publish 同步推送给该实体的全部订阅方
func (r *Registry) Publish(ev Event) {
	r.mu.RLock()
	fns := make([]func(Event), 0, len(r.subs[ev.entity()]))
	for _, fn := range r.subs[ev.entity()] {
		fns = append(fns, fn)
	}
	r.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}
