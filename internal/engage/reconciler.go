package engage

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/d60-Lab/azit-engine/internal/apperr"
	"github.com/d60-Lab/azit-engine/internal/gateway"
	"github.com/d60-Lab/azit-engine/internal/model"
	"github.com/d60-Lab/azit-engine/internal/session"
	"github.com/d60-Lab/azit-engine/pkg/logger"
)

// HeartState 某内容当前展示的心状态
type HeartState struct {
	Hearted bool
	Count   int64
}

// Confirmer 不可逆操作（转发）前的用户确认
type Confirmer func() bool

// Reconciler 互动状态校准器。心 / 关注走乐观更新：先本地翻转并广播，
// 请求返回后以服务端布尔值为准校准——计数相对翻转前的基线重算
// （preCount ± 1），预测失误时不做二次叠加。失败回滚到翻转前状态。
// 同一实体的变更按发起顺序串行：前一次未返回时后一次排队等待。
type Reconciler struct {
	gw    gateway.Gateway
	sess  *session.Session
	reg   *Registry
	cache *CountCache

	mu      sync.Mutex
	hearts  map[string]HeartState
	follows map[string]bool
	// 每个实体一把锁，飞行中的变更阻塞同实体的后续变更
	inflight map[string]*sync.Mutex
}

func NewReconciler(gw gateway.Gateway, sess *session.Session, reg *Registry, cache *CountCache) *Reconciler {
	return &Reconciler{
		gw: gw, sess: sess, reg: reg, cache: cache,
		hearts:   make(map[string]HeartState),
		follows:  make(map[string]bool),
		inflight: make(map[string]*sync.Mutex),
	}
}

func (r *Reconciler) entityLock(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.inflight[key]
	if !ok {
		l = &sync.Mutex{}
		r.inflight[key] = l
	}
	return l
}

// PrimeHeart 用网关返回的视图基线登记心状态（视图加载时调用）
func (r *Reconciler) PrimeHeart(contentID string, hearted bool, count int64) {
	r.mu.Lock()
	r.hearts[contentID] = HeartState{Hearted: hearted, Count: count}
	r.mu.Unlock()
}

// PrimeFollow 登记关注基线
func (r *Reconciler) PrimeFollow(email string, following bool) {
	r.mu.Lock()
	r.follows[email] = following
	r.mu.Unlock()
}

// HeartStateOf 当前心状态。本地没有基线时退回缓存计数。
func (r *Reconciler) HeartStateOf(ctx context.Context, contentID string) HeartState {
	r.mu.Lock()
	st, ok := r.hearts[contentID]
	r.mu.Unlock()
	if ok {
		return st
	}
	if n, hit := r.cache.Get(ctx, contentID); hit {
		return HeartState{Count: n}
	}
	return HeartState{}
}

// Following 当前关注状态（无基线时 false）
func (r *Reconciler) Following(email string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.follows[email]
}

// ToggleHeart 翻转心状态。返回校准后的最终状态。
func (r *Reconciler) ToggleHeart(ctx context.Context, kind model.ContentKind, contentID string) (HeartState, error) {
	if !r.sess.Authenticated() {
		return HeartState{}, apperr.ErrUnauthenticated
	}

	lock := r.entityLock(heartKey(contentID))
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	pre := r.hearts[contentID]
	optimistic := HeartState{Hearted: !pre.Hearted, Count: pre.Count + delta(!pre.Hearted)}
	if optimistic.Count < 0 {
		optimistic.Count = 0
	}
	r.hearts[contentID] = optimistic
	r.mu.Unlock()
	r.reg.Publish(HeartEvent{ContentID: contentID, Hearted: optimistic.Hearted, Count: optimistic.Count})

	serverHearted, err := r.gw.ToggleHeart(ctx, kind, contentID)
	if err != nil {
		// 失败回滚，不保留半套乐观状态
		r.mu.Lock()
		r.hearts[contentID] = pre
		r.mu.Unlock()
		r.reg.Publish(HeartEvent{ContentID: contentID, Hearted: pre.Hearted, Count: pre.Count})
		return pre, err
	}

	// 相对翻转前基线校准。服务端结果与翻转前相同说明净效果为零
	// （与并发反向操作撞上了），计数回到基线；不一致才 ±1，绝不叠加。
	final := HeartState{Hearted: serverHearted, Count: pre.Count}
	if serverHearted != pre.Hearted {
		final.Count = pre.Count + delta(serverHearted)
	}
	if final.Count < 0 {
		final.Count = 0
	}
	if serverHearted != optimistic.Hearted {
		logger.Debug("engage: heart prediction corrected",
			zap.String("content", contentID), zap.Bool("server", serverHearted))
	}
	r.mu.Lock()
	r.hearts[contentID] = final
	r.mu.Unlock()
	r.reg.Publish(HeartEvent{ContentID: contentID, Hearted: final.Hearted, Count: final.Count})
	r.cache.Set(ctx, contentID, final.Count)
	return final, nil
}

// ToggleFollow 翻转关注边。结果广播给该用户的所有订阅视图：
// 关注列表里被取关的行消失由视图自行处理，粉丝列表保留该行
// 只更新按钮状态。
func (r *Reconciler) ToggleFollow(ctx context.Context, targetEmail string) (bool, error) {
	if !r.sess.Authenticated() {
		return false, apperr.ErrUnauthenticated
	}

	lock := r.entityLock(followKey(targetEmail))
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	pre := r.follows[targetEmail]
	r.follows[targetEmail] = !pre
	r.mu.Unlock()
	r.reg.Publish(FollowEvent{Email: targetEmail, Following: !pre})

	server, err := r.gw.ToggleFollow(ctx, targetEmail)
	if err != nil {
		r.mu.Lock()
		r.follows[targetEmail] = pre
		r.mu.Unlock()
		r.reg.Publish(FollowEvent{Email: targetEmail, Following: pre})
		return pre, err
	}

	r.mu.Lock()
	r.follows[targetEmail] = server
	r.mu.Unlock()
	r.reg.Publish(FollowEvent{Email: targetEmail, Following: server})
	return server, nil
}

// Retweet 转发。不可逆且产生新条目，因此没有乐观更新：
// 确认 → 等服务端落地 → 通知列表整体刷新。
func (r *Reconciler) Retweet(ctx context.Context, contentID string, confirm Confirmer) error {
	if !r.sess.Authenticated() {
		return apperr.ErrUnauthenticated
	}
	if confirm != nil && !confirm() {
		return nil
	}
	if err := r.gw.Retweet(ctx, contentID); err != nil {
		return err
	}
	r.reg.Publish(RefreshEvent{Scope: ScopeFeedList})
	return nil
}

// Forget 内容被删除后清理本地状态与缓存
func (r *Reconciler) Forget(ctx context.Context, contentID string) {
	r.mu.Lock()
	delete(r.hearts, contentID)
	delete(r.inflight, heartKey(contentID))
	r.mu.Unlock()
	r.cache.Invalidate(ctx, contentID)
}

func delta(hearted bool) int64 {
	if hearted {
		return 1
	}
	return -1
}

// PrimeFromItem 从内容视图一次性登记心与关注基线
func (r *Reconciler) PrimeFromItem(item *model.ContentItem) {
	display := item.Display()
	r.PrimeHeart(display.ID, display.IsHearted, display.HeartCount)
	r.PrimeFollow(display.WriterEmail, display.IsFollowed)
}
