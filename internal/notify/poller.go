package notify

import (
	"context"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/d60-Lab/azit-engine/internal/apperr"
	"github.com/d60-Lab/azit-engine/internal/gateway"
	"github.com/d60-Lab/azit-engine/internal/model"
	"github.com/d60-Lab/azit-engine/internal/session"
	"github.com/d60-Lab/azit-engine/internal/store"
	"github.com/d60-Lab/azit-engine/pkg/logger"
)

// PanelState 通知面板状态机：Closed -> Loading -> Open -> Closed。
// 不允许从 Open 直接回到 Loading。
type PanelState int

const (
	PanelClosed PanelState = iota
	PanelLoading
	PanelOpen
)

// Poller 后台轮询未读数，面板打开时按需拉取完整列表。
// 轮询失败只记日志并上报 sentry，不打扰用户。
type Poller struct {
	gw       gateway.Gateway
	sess     *session.Session
	ledger   store.ReadLedger
	interval time.Duration

	mu     sync.Mutex
	state  PanelState
	unread int
	list   []*model.Notification

	stopCh  chan struct{}
	running bool
}

func NewPoller(gw gateway.Gateway, sess *session.Session, ledger store.ReadLedger, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{gw: gw, sess: sess, ledger: ledger, interval: interval}
}

// Start 启动轮询循环，立即刷新一次。重复调用为 no-op。
func (p *Poller) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	stop := p.stopCh
	p.mu.Unlock()

	go p.loop(stop)
}

// Stop 停止轮询并取消定时器。会话结束时调用。
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	close(p.stopCh)
	p.unread = 0
	p.list = nil
	p.state = PanelClosed
}

func (p *Poller) loop(stop <-chan struct{}) {
	p.refreshUnread()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.refreshUnread()
		}
	}
}

func (p *Poller) refreshUnread() {
	if !p.sess.Authenticated() {
		p.mu.Lock()
		p.unread = 0
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	count, err := p.gw.UnreadCount(ctx)
	if err != nil {
		// 瞬时网络抖动不打扰用户
		logger.Warn("notify: unread poll failed", zap.Error(err))
		sentry.CaptureException(err)
		return
	}
	if count < 0 {
		count = 0
	}
	p.mu.Lock()
	p.unread = count
	p.mu.Unlock()
}

// Unread 当前展示的未读数，永不为负
func (p *Poller) Unread() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unread
}

// State 当前面板状态
func (p *Poller) State() PanelState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Notifications 面板当前列表快照
func (p *Poller) Notifications() []*model.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// OpenPanel 打开面板。只有 Closed 态会触发列表拉取；
// 面板未关闭时重复打开不重拉。
func (p *Poller) OpenPanel(ctx context.Context) ([]*model.Notification, error) {
	p.mu.Lock()
	if p.state != PanelClosed {
		list := p.snapshotLocked()
		p.mu.Unlock()
		return list, nil
	}
	p.state = PanelLoading
	p.mu.Unlock()

	list, err := p.gw.ListNotifications(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.state = PanelClosed
		return nil, err
	}
	// 本地台账兜底：台账里已读的通知即使服务端还没同步也按已读展示
	if p.ledger != nil {
		for _, n := range list {
			if n.Read {
				continue
			}
			if has, lerr := p.ledger.Has(ctx, n.ID); lerr == nil && has {
				n.Read = true
			}
		}
	}
	p.list = list
	p.state = PanelOpen
	return p.snapshotLocked(), nil
}

func (p *Poller) snapshotLocked() []*model.Notification {
	out := make([]*model.Notification, len(p.list))
	for i, n := range p.list {
		cp := *n
		out[i] = &cp
	}
	return out
}

// ClosePanel 关闭面板。关闭后重新打开会重新拉取列表。
func (p *Poller) ClosePanel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == PanelOpen {
		p.state = PanelClosed
	}
}

// Select 选中一条通知：标记已读（幂等）、未读数减一（下限 0）、
// 关闭面板、返回深链。已读通知重复选中不再请求也不再扣减。
func (p *Poller) Select(ctx context.Context, id string) (link string, err error) {
	p.mu.Lock()
	if p.state != PanelOpen {
		p.mu.Unlock()
		return "", apperr.ErrNotFound
	}
	var target *model.Notification
	for _, n := range p.list {
		if n.ID == id {
			target = n
			break
		}
	}
	if target == nil {
		p.mu.Unlock()
		return "", apperr.ErrNotFound
	}
	alreadyRead := target.Read
	link = target.Link
	p.mu.Unlock()

	if !alreadyRead {
		if err := p.gw.MarkNotificationRead(ctx, id); err != nil {
			return "", err
		}
		if p.ledger != nil {
			if lerr := p.ledger.Mark(ctx, id); lerr != nil {
				logger.Warn("notify: ledger mark failed", zap.String("id", id), zap.Error(lerr))
			}
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !alreadyRead {
		target.Read = true
		if p.unread > 0 {
			p.unread--
		}
	}
	p.state = PanelClosed
	return link, nil
}
