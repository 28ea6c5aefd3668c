package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/azit-engine/internal/apperr"
	"github.com/d60-Lab/azit-engine/internal/gateway"
	"github.com/d60-Lab/azit-engine/internal/model"
	"github.com/d60-Lab/azit-engine/internal/session"
	"github.com/d60-Lab/azit-engine/internal/store"
)

func newLedger(t *testing.T) store.ReadLedger {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	ledger, err := store.NewReadLedger(db)
	require.NoError(t, err)
	return ledger
}

func newPollerRig(t *testing.T) (*gateway.Fake, *Poller) {
	t.Helper()
	fake := gateway.NewFake()
	fake.SeedViewer("me@example.com", "me")
	sess := session.New()
	sess.SetViewer(&model.UserSnapshot{Email: "me@example.com", Name: "me"})
	return fake, NewPoller(fake, sess, newLedger(t), 10*time.Millisecond)
}

func waitUnread(t *testing.T, p *Poller, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p.Unread() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("unread never reached %d, got %d", want, p.Unread())
}

func TestPollerRefreshesUnread(t *testing.T) {
	fake, p := newPollerRig(t)
	fake.SeedNotification("reply on your post", "/board/1")
	fake.SeedNotification("new follower", "/mypage")
	fake.SeedNotification("keyword match", "/news/3")

	p.Start()
	defer p.Stop()
	waitUnread(t, p, 3)
}

func TestPollFailureIsSwallowed(t *testing.T) {
	fake, p := newPollerRig(t)
	fake.SeedNotification("hello", "/feed")
	p.Start()
	defer p.Stop()
	waitUnread(t, p, 1)

	// 轮询失败不清零也不上抛
	fake.SetFail("UnreadCount", &apperr.TransportError{Op: "UnreadCount", Err: errors.New("blip")})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, p.Unread())
}

func TestPanelStateMachine(t *testing.T) {
	fake, p := newPollerRig(t)
	fake.SeedNotification("hello", "/feed")
	ctx := context.Background()

	fetches := 0
	fake.SetHook(func(op string) {
		if op == "ListNotifications" {
			fetches++
		}
	})

	assert.Equal(t, PanelClosed, p.State())
	list, err := p.OpenPanel(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, PanelOpen, p.State())
	assert.Equal(t, 1, fetches)

	// 面板未关闭时重复打开不重拉
	_, err = p.OpenPanel(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fetches)

	// 关闭后再打开重新拉取
	p.ClosePanel()
	assert.Equal(t, PanelClosed, p.State())
	_, err = p.OpenPanel(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fetches)
}

func TestOpenPanelFailureReturnsToClosed(t *testing.T) {
	fake, p := newPollerRig(t)
	fake.SetFail("ListNotifications", &apperr.TransportError{Op: "ListNotifications", Err: errors.New("down")})

	_, err := p.OpenPanel(context.Background())
	assert.True(t, apperr.IsTransport(err))
	assert.Equal(t, PanelClosed, p.State())
}

func TestSelectMarksReadDecrementsAndCloses(t *testing.T) {
	// 未读 3 场景：读掉一条后未读 2，read 标记永久为 true
	fake, p := newPollerRig(t)
	fake.SeedNotification("a", "/a")
	id := fake.SeedNotification("b", "/b")
	fake.SeedNotification("c", "/c")
	ctx := context.Background()

	p.Start()
	defer p.Stop()
	waitUnread(t, p, 3)

	_, err := p.OpenPanel(ctx)
	require.NoError(t, err)

	link, err := p.Select(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "/b", link)
	assert.Equal(t, 2, p.Unread())
	assert.Equal(t, PanelClosed, p.State())

	// 服务端视角也已读
	list, err := fake.ListNotifications(ctx)
	require.NoError(t, err)
	for _, n := range list {
		if n.ID == id {
			assert.True(t, n.Read)
		}
	}
}

func TestSelectAlreadyReadIsIdempotent(t *testing.T) {
	fake, p := newPollerRig(t)
	id := fake.SeedNotification("a", "/a")
	ctx := context.Background()

	p.Start()
	defer p.Stop()
	waitUnread(t, p, 1)

	_, err := p.OpenPanel(ctx)
	require.NoError(t, err)
	_, err = p.Select(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Unread())

	marks := 0
	fake.SetHook(func(op string) {
		if op == "MarkNotificationRead" {
			marks++
		}
	})

	// 再读同一条：不再请求、不再扣减、计数不为负
	_, err = p.OpenPanel(ctx)
	require.NoError(t, err)
	link, err := p.Select(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "/a", link)
	assert.Equal(t, 0, p.Unread())
	assert.Zero(t, marks)
}

func TestLedgerKeepsReadStateAcrossRestarts(t *testing.T) {
	fake := gateway.NewFake()
	fake.SeedViewer("me@example.com", "me")
	sess := session.New()
	sess.SetViewer(&model.UserSnapshot{Email: "me@example.com", Name: "me"})
	ledger := newLedger(t)
	ctx := context.Background()

	id := fake.SeedNotification("a", "/a")
	p1 := NewPoller(fake, sess, ledger, time.Hour)
	_, err := p1.OpenPanel(ctx)
	require.NoError(t, err)
	_, err = p1.Select(ctx, id)
	require.NoError(t, err)

	// 服务端"丢失"已读状态，台账兜底保持单调
	fake.ResetNotificationRead(id)

	p2 := NewPoller(fake, sess, ledger, time.Hour)
	got, err := p2.OpenPanel(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Read)
}

func TestAnonymousSessionZeroesUnread(t *testing.T) {
	fake := gateway.NewFake()
	fake.SeedViewer("me@example.com", "me")
	fake.SeedNotification("a", "/a")
	sess := session.New()
	sess.SetViewer(&model.UserSnapshot{Email: "me@example.com", Name: "me"})
	p := NewPoller(fake, sess, nil, 10*time.Millisecond)

	p.Start()
	defer p.Stop()
	waitUnread(t, p, 1)

	sess.Clear()
	waitUnread(t, p, 0)
}
