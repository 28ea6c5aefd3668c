package engage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/azit-engine/internal/apperr"
	"github.com/d60-Lab/azit-engine/internal/gateway"
	"github.com/d60-Lab/azit-engine/internal/model"
	"github.com/d60-Lab/azit-engine/internal/session"
)

func newRig(t *testing.T) (*gateway.Fake, *session.Session, *Registry, *Reconciler) {
	t.Helper()
	fake := gateway.NewFake()
	fake.SeedViewer("me@example.com", "me")
	sess := session.New()
	sess.SetViewer(&model.UserSnapshot{Email: "me@example.com", Name: "me"})
	reg := NewRegistry()
	rec := NewReconciler(fake, sess, reg, nil)
	return fake, sess, reg, rec
}

func seedHeartedBy(fake *gateway.Fake, id string, n int) {
	emails := make([]string, n)
	for i := range emails {
		emails[i] = string(rune('a'+i)) + "@example.com"
	}
	fake.SeedHearts(id, emails...)
}

func TestToggleHeartOptimisticThenConfirmed(t *testing.T) {
	// 内容 42 场景：5 颗心、未点；点击后立即显示 6/true，服务端确认 true
	fake, _, reg, rec := newRig(t)
	id := fake.SeedContent(model.KindFeed, "author@example.com", "author", "post")
	seedHeartedBy(fake, id, 5)
	rec.PrimeHeart(id, false, 5)

	var events []HeartEvent
	reg.SubscribeHeart(id, func(ev Event) {
		events = append(events, ev.(HeartEvent))
	})

	st, err := rec.ToggleHeart(context.Background(), model.KindFeed, id)
	require.NoError(t, err)
	assert.True(t, st.Hearted)
	assert.EqualValues(t, 6, st.Count)

	// 第一次广播是乐观值，第二次是校准值，二者一致
	require.Len(t, events, 2)
	assert.Equal(t, HeartEvent{ContentID: id, Hearted: true, Count: 6}, events[0])
	assert.Equal(t, HeartEvent{ContentID: id, Hearted: true, Count: 6}, events[1])
}

func TestToggleHeartServerDisagreesNoDoubleAdjust(t *testing.T) {
	// 服务端返回 false（与并发取消点心撞上）：计数回到 5，不是 4
	fake, _, _, rec := newRig(t)
	id := fake.SeedContent(model.KindFeed, "author@example.com", "author", "post")
	seedHeartedBy(fake, id, 4)
	fake.SeedHearts(id, "me@example.com") // 服务端视角我已点过，toggle 会返回 false
	rec.PrimeHeart(id, false, 5)          // 本地基线却是未点（陈旧视图）

	st, err := rec.ToggleHeart(context.Background(), model.KindFeed, id)
	require.NoError(t, err)
	assert.False(t, st.Hearted)
	assert.EqualValues(t, 5, st.Count)
}

func TestToggleHeartTransportErrorRollsBack(t *testing.T) {
	fake, _, reg, rec := newRig(t)
	id := fake.SeedContent(model.KindFeed, "author@example.com", "author", "post")
	rec.PrimeHeart(id, true, 3)
	fake.SetFail("ToggleHeart", &apperr.TransportError{Op: "ToggleHeart", Err: errors.New("down")})

	var last HeartEvent
	reg.SubscribeHeart(id, func(ev Event) { last = ev.(HeartEvent) })

	st, err := rec.ToggleHeart(context.Background(), model.KindFeed, id)
	assert.True(t, apperr.IsTransport(err))
	assert.Equal(t, HeartState{Hearted: true, Count: 3}, st)
	// 最后一次广播已回滚
	assert.Equal(t, HeartEvent{ContentID: id, Hearted: true, Count: 3}, last)
	assert.Equal(t, HeartState{Hearted: true, Count: 3}, rec.HeartStateOf(context.Background(), id))
}

func TestToggleHeartAnonymousRejected(t *testing.T) {
	fake, sess, _, rec := newRig(t)
	id := fake.SeedContent(model.KindFeed, "author@example.com", "author", "post")
	sess.Clear()
	calls := 0
	fake.SetHook(func(op string) {
		if op == "ToggleHeart" {
			calls++
		}
	})
	_, err := rec.ToggleHeart(context.Background(), model.KindFeed, id)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	assert.Zero(t, calls)
}

func TestRapidTogglesSerializedNoDrift(t *testing.T) {
	// 同一内容的连续快速 toggle 必须串行，最终与服务端真相一致
	fake, _, _, rec := newRig(t)
	id := fake.SeedContent(model.KindFeed, "author@example.com", "author", "post")
	rec.PrimeHeart(id, false, 0)
	fake.SetHook(func(op string) {
		if op == "ToggleHeart" {
			time.Sleep(2 * time.Millisecond) // 拉长飞行窗口制造重叠
		}
	})

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := rec.ToggleHeart(context.Background(), model.KindFeed, id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	item, err := fake.FetchContent(context.Background(), model.KindFeed, id)
	require.NoError(t, err)
	local := rec.HeartStateOf(context.Background(), id)
	assert.Equal(t, item.IsHearted, local.Hearted)
	assert.Equal(t, item.HeartCount, local.Count)
	// 偶数次 toggle 净效果为零
	assert.False(t, local.Hearted)
	assert.EqualValues(t, 0, local.Count)
}

func TestToggleFollowBroadcastsToAllSubscribers(t *testing.T) {
	fake, _, reg, rec := newRig(t)
	fake.SeedUser("target@example.com", "target")
	rec.PrimeFollow("target@example.com", false)

	// 同一用户出现在三个独立视图：动态卡片、粉丝弹窗、关注弹窗
	var card, followers, followings bool
	reg.SubscribeFollow("target@example.com", func(ev Event) { card = ev.(FollowEvent).Following })
	reg.SubscribeFollow("target@example.com", func(ev Event) { followers = ev.(FollowEvent).Following })
	reg.SubscribeFollow("target@example.com", func(ev Event) { followings = ev.(FollowEvent).Following })

	following, err := rec.ToggleFollow(context.Background(), "target@example.com")
	require.NoError(t, err)
	assert.True(t, following)
	assert.True(t, card)
	assert.True(t, followers)
	assert.True(t, followings)

	following, err = rec.ToggleFollow(context.Background(), "target@example.com")
	require.NoError(t, err)
	assert.False(t, following)
	assert.False(t, card)
	assert.False(t, followers)
	assert.False(t, followings)
}

func TestToggleFollowRollbackOnFailure(t *testing.T) {
	fake, _, reg, rec := newRig(t)
	fake.SeedUser("target@example.com", "target")
	rec.PrimeFollow("target@example.com", true)
	fake.SetFail("ToggleFollow", &apperr.TransportError{Op: "ToggleFollow", Err: errors.New("down")})

	var last FollowEvent
	reg.SubscribeFollow("target@example.com", func(ev Event) { last = ev.(FollowEvent) })

	_, err := rec.ToggleFollow(context.Background(), "target@example.com")
	assert.True(t, apperr.IsTransport(err))
	assert.True(t, rec.Following("target@example.com"))
	assert.True(t, last.Following)
}

func TestRetweetConfirmAndRefresh(t *testing.T) {
	fake, _, reg, rec := newRig(t)
	id := fake.SeedContent(model.KindFeed, "author@example.com", "author", "post")

	refreshed := 0
	reg.SubscribeRefresh(ScopeFeedList, func(Event) { refreshed++ })

	// 用户取消确认：什么都不发生
	require.NoError(t, rec.Retweet(context.Background(), id, func() bool { return false }))
	assert.Zero(t, refreshed)

	require.NoError(t, rec.Retweet(context.Background(), id, func() bool { return true }))
	assert.Equal(t, 1, refreshed)

	items, err := fake.ListContent(context.Background(), model.KindFeed, gateway.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, items, 2) // 原内容 + 转发壳
}

func TestUnsubscribedViewStopsReceiving(t *testing.T) {
	fake, _, reg, rec := newRig(t)
	fake.SeedUser("target@example.com", "target")

	received := 0
	token := reg.SubscribeFollow("target@example.com", func(Event) { received++ })

	_, err := rec.ToggleFollow(context.Background(), "target@example.com")
	require.NoError(t, err)
	got := received

	reg.Unsubscribe(token)
	_, err = rec.ToggleFollow(context.Background(), "target@example.com")
	require.NoError(t, err)
	assert.Equal(t, got, received)
}
