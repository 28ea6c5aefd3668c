package thread

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/azit-engine/internal/apperr"
	"github.com/d60-Lab/azit-engine/internal/gateway"
	"github.com/d60-Lab/azit-engine/internal/model"
	"github.com/d60-Lab/azit-engine/internal/session"
)

type fixture struct {
	fake *gateway.Fake
	sess *session.Session
	m    *Model
	id   string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	fake := gateway.NewFake()
	fake.SeedViewer("me@example.com", "me")
	id := fake.SeedContent(model.KindBoard, "author@example.com", "author", "hello")

	sess := session.New()
	sess.SetViewer(&model.UserSnapshot{Email: "me@example.com", Name: "me"})

	m := NewModel(fake, sess, model.KindBoard, id)
	_, err := m.Load(context.Background())
	require.NoError(t, err)
	return &fixture{fake: fake, sess: sess, m: m, id: id}
}

func (f *fixture) reply(t *testing.T, parentID *string, body string) {
	t.Helper()
	require.NoError(t, f.m.AppendReply(context.Background(), parentID, body))
}

func ptr(s string) *string { return &s }

func TestWalkVisitsEveryNodeOnceInCreationOrder(t *testing.T) {
	f := setup(t)
	f.reply(t, nil, "root-1")
	f.reply(t, nil, "root-2")
	roots := f.m.Snapshot()
	require.Len(t, roots, 2)
	f.reply(t, ptr(roots[0].ID), "child-1")
	f.reply(t, ptr(roots[0].ID), "child-2")
	children := f.m.Snapshot()[0].Children
	require.Len(t, children, 2)
	f.reply(t, ptr(children[0].ID), "grandchild")

	var visited []string
	f.m.Walk(func(c *model.Comment, _ int) bool {
		visited = append(visited, c.Content)
		return true
	})
	assert.Equal(t, []string{"root-1", "child-1", "grandchild", "child-2", "root-2"}, visited)
	assert.Equal(t, 5, f.m.Count())

	seen := make(map[string]int)
	f.m.Walk(func(c *model.Comment, _ int) bool {
		seen[c.ID]++
		return true
	})
	for id, n := range seen {
		assert.Equalf(t, 1, n, "node %s visited %d times", id, n)
	}
}

func TestAppendReplyEmptyBodyNeverHitsNetwork(t *testing.T) {
	f := setup(t)
	calls := 0
	f.fake.SetHook(func(op string) {
		if op == "CreateComment" {
			calls++
		}
	})

	err := f.m.AppendReply(context.Background(), nil, "   \t\n")
	assert.True(t, apperr.IsValidation(err))
	assert.Zero(t, calls)
	assert.Zero(t, f.m.Count())
}

func TestAppendReplyAnonymousRejectedBeforeNetwork(t *testing.T) {
	f := setup(t)
	f.sess.Clear()
	calls := 0
	f.fake.SetHook(func(op string) {
		if op == "CreateComment" {
			calls++
		}
	})

	err := f.m.AppendReply(context.Background(), nil, "hi")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	assert.Zero(t, calls)
}

func TestAppendReplyUnknownParent(t *testing.T) {
	f := setup(t)
	err := f.m.AppendReply(context.Background(), ptr("nope"), "hi")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAppendReplyRefreshOrdering(t *testing.T) {
	// 内容 7 场景：节点 1 已有一个子节点，追加回复后按创建顺序出现两个子节点
	f := setup(t)
	f.reply(t, nil, "top")
	top := f.m.Snapshot()[0]
	f.reply(t, ptr(top.ID), "first child")

	f.reply(t, ptr(top.ID), "hi")

	children := f.m.Snapshot()[0].Children
	require.Len(t, children, 2)
	assert.Equal(t, "first child", children[0].Content)
	assert.Equal(t, "hi", children[1].Content)
}

func TestEditByNonAuthorForbiddenAndTreeUnchanged(t *testing.T) {
	f := setup(t)
	f.reply(t, nil, "mine")

	// 换一个人
	f.sess.SetViewer(&model.UserSnapshot{Email: "other@example.com", Name: "other"})
	before := f.m.Snapshot()
	id := before[0].ID

	err := f.m.EditComment(context.Background(), id, "hacked")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Equal(t, before, f.m.Snapshot())

	err = f.m.DeleteComment(context.Background(), id)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Equal(t, before, f.m.Snapshot())
}

func TestEditReplacesContentInPlace(t *testing.T) {
	f := setup(t)
	f.reply(t, nil, "a")
	f.reply(t, nil, "b")
	id := f.m.Snapshot()[0].ID

	require.NoError(t, f.m.EditComment(context.Background(), id, "a2"))

	roots := f.m.Snapshot()
	assert.Equal(t, "a2", roots[0].Content)
	assert.Equal(t, id, roots[0].ID)
	assert.Equal(t, "b", roots[1].Content) // 顺序不因编辑改变
}

func TestDeleteCascadesSubtree(t *testing.T) {
	f := setup(t)
	f.reply(t, nil, "root")
	root := f.m.Snapshot()[0]
	f.reply(t, ptr(root.ID), "child")
	require.Equal(t, 2, f.m.Count())

	require.NoError(t, f.m.DeleteComment(context.Background(), root.ID))
	assert.Zero(t, f.m.Count())
}

func TestTransportErrorLeavesStateUntouched(t *testing.T) {
	f := setup(t)
	f.reply(t, nil, "stable")
	before := f.m.Snapshot()

	f.fake.SetFail("CreateComment", &apperr.TransportError{Op: "CreateComment", Err: errors.New("boom")})
	err := f.m.AppendReply(context.Background(), nil, "lost")
	assert.True(t, apperr.IsTransport(err))
	assert.Equal(t, before, f.m.Snapshot())
}

func TestConcurrentRepliesStaySane(t *testing.T) {
	f := setup(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.m.AppendReply(context.Background(), nil, "c")
		}()
	}
	wg.Wait()
	// 最终快照与服务端一致
	item, err := f.fake.FetchContent(context.Background(), model.KindBoard, f.id)
	require.NoError(t, err)
	assert.Equal(t, len(item.Replies), f.m.Count())
	assert.Equal(t, 8, f.m.Count())
}
