package session

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/d60-Lab/azit-engine/internal/gateway"
	"github.com/d60-Lab/azit-engine/internal/model"
)

// Session 当前观察者状态。引擎不建立会话（鉴权在后端），
// 只维护"现在是谁在看"，供归属与登录校验使用。
type Session struct {
	mu     sync.RWMutex
	viewer *model.UserSnapshot
}

func New() *Session { return &Session{} }

// Probe 向网关查询 /my-info，成功则进入登录态，401 则保持匿名。
func (s *Session) Probe(ctx context.Context, gw gateway.Gateway) error {
	me, err := gw.MyInfo(ctx)
	if err != nil {
		s.Clear()
		return err
	}
	s.mu.Lock()
	s.viewer = me
	s.mu.Unlock()
	return nil
}

// SetViewer 直接设定观察者（测试 / 登录回调）
func (s *Session) SetViewer(u *model.UserSnapshot) {
	s.mu.Lock()
	s.viewer = u
	s.mu.Unlock()
}

// Clear 退出登录，降级为匿名
func (s *Session) Clear() {
	s.mu.Lock()
	s.viewer = nil
	s.mu.Unlock()
}

// Viewer 返回当前用户快照，匿名时为 nil
func (s *Session) Viewer() *model.UserSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.viewer == nil {
		return nil
	}
	v := *s.viewer
	return &v
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewer != nil
}

// TokenUsable 校验 bearer token 是否仍在有效期内。
// 不校验签名——签名属于后端，这里只做过期预判避免白打一次请求。
func TokenUsable(token string) bool {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.After(time.Now())
}
