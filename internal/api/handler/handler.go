package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/azit-engine/internal/apperr"
	"github.com/d60-Lab/azit-engine/internal/engage"
	"github.com/d60-Lab/azit-engine/internal/gateway"
	"github.com/d60-Lab/azit-engine/internal/notify"
	"github.com/d60-Lab/azit-engine/internal/session"
	"github.com/d60-Lab/azit-engine/pkg/response"
)

// Handler 渲染层访问引擎的 HTTP 入口
type Handler struct {
	gw     gateway.Gateway
	sess   *session.Session
	rec    *engage.Reconciler
	poller *notify.Poller
}

func New(gw gateway.Gateway, sess *session.Session, rec *engage.Reconciler, poller *notify.Poller) *Handler {
	return &Handler{gw: gw, sess: sess, rec: rec, poller: poller}
}

// fail 按错误分类落到对应的 HTTP 状态
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperr.ErrUnauthenticated):
		response.Unauthorized(c, "login required")
	case errors.Is(err, apperr.ErrForbidden):
		response.Forbidden(c, "not the owner")
	case errors.Is(err, apperr.ErrNotFound):
		response.NotFound(c, "not found")
	case apperr.IsValidation(err):
		response.BadRequest(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}
