package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/azit-engine/internal/model"
	"github.com/d60-Lab/azit-engine/pkg/response"
)

// ToggleHeart 翻转心。立即返回校准后的权威状态。
// @Summary 点心/取消
// @Tags 互动
// @Param id path string true "内容ID"
// @Success 200 {object} response.Response{data=engage.HeartState}
// @Failure 401 {object} response.Response
// @Router /api/{kind}/{id}/heart [post]
func (h *Handler) ToggleHeart(kind model.ContentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := h.rec.ToggleHeart(c.Request.Context(), kind, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		response.Success(c, st)
	}
}

// ToggleFollow 翻转关注边，返回新的"是否关注"状态
// @Summary 关注/取关
// @Tags 互动
// @Param email path string true "目标用户邮箱"
// @Success 200 {object} response.Response{data=bool}
// @Failure 401 {object} response.Response
// @Router /api/feed/follow/{email} [post]
func (h *Handler) ToggleFollow(c *gin.Context) {
	following, err := h.rec.ToggleFollow(c.Request.Context(), c.Param("email"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, following)
}

// Retweet 转发。不可逆，渲染层先确认再调用；成功后列表整体刷新。
// @Summary 转发
// @Tags 互动
// @Param id path string true "内容ID"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /api/feed/{id}/retweet [post]
func (h *Handler) Retweet(c *gin.Context) {
	if err := h.rec.Retweet(c.Request.Context(), c.Param("id"), nil); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}

// ListFollowers 粉丝列表（带 isFollowedByMe 标记）
// @Summary 粉丝列表
// @Tags 互动
// @Success 200 {object} response.Response{data=[]model.UserSnapshot}
// @Router /api/feed/followers [get]
func (h *Handler) ListFollowers(c *gin.Context) {
	users, err := h.gw.ListFollowers(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	for _, u := range users {
		h.rec.PrimeFollow(u.Email, u.IsFollowedByMe)
	}
	response.Success(c, users)
}

// ListFollowings 关注列表
// @Summary 关注列表
// @Tags 互动
// @Success 200 {object} response.Response{data=[]model.UserSnapshot}
// @Router /api/feed/followings [get]
func (h *Handler) ListFollowings(c *gin.Context) {
	users, err := h.gw.ListFollowings(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	for _, u := range users {
		h.rec.PrimeFollow(u.Email, u.IsFollowedByMe)
	}
	response.Success(c, users)
}
