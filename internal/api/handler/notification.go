package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/azit-engine/pkg/response"
)

// UnreadCount 当前未读数（后台 30s 轮询维护）
// @Summary 未读通知数
// @Tags 通知
// @Success 200 {object} response.Response{data=int}
// @Router /api/notifications/unread-count [get]
func (h *Handler) UnreadCount(c *gin.Context) {
	response.Success(c, h.poller.Unread())
}

// OpenNotifications 打开通知面板并拉取列表
// @Summary 通知列表
// @Tags 通知
// @Success 200 {object} response.Response{data=[]model.Notification}
// @Router /api/notifications [get]
func (h *Handler) OpenNotifications(c *gin.Context) {
	list, err := h.poller.OpenPanel(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, list)
}

// CloseNotifications 关闭面板（下次打开会重新拉取）
// @Summary 关闭通知面板
// @Tags 通知
// @Success 200 {object} response.Response
// @Router /api/notifications/close [post]
func (h *Handler) CloseNotifications(c *gin.Context) {
	h.poller.ClosePanel()
	response.Success(c, nil)
}

// ReadNotification 选中通知：标记已读、未读数减一、关面板、返回深链
// @Summary 标记通知已读
// @Tags 通知
// @Param id path string true "通知ID"
// @Success 200 {object} response.Response{data=string}
// @Router /api/notifications/{id}/read [post]
func (h *Handler) ReadNotification(c *gin.Context) {
	link, err := h.poller.Select(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"link": link})
}
