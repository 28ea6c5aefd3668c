package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/azit-engine/internal/model"
	"github.com/d60-Lab/azit-engine/internal/thread"
	"github.com/d60-Lab/azit-engine/pkg/response"
)

type createCommentRequest struct {
	Content  string  `json:"content" binding:"required"`
	ParentID *string `json:"parentId"`
}

type editCommentRequest struct {
	ContentID string `json:"contentId" binding:"required"`
	Content   string `json:"content" binding:"required"`
}

func (h *Handler) loadModel(c *gin.Context, kind model.ContentKind, contentID string) (*thread.Model, bool) {
	m := thread.NewModel(h.gw, h.sess, kind, contentID)
	if _, err := m.Load(c.Request.Context()); err != nil {
		fail(c, err)
		return nil, false
	}
	return m, true
}

// CreateComment 追加回复（parentId 为空表示顶层评论），写后整树刷新
// @Summary 追加回复
// @Tags 评论
// @Accept json
// @Param id path string true "内容ID"
// @Param request body createCommentRequest true "回复内容"
// @Success 200 {object} response.Response{data=[]model.Comment}
// @Failure 401 {object} response.Response
// @Router /api/{kind}/{id}/comment [post]
func (h *Handler) CreateComment(kind model.ContentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createCommentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		m, ok := h.loadModel(c, kind, c.Param("id"))
		if !ok {
			return
		}
		if err := m.AppendReply(c.Request.Context(), req.ParentID, req.Content); err != nil {
			fail(c, err)
			return
		}
		response.Success(c, m.Snapshot())
	}
}

// UpdateComment 编辑评论（仅作者，内容原地替换，顺序不变）
// @Summary 编辑评论
// @Tags 评论
// @Accept json
// @Param commentId path string true "评论ID"
// @Param request body editCommentRequest true "新内容"
// @Success 200 {object} response.Response{data=[]model.Comment}
// @Failure 403 {object} response.Response
// @Router /api/{kind}/comment/{commentId} [put]
func (h *Handler) UpdateComment(kind model.ContentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req editCommentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		m, ok := h.loadModel(c, kind, req.ContentID)
		if !ok {
			return
		}
		if err := m.EditComment(c.Request.Context(), c.Param("commentId"), req.Content); err != nil {
			fail(c, err)
			return
		}
		response.Success(c, m.Snapshot())
	}
}

// DeleteComment 删除评论（仅作者，级联删除子树）
// @Summary 删除评论
// @Tags 评论
// @Param commentId path string true "评论ID"
// @Param contentId query string true "所属内容ID"
// @Success 200 {object} response.Response{data=[]model.Comment}
// @Failure 403 {object} response.Response
// @Router /api/{kind}/comment/{commentId} [delete]
func (h *Handler) DeleteComment(kind model.ContentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		contentID := c.Query("contentId")
		if contentID == "" {
			response.BadRequest(c, "contentId required")
			return
		}
		m, ok := h.loadModel(c, kind, contentID)
		if !ok {
			return
		}
		if err := m.DeleteComment(c.Request.Context(), c.Param("commentId")); err != nil {
			fail(c, err)
			return
		}
		response.Success(c, m.Snapshot())
	}
}
