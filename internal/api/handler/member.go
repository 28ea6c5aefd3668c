package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/azit-engine/pkg/response"
)

// MyInfo 当前观察者信息，匿名时 401
// @Summary 当前用户
// @Tags 会员
// @Success 200 {object} response.Response{data=model.UserSnapshot}
// @Failure 401 {object} response.Response
// @Router /my-info [get]
func (h *Handler) MyInfo(c *gin.Context) {
	viewer := h.sess.Viewer()
	if viewer == nil {
		response.Unauthorized(c, "anonymous")
		return
	}
	response.Success(c, viewer)
}

type keywordRequest struct {
	Keyword string `json:"keyword" binding:"required"`
}

// ListKeywords 关键词订阅列表
// @Summary 关键词列表
// @Tags 关键词
// @Success 200 {object} response.Response{data=[]string}
// @Router /api/keywords [get]
func (h *Handler) ListKeywords(c *gin.Context) {
	kws, err := h.gw.ListKeywords(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, kws)
}

// AddKeyword 订阅关键词（命中新闻时服务端生成通知）
// @Summary 订阅关键词
// @Tags 关键词
// @Accept json
// @Param request body keywordRequest true "关键词"
// @Success 200 {object} response.Response
// @Router /api/keywords [post]
func (h *Handler) AddKeyword(c *gin.Context) {
	var req keywordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.gw.AddKeyword(c.Request.Context(), req.Keyword); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}

// RemoveKeyword 取消订阅
// @Summary 取消关键词
// @Tags 关键词
// @Param keyword query string true "关键词"
// @Success 200 {object} response.Response
// @Router /api/keywords [delete]
func (h *Handler) RemoveKeyword(c *gin.Context) {
	keyword := c.Query("keyword")
	if keyword == "" {
		response.BadRequest(c, "keyword required")
		return
	}
	if err := h.gw.RemoveKeyword(c.Request.Context(), keyword); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}
