package handler

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/azit-engine/internal/gateway"
	"github.com/d60-Lab/azit-engine/internal/model"
	"github.com/d60-Lab/azit-engine/pkg/response"
)

// FetchContent 内容详情（含回复森林与观察者视角标记）
// @Summary 内容详情
// @Tags 内容
// @Param id path string true "内容ID"
// @Success 200 {object} response.Response{data=model.ContentItem}
// @Failure 404 {object} response.Response
// @Router /api/{kind}/{id} [get]
func (h *Handler) FetchContent(kind model.ContentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		item, err := h.gw.FetchContent(c.Request.Context(), kind, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		// 登记互动基线，后续 toggle 相对它校准
		h.rec.PrimeFromItem(item)
		response.Success(c, item)
	}
}

// ListContent 内容列表（feed 支持 global/following 页签）
// @Summary 内容列表
// @Tags 内容
// @Param type query string false "页签" default(global)
// @Param page query int false "页码" default(1)
// @Success 200 {object} response.Response{data=[]model.ContentItem}
// @Router /api/{kind} [get]
func (h *Handler) ListContent(kind model.ContentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
		items, err := h.gw.ListContent(c.Request.Context(), kind, gateway.ListOptions{
			Tab:      c.Query("type"),
			Page:     page,
			PageSize: size,
			Category: c.Query("category"),
		})
		if err != nil {
			fail(c, err)
			return
		}
		for _, it := range items {
			h.rec.PrimeFromItem(it)
		}
		response.Success(c, items)
	}
}

func draftFromForm(c *gin.Context) (gateway.ContentDraft, error) {
	draft := gateway.ContentDraft{
		Title:    c.PostForm("title"),
		Content:  c.PostForm("content"),
		Category: c.PostForm("category"),
	}
	form, err := c.MultipartForm()
	if err != nil {
		// 没有文件的纯文本表单也允许
		return draft, nil
	}
	for _, fh := range form.File["images"] {
		f, err := fh.Open()
		if err != nil {
			return draft, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return draft, err
		}
		draft.Files = append(draft.Files, gateway.FileUpload{Name: fh.Filename, Data: data})
	}
	return draft, nil
}

// CreateContent 发布内容（multipart，含图片附件）
// @Summary 发布内容
// @Tags 内容
// @Accept multipart/form-data
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /api/{kind} [post]
func (h *Handler) CreateContent(kind model.ContentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		draft, err := draftFromForm(c)
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		if err := h.gw.CreateContent(c.Request.Context(), kind, draft); err != nil {
			fail(c, err)
			return
		}
		response.Success(c, nil)
	}
}

// UpdateContent 编辑内容（仅作者）
// @Summary 编辑内容
// @Tags 内容
// @Accept multipart/form-data
// @Param id path string true "内容ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /api/{kind}/{id} [put]
func (h *Handler) UpdateContent(kind model.ContentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		draft, err := draftFromForm(c)
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		if err := h.gw.UpdateContent(c.Request.Context(), kind, c.Param("id"), draft); err != nil {
			fail(c, err)
			return
		}
		response.Success(c, nil)
	}
}

// DeleteContent 删除内容（仅作者，服务端级联删除评论与附件）
// @Summary 删除内容
// @Tags 内容
// @Param id path string true "内容ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /api/{kind}/{id} [delete]
func (h *Handler) DeleteContent(kind model.ContentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := h.gw.DeleteContent(c.Request.Context(), kind, id); err != nil {
			fail(c, err)
			return
		}
		h.rec.Forget(c.Request.Context(), id)
		response.Success(c, nil)
	}
}

// DeleteAttachment 删除单个附件
// @Summary 删除附件
// @Tags 内容
// @Param imageId path string true "附件ID"
// @Success 200 {object} response.Response
// @Router /api/{kind}/image/{imageId} [delete]
func (h *Handler) DeleteAttachment(kind model.ContentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.gw.DeleteAttachment(c.Request.Context(), kind, c.Param("imageId")); err != nil {
			fail(c, err)
			return
		}
		response.Success(c, nil)
	}
}
