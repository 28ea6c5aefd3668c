package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/azit-engine/internal/apperr"
	"github.com/d60-Lab/azit-engine/internal/model"
)

const DefaultBaseURL = "http://localhost:8080"

// Client 平台 REST 网关的 HTTP 适配器
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client

	limiter *rate.Limiter
	tracer  trace.Tracer
}

// Ensure Client implements Gateway interface
var _ Gateway = (*Client)(nil)

// NewClient 构建网关客户端。cookie jar 维持会话，timeout 覆盖整个请求。
func NewClient(baseURL string, timeout time.Duration, limit float64, burst int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if limit <= 0 {
		limit = 20
	}
	if burst <= 0 {
		burst = int(limit) * 2
	}
	jar, _ := cookiejar.New(nil)
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout, Jar: jar},
		limiter:    rate.NewLimiter(rate.Limit(limit), burst),
		tracer:     otel.Tracer("azit-engine/gateway"),
	}
}

// SetToken 设置 bearer token（可选，默认走 cookie 会话）
func (c *Client) SetToken(token string) { c.Token = token }

func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out interface{}) error {
	ctx, span := c.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	))
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return apperr.FromNetErr(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return apperr.FromNetErr(op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return apperr.FromNetErr(op, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetStatus(codes.Error, resp.Status)
		return apperr.FromStatus(op, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.FromNetErr(op, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, out interface{}) error {
	return c.do(ctx, op, http.MethodGet, path, nil, "", out)
}

func (c *Client) postJSON(ctx context.Context, op, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return apperr.FromNetErr(op, err)
		}
		body = bytes.NewReader(raw)
	}
	return c.do(ctx, op, http.MethodPost, path, body, "application/json", out)
}

func (c *Client) putJSON(ctx context.Context, op, path string, in interface{}) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return apperr.FromNetErr(op, err)
	}
	return c.do(ctx, op, http.MethodPut, path, bytes.NewReader(raw), "application/json", nil)
}

func (c *Client) delete(ctx context.Context, op, path string) error {
	return c.do(ctx, op, http.MethodDelete, path, nil, "", nil)
}

// multipartBody 构造内容创建/编辑用的 multipart 表单
func multipartBody(draft ContentDraft) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if draft.Title != "" {
		if err := w.WriteField("title", draft.Title); err != nil {
			return nil, "", err
		}
	}
	if err := w.WriteField("content", draft.Content); err != nil {
		return nil, "", err
	}
	if draft.Category != "" {
		if err := w.WriteField("category", draft.Category); err != nil {
			return nil, "", err
		}
	}
	for _, f := range draft.Files {
		part, err := w.CreateFormFile("images", f.Name)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func (c *Client) FetchContent(ctx context.Context, kind model.ContentKind, id string) (*model.ContentItem, error) {
	var item model.ContentItem
	if err := c.getJSON(ctx, "gateway.FetchContent", fmt.Sprintf("/api/%s/%s", kind, id), &item); err != nil {
		return nil, err
	}
	item.Kind = kind
	return &item, nil
}

func (c *Client) ListContent(ctx context.Context, kind model.ContentKind, opts ListOptions) ([]*model.ContentItem, error) {
	q := url.Values{}
	if opts.Tab != "" {
		q.Set("type", opts.Tab)
	}
	if opts.Page > 0 {
		q.Set("page", fmt.Sprint(opts.Page))
	}
	if opts.PageSize > 0 {
		q.Set("size", fmt.Sprint(opts.PageSize))
	}
	if opts.Category != "" {
		q.Set("category", opts.Category)
	}
	path := "/api/" + string(kind)
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}
	var items []*model.ContentItem
	if err := c.getJSON(ctx, "gateway.ListContent", path, &items); err != nil {
		return nil, err
	}
	for _, it := range items {
		it.Kind = kind
	}
	return items, nil
}

func (c *Client) CreateContent(ctx context.Context, kind model.ContentKind, draft ContentDraft) error {
	body, ct, err := multipartBody(draft)
	if err != nil {
		return apperr.FromNetErr("gateway.CreateContent", err)
	}
	return c.do(ctx, "gateway.CreateContent", http.MethodPost, "/api/"+string(kind), body, ct, nil)
}

func (c *Client) UpdateContent(ctx context.Context, kind model.ContentKind, id string, draft ContentDraft) error {
	body, ct, err := multipartBody(draft)
	if err != nil {
		return apperr.FromNetErr("gateway.UpdateContent", err)
	}
	return c.do(ctx, "gateway.UpdateContent", http.MethodPut, fmt.Sprintf("/api/%s/%s", kind, id), body, ct, nil)
}

func (c *Client) DeleteContent(ctx context.Context, kind model.ContentKind, id string) error {
	return c.delete(ctx, "gateway.DeleteContent", fmt.Sprintf("/api/%s/%s", kind, id))
}

func (c *Client) DeleteAttachment(ctx context.Context, kind model.ContentKind, attachmentID string) error {
	return c.delete(ctx, "gateway.DeleteAttachment", fmt.Sprintf("/api/%s/image/%s", kind, attachmentID))
}

type commentRequest struct {
	Content  string  `json:"content"`
	ParentID *string `json:"parentId"`
}

func (c *Client) CreateComment(ctx context.Context, kind model.ContentKind, contentID string, parentID *string, body string) error {
	return c.postJSON(ctx, "gateway.CreateComment",
		fmt.Sprintf("/api/%s/%s/comment", kind, contentID),
		commentRequest{Content: body, ParentID: parentID}, nil)
}

func (c *Client) UpdateComment(ctx context.Context, kind model.ContentKind, commentID, body string) error {
	return c.putJSON(ctx, "gateway.UpdateComment",
		fmt.Sprintf("/api/%s/comment/%s", kind, commentID),
		map[string]string{"content": body})
}

func (c *Client) DeleteComment(ctx context.Context, kind model.ContentKind, commentID string) error {
	return c.delete(ctx, "gateway.DeleteComment", fmt.Sprintf("/api/%s/comment/%s", kind, commentID))
}

func (c *Client) ToggleHeart(ctx context.Context, kind model.ContentKind, contentID string) (bool, error) {
	var hearted bool
	err := c.postJSON(ctx, "gateway.ToggleHeart",
		fmt.Sprintf("/api/%s/%s/heart", kind, contentID), nil, &hearted)
	return hearted, err
}

func (c *Client) ToggleFollow(ctx context.Context, targetEmail string) (bool, error) {
	var following bool
	err := c.postJSON(ctx, "gateway.ToggleFollow",
		"/api/feed/follow/"+url.PathEscape(targetEmail), nil, &following)
	return following, err
}

func (c *Client) Retweet(ctx context.Context, contentID string) error {
	return c.postJSON(ctx, "gateway.Retweet", fmt.Sprintf("/api/feed/%s/retweet", contentID), nil, nil)
}

func (c *Client) ListFollowers(ctx context.Context) ([]*model.UserSnapshot, error) {
	var users []*model.UserSnapshot
	err := c.getJSON(ctx, "gateway.ListFollowers", "/api/feed/followers", &users)
	return users, err
}

func (c *Client) ListFollowings(ctx context.Context) ([]*model.UserSnapshot, error) {
	var users []*model.UserSnapshot
	err := c.getJSON(ctx, "gateway.ListFollowings", "/api/feed/followings", &users)
	return users, err
}

func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var count int
	err := c.getJSON(ctx, "gateway.UnreadCount", "/api/notifications/unread-count", &count)
	return count, err
}

func (c *Client) ListNotifications(ctx context.Context) ([]*model.Notification, error) {
	var list []*model.Notification
	err := c.getJSON(ctx, "gateway.ListNotifications", "/api/notifications", &list)
	return list, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.postJSON(ctx, "gateway.MarkNotificationRead", fmt.Sprintf("/api/notifications/%s/read", id), nil, nil)
}

func (c *Client) MyInfo(ctx context.Context) (*model.UserSnapshot, error) {
	var me model.UserSnapshot
	if err := c.getJSON(ctx, "gateway.MyInfo", "/my-info", &me); err != nil {
		return nil, err
	}
	return &me, nil
}

func (c *Client) ListKeywords(ctx context.Context) ([]string, error) {
	var kws []string
	err := c.getJSON(ctx, "gateway.ListKeywords", "/api/keywords", &kws)
	return kws, err
}

func (c *Client) AddKeyword(ctx context.Context, keyword string) error {
	return c.postJSON(ctx, "gateway.AddKeyword", "/api/keywords", model.Keyword{Keyword: keyword}, nil)
}

func (c *Client) RemoveKeyword(ctx context.Context, keyword string) error {
	return c.delete(ctx, "gateway.RemoveKeyword", "/api/keywords?keyword="+url.QueryEscape(keyword))
}
