package model

import "time"

// Comment 评论节点。ParentID 为 nil 表示顶层评论；
// Children 按创建顺序排列，编辑不改变顺序。
type Comment struct {
	ID          string     `json:"id"`
	ContentID   string     `json:"contentId"`
	ParentID    *string    `json:"parentId"`
	WriterEmail string     `json:"writerEmail"`
	WriterName  string     `json:"writerName"`
	Content     string     `json:"content"`
	CreatedAt   time.Time  `json:"createdAt"`
	Children    []*Comment `json:"children,omitempty"`
}

// Clone 深拷贝整棵子树
func (c *Comment) Clone() *Comment {
	if c == nil {
		return nil
	}
	out := *c
	if c.ParentID != nil {
		p := *c.ParentID
		out.ParentID = &p
	}
	if len(c.Children) > 0 {
		out.Children = make([]*Comment, len(c.Children))
		for i, ch := range c.Children {
			out.Children[i] = ch.Clone()
		}
	}
	return &out
}
