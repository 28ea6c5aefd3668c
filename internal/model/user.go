package model

// UserSnapshot 其他用户在列表中的快照（粉丝 / 关注列表行）
type UserSnapshot struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Nickname string `json:"nickname,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	// IsFollowedByMe 当前登录用户是否关注该用户
	IsFollowedByMe bool `json:"isFollowedByMe"`
}

// DisplayName nickname 优先
func (u *UserSnapshot) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Name
}

// Keyword 新闻关键词订阅，命中时服务端生成通知
type Keyword struct {
	Keyword string `json:"keyword"`
}
