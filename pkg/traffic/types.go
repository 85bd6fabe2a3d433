package traffic

import (
	"net/url"
	"strings"
)

// Header 封装通用的头部操作
type Header map[string]string

// Get 获取指定 Header 的值（大小写不敏感）
func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}
	return h[strings.ToLower(key)]
}

// Set 设置指定 Header 的值（自动转换为小写）
func (h Header) Set(key, value string) {
	h[strings.ToLower(key)] = value
}

// Request 被观察到的一次请求快照（只读）
type Request struct {
	ID      string              // 事务唯一ID
	URL     string              // 完整URL
	Method  string              // HTTP方法
	Headers Header              // 请求头
	Body    []byte              // 请求体原始数据
	Form    map[string][]string // 已解析的表单字段（表单编码请求）
}

// NewRequest 创建初始化请求对象
func NewRequest(method, rawURL string) *Request {
	return &Request{
		URL:     rawURL,
		Method:  strings.ToUpper(method),
		Headers: make(Header),
	}
}

// Hostname 返回 URL 的主机名，解析失败时为空
func (r *Request) Hostname() string {
	u, err := url.Parse(r.URL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Path 返回 URL 路径，解析失败时为空
func (r *Request) Path() string {
	u, err := url.Parse(r.URL)
	if err != nil {
		return ""
	}
	return u.Path
}

// Query 返回解析后的查询参数
func (r *Request) Query() url.Values {
	u, err := url.Parse(r.URL)
	if err != nil {
		return url.Values{}
	}
	return u.Query()
}
