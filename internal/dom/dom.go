// Package dom 定义检测器读取页面状态所需的最小文档接口，以及点击标记匹配、
// 计数采样与边沿触发等通用原语。
package dom

import (
	"context"
	"strings"
	"unicode"
)

// Document 活动页面的只读视图
//
// 查询失败或未找到元素都视为"不确定"，调用方不得据此驱动状态转换。
type Document interface {
	// Location 当前页面地址
	Location(ctx context.Context) (string, error)
	// Count 匹配选择器的元素数量
	Count(ctx context.Context, selector string) (int, error)
	// Attribute 第一个匹配元素的属性值；元素或属性不存在时 found 为 false
	Attribute(ctx context.Context, selector, name string) (value string, found bool, err error)
	// ChildCount 第一个匹配元素的子元素数量；元素不存在时 found 为 false
	ChildCount(ctx context.Context, selector string) (n int, found bool, err error)
	// OnClick 在文档根节点注册捕获阶段的点击监听，返回移除函数
	OnClick(fn func(Click)) (remove func(), err error)
}

// Node 点击路径上的一个元素快照
type Node struct {
	Tag   string            `json:"tag"`
	Attrs map[string]string `json:"attrs"`
	Class string            `json:"class"`
	Text  string            `json:"text"`
}

// Attr 返回属性值
func (n Node) Attr(name string) string {
	if n.Attrs == nil {
		return ""
	}
	return n.Attrs[name]
}

// Click 一次点击：Path 为事件目标及至多 3 层祖先
type Click struct {
	Path   []Node `json:"path"`
	Dialog bool   `json:"dialog"` // 目标位于 role=dialog 容器内
}

// MaxAncestors 点击匹配时向上检查的祖先层数
const MaxAncestors = 3

// Marker 点击标记，任一条件满足即命中
type Marker struct {
	Attr     string `yaml:"attr"`     // 属性名
	Contains string `yaml:"contains"` // 属性值需包含的子串（区分大小写，同 CSS *=）
	Word     string `yaml:"word"`     // 属性值需包含的完整单词（忽略大小写）
	Class    string `yaml:"class"`    // class 子串
	Text     string `yaml:"text"`     // 精确文本（忽略大小写与首尾空白）
}

// maxTextLen 文本标记只匹配短文本
const maxTextLen = 32

// Match 判断单个节点是否命中
func (m Marker) Match(n Node) bool {
	if v := n.Attr(m.Attr); m.Attr != "" && v != "" {
		if m.Contains != "" && strings.Contains(v, m.Contains) {
			return true
		}
		if m.Word != "" && hasWord(v, m.Word) {
			return true
		}
	}
	if m.Class != "" && strings.Contains(n.Class, m.Class) {
		return true
	}
	if m.Text != "" {
		text := strings.TrimSpace(n.Text)
		if len(text) <= maxTextLen && strings.EqualFold(text, m.Text) {
			return true
		}
	}
	return false
}

// MatchPath 检查目标及至多 3 层祖先是否命中任一标记
func MatchPath(path []Node, markers []Marker) bool {
	limit := len(path)
	if limit > MaxAncestors+1 {
		limit = MaxAncestors + 1
	}
	for _, n := range path[:limit] {
		for _, m := range markers {
			if m.Match(n) {
				return true
			}
		}
	}
	return false
}

// CompletionKeywords 任务完成类点击的关键词
var CompletionKeywords = []string{"done", "closed", "complete", "resolved"}

// KeywordMarkers 由关键词生成属性单词、class 子串与精确文本三类标记
func KeywordMarkers(attr string, keywords ...string) []Marker {
	out := make([]Marker, 0, len(keywords)*2)
	for _, k := range keywords {
		out = append(out,
			Marker{Attr: attr, Word: k, Text: k},
			Marker{Class: "status-" + k},
		)
	}
	return out
}

// hasWord 按非字母数字切分后逐词比较，"incomplete" 不含单词 "complete"
func hasWord(s, word string) bool {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, f := range fields {
		if strings.EqualFold(f, word) {
			return true
		}
	}
	return false
}
