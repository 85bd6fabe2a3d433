// Package domtest 提供内存中的 dom.Document，用于驱动检测器测试。
package domtest

import (
	"context"

	"cdpaction/internal/dom"
)

// Document 可直接改写的页面状态；非并发安全，配合 sched.Manual 使用
type Document struct {
	URL      string
	Counts   map[string]int
	Attrs    map[string]map[string]string
	Children map[string]int
	// Err 非空时所有查询都返回该错误
	Err error
	// ClickErr 非空时 OnClick 返回该错误
	ClickErr error

	listeners map[int]func(dom.Click)
	nextID    int
	Removed   int
}

// New 创建空文档
func New() *Document {
	return &Document{
		Counts:    map[string]int{},
		Attrs:     map[string]map[string]string{},
		Children:  map[string]int{},
		listeners: map[int]func(dom.Click){},
	}
}

// SetAttr 设置元素属性，同时保证元素存在
func (d *Document) SetAttr(sel, name, value string) {
	if d.Attrs[sel] == nil {
		d.Attrs[sel] = map[string]string{}
	}
	d.Attrs[sel][name] = value
	if d.Counts[sel] == 0 {
		d.Counts[sel] = 1
	}
}

// Remove 移除选择器对应的元素
func (d *Document) Remove(sel string) {
	delete(d.Counts, sel)
	delete(d.Attrs, sel)
	delete(d.Children, sel)
}

// Click 向所有监听派发一次点击
func (d *Document) Click(c dom.Click) {
	for _, fn := range d.listeners {
		fn(c)
	}
}

// Listeners 当前监听数
func (d *Document) Listeners() int { return len(d.listeners) }

func (d *Document) Location(context.Context) (string, error) {
	return d.URL, d.Err
}

func (d *Document) Count(_ context.Context, sel string) (int, error) {
	if d.Err != nil {
		return 0, d.Err
	}
	return d.Counts[sel], nil
}

func (d *Document) Attribute(_ context.Context, sel, name string) (string, bool, error) {
	if d.Err != nil {
		return "", false, d.Err
	}
	v, ok := d.Attrs[sel][name]
	return v, ok, nil
}

func (d *Document) ChildCount(_ context.Context, sel string) (int, bool, error) {
	if d.Err != nil {
		return 0, false, d.Err
	}
	if n, ok := d.Children[sel]; ok {
		return n, true, nil
	}
	if d.Counts[sel] > 0 {
		return 0, true, nil
	}
	return 0, false, nil
}

func (d *Document) OnClick(fn func(dom.Click)) (func(), error) {
	if d.ClickErr != nil {
		return nil, d.ClickErr
	}
	d.nextID++
	id := d.nextID
	d.listeners[id] = fn
	return func() {
		if _, ok := d.listeners[id]; ok {
			delete(d.listeners, id)
			d.Removed++
		}
	}, nil
}

var _ dom.Document = (*Document)(nil)
