package platform

import (
	"slices"
	"strings"
	"sync/atomic"
)

// Domains 自建实例的别名域名列表（有序、去重）
//
// 列表以快照整体替换，读取无锁，可在多个浏览上下文间共享。
type Domains struct {
	list atomic.Pointer[[]string]
}

// NewDomains 创建别名列表
func NewDomains(hosts ...string) *Domains {
	d := &Domains{}
	d.Set(hosts)
	return d
}

// Set 整体替换列表
func (d *Domains) Set(hosts []string) {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" || slices.Contains(out, h) {
			continue
		}
		out = append(out, h)
	}
	d.list.Store(&out)
}

// List 返回当前列表副本
func (d *Domains) List() []string {
	p := d.list.Load()
	if p == nil {
		return nil
	}
	return slices.Clone(*p)
}

// Contains 判断主机名是否为别名
func (d *Domains) Contains(hostname string) bool {
	if d == nil {
		return false
	}
	p := d.list.Load()
	if p == nil {
		return false
	}
	return slices.Contains(*p, strings.ToLower(hostname))
}
