// Package session 管理浏览上下文：每个浏览器目标对应一个单线程的检测环境。
package session

import (
	"sync"

	"cdpaction/internal/logger"
	"cdpaction/pkg/model"
)

// Manager 浏览上下文管理器
type Manager struct {
	mu       sync.RWMutex
	contexts map[model.TargetID]*Context
	log      logger.Logger
}

// NewManager 创建管理器
func NewManager(l logger.Logger) *Manager {
	if l == nil {
		l = logger.NewNop()
	}
	return &Manager{
		contexts: make(map[model.TargetID]*Context),
		log:      l,
	}
}

// Create 创建并注册上下文；同一目标已存在时先关闭旧上下文
func (m *Manager) Create(target model.TargetID, opts Options) *Context {
	if opts.Log == nil {
		opts.Log = m.log
	}
	c := newContext(target, opts)

	m.mu.Lock()
	old := m.contexts[target]
	m.contexts[target] = c
	m.mu.Unlock()

	if old != nil {
		old.close()
	}
	m.log.Info("创建浏览上下文", "target", string(target), "context", c.ID)
	return c
}

// Get 获取上下文
func (m *Manager) Get(target model.TargetID) (*Context, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contexts[target]
	return c, ok
}

// Delete 关闭并移除上下文
func (m *Manager) Delete(target model.TargetID) {
	m.mu.Lock()
	c, ok := m.contexts[target]
	delete(m.contexts, target)
	m.mu.Unlock()

	if !ok {
		return
	}
	c.close()
	m.log.Info("销毁浏览上下文", "target", string(target), "context", c.ID)
}

// List 返回所有上下文
func (m *Manager) List() []*Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]*Context, 0, len(m.contexts))
	for _, c := range m.contexts {
		list = append(list, c)
	}
	return list
}

// Close 关闭全部上下文
func (m *Manager) Close() {
	m.mu.Lock()
	all := m.contexts
	m.contexts = make(map[model.TargetID]*Context)
	m.mu.Unlock()

	for _, c := range all {
		c.close()
	}
}
