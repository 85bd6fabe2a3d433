// Package service 组装配置、设置存储、分类注册表与 CDP 管理器，对外提供统一的生命周期。
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"cdpaction/internal/cdp"
	"cdpaction/internal/config"
	"cdpaction/internal/logger"
	"cdpaction/internal/platform"
	"cdpaction/internal/relay"
	"cdpaction/internal/storage"
	"cdpaction/pkg/action"
	"cdpaction/pkg/model"
	"cdpaction/pkg/traffic"
)

const (
	// DiscoverInterval 扫描新标签页的周期
	DiscoverInterval = 2 * time.Second
	// SettingsPollInterval 检查其他进程写入设置的周期
	SettingsPollInterval = time.Second
)

// ErrAlreadyStarted 服务已在运行
var ErrAlreadyStarted = errors.New("service already started")

// Service 服务实现
type Service struct {
	cfg       *config.Config
	log       logger.Logger
	store     *storage.Store
	platforms *platform.Registry
	mgr       *cdp.Manager

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New 创建服务；store 为空时别名列表恒为空
func New(cfg *config.Config, l logger.Logger, store *storage.Store) *Service {
	if l == nil {
		l = logger.NewNop()
	}
	var settings platform.Settings
	if store != nil {
		settings = store
	}
	platforms := platform.NewRegistry(settings, l)
	return &Service{
		cfg:       cfg,
		log:       l,
		store:     store,
		platforms: platforms,
		mgr: cdp.New(cdp.Options{
			DevToolsURL:    cfg.DevToolsURL,
			URLPatterns:    cfg.URLPatterns,
			ProcessTimeout: cfg.ProcessTimeout(),
			PollInterval:   cfg.PollInterval(),
		}, platforms, l),
	}
}

// Start 刷新别名列表、订阅设置变更并开始附加标签页
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	s.platforms.RefreshAliases(ctx)
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	var wg sync.WaitGroup
	if s.store != nil {
		changes, unsubscribe := s.store.Subscribe()
		wg.Add(2)
		go func() {
			defer wg.Done()
			defer unsubscribe()
			s.watchSettings(ctx, changes)
		}()
		go func() {
			defer wg.Done()
			s.store.Watch(ctx, SettingsPollInterval)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.mgr.Watch(ctx, DiscoverInterval)
	}()
	go func() {
		wg.Wait()
		close(s.done)
	}()

	s.log.Info("服务已启动", "devtools", s.cfg.DevToolsURL)
	return nil
}

// watchSettings 设置变更时在带外刷新别名列表
func (s *Service) watchSettings(ctx context.Context, changes <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case key, ok := <-changes:
			if !ok {
				return
			}
			if key == storage.SettingsKey {
				s.platforms.RefreshAliases(ctx)
			}
		}
	}
}

// Stop 停止服务并分离全部标签页
func (s *Service) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.mgr.Close()
	s.log.Info("服务已停止")
}

// Targets 列出浏览器中的页面目标
func (s *Service) Targets(ctx context.Context) ([]model.TargetInfo, error) {
	return s.mgr.ListTargets(ctx)
}

// RefreshAliases 立即刷新别名列表
func (s *Service) RefreshAliases(ctx context.Context) {
	s.platforms.RefreshAliases(ctx)
}

// Classify 离线分类单个请求，返回将要投递的消息 JSON；未命中时返回 nil
func (s *Service) Classify(_ context.Context, req *traffic.Request, stage action.Stage) ([]byte, error) {
	reg := s.platforms.Fork()
	res := reg.Detect(req, stage)
	if res == nil {
		return nil, nil
	}
	return relay.Encode(relay.Compose(req.Hostname(), reg, res))
}

// Platforms 根分类注册表
func (s *Service) Platforms() *platform.Registry { return s.platforms }
