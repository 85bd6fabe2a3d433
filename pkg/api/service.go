package api

import (
	"context"

	"cdpaction/internal/config"
	"cdpaction/internal/logger"
	"cdpaction/internal/service"
	"cdpaction/internal/storage"
	"cdpaction/pkg/action"
	"cdpaction/pkg/model"
	"cdpaction/pkg/traffic"
)

// Service 服务接口
type Service interface {
	// Start 开始附加标签页并识别动作
	Start(ctx context.Context) error

	// Stop 停止并分离全部标签页
	Stop()

	// Targets 列出页面目标
	Targets(ctx context.Context) ([]model.TargetInfo, error)

	// RefreshAliases 重新读取自建 GitLab 域名
	RefreshAliases(ctx context.Context)

	// Classify 离线分类单个请求，返回消息 JSON；未命中时为 nil
	Classify(ctx context.Context, req *traffic.Request, stage action.Stage) ([]byte, error)
}

// NewService 创建并返回服务接口实现
func NewService(cfg *config.Config, l logger.Logger, store *storage.Store) Service {
	return service.New(cfg, l, store)
}
