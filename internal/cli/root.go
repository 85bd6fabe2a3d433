// Package cli 命令行入口：watch 附加浏览器，domains 管理自建 GitLab 域名，
// classify 离线分类单个请求，targets 列出页面目标。
package cli

import (
	"fmt"

	"cdpaction/internal/config"
	"cdpaction/internal/logger"
	"cdpaction/internal/storage"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cdpaction",
	Short: "识别浏览器中完成的用户动作",
	Long: `cdpaction 通过 Chrome DevTools Protocol 附加到浏览器标签页，
从网络请求和页面状态中识别已完成的动作（合并请求、发送邮件、清空收件箱等），
并把结果以 cdpaction:action 事件投递回页面。`,
	Example: `  # 附加到本地调试端口上的全部页面
  cdpaction watch --devtools http://127.0.0.1:9222

  # 登记自建 GitLab 域名
  cdpaction domains add git.example.com

  # 离线分类一个请求
  cdpaction classify --method PUT --url 'https://gitlab.com/g/p/-/merge_requests/1?merge_request[state_event]=close'`,
	SilenceUsage: true,
}

// Execute 执行根命令
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "cdpaction.json", "配置文件路径")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(targetsCmd)
	rootCmd.AddCommand(domainsCmd)
	rootCmd.AddCommand(classifyCmd)
}

// loadConfig 按 --config 加载配置；未定义该参数时只使用默认值与环境变量
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	return cfg, nil
}

// openStore 打开设置存储
func openStore(cfg *config.Config, l logger.Logger) (*storage.Store, error) {
	store, err := storage.Open(cfg.Sqlite.DSN, cfg.Sqlite.Prefix, l)
	if err != nil {
		return nil, fmt.Errorf("打开设置存储失败: %w", err)
	}
	return store, nil
}
