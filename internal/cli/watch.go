package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cdpaction/internal/logger"
	"cdpaction/pkg/api"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "附加浏览器并持续识别动作，直到收到中断信号",
	RunE:  runWatch,
}

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "列出浏览器中的页面目标",
	RunE:  runTargets,
}

func init() {
	watchCmd.Flags().String("devtools", "", "DevTools 地址，覆盖配置文件")
	targetsCmd.Flags().String("devtools", "", "DevTools 地址，覆盖配置文件")
}

// newService 按命令参数组装服务；返回的 close 负责释放存储
func newService(cmd *cobra.Command) (api.Service, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if devtools, _ := cmd.Flags().GetString("devtools"); devtools != "" {
		cfg.DevToolsURL = devtools
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	l := logger.New(cfg.LoggerOptions())
	store, err := openStore(cfg, l)
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			l.Err(err, "关闭设置存储失败")
		}
	}
	return api.NewService(cfg, l, store), closeStore, nil
}

func runWatch(cmd *cobra.Command, _ []string) error {
	svc, closeStore, err := newService(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("启动服务失败: %w", err)
	}
	<-ctx.Done()
	svc.Stop()
	return nil
}

func runTargets(cmd *cobra.Command, _ []string) error {
	svc, closeStore, err := newService(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	targets, err := svc.Targets(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(targets) == 0 {
		fmt.Fprintln(out, "没有页面目标")
		return nil
	}
	for _, t := range targets {
		fmt.Fprintf(out, "%s\t%s\t%s\n", t.ID, t.URL, t.Title)
	}
	return nil
}
