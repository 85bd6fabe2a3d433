package cli

import (
	"fmt"

	"cdpaction/internal/logger"
	"cdpaction/internal/storage"

	"github.com/spf13/cobra"
)

var domainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "管理自建 GitLab 域名",
}

var domainsListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出已登记的域名",
	Args:  cobra.NoArgs,
	RunE:  runDomainsList,
}

var domainsAddCmd = &cobra.Command{
	Use:   "add <domain>",
	Short: "登记域名",
	Args:  cobra.ExactArgs(1),
	RunE:  runDomainsAdd,
}

var domainsRemoveCmd = &cobra.Command{
	Use:   "remove <domain>",
	Short: "移除域名",
	Args:  cobra.ExactArgs(1),
	RunE:  runDomainsRemove,
}

func init() {
	domainsCmd.AddCommand(domainsListCmd, domainsAddCmd, domainsRemoveCmd)
}

// withStore 打开存储执行 fn 后关闭
func withStore(cmd *cobra.Command, fn func(*storage.Store) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openStore(cfg, logger.NewNop())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func runDomainsList(cmd *cobra.Command, _ []string) error {
	return withStore(cmd, func(store *storage.Store) error {
		domains, err := store.CustomDomains(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(domains) == 0 {
			fmt.Fprintln(out, "没有已登记的域名")
			return nil
		}
		for _, d := range domains {
			fmt.Fprintln(out, d)
		}
		return nil
	})
}

func runDomainsAdd(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(store *storage.Store) error {
		added, err := store.AddCustomDomain(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		domain := storage.NormalizeDomain(args[0])
		if added {
			fmt.Fprintf(cmd.OutOrStdout(), "已登记 %s\n", domain)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s 已存在\n", domain)
		}
		return nil
	})
}

func runDomainsRemove(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(store *storage.Store) error {
		removed, err := store.RemoveCustomDomain(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		domain := storage.NormalizeDomain(args[0])
		if removed {
			fmt.Fprintf(cmd.OutOrStdout(), "已移除 %s\n", domain)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s 未登记\n", domain)
		}
		return nil
	})
}
