package cli

import (
	"fmt"
	"strings"

	"cdpaction/pkg/action"
	"cdpaction/pkg/traffic"

	"github.com/spf13/cobra"
)

// noAction 未命中时的输出
const noAction = "未识别到动作"

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "离线分类单个请求，输出将要投递的消息",
	Args:  cobra.NoArgs,
	RunE:  runClassify,
}

func init() {
	classifyCmd.Flags().String("url", "", "请求 URL")
	classifyCmd.Flags().StringP("method", "X", "GET", "HTTP 方法")
	classifyCmd.Flags().StringP("body", "d", "", "请求体")
	classifyCmd.Flags().StringArrayP("form", "F", nil, "表单字段 key=value，可重复")
	classifyCmd.Flags().String("stage", string(action.StageBefore), "阶段 before|completed")
	_ = classifyCmd.MarkFlagRequired("url")
}

// requestFromFlags 按参数构造请求
func requestFromFlags(cmd *cobra.Command) (*traffic.Request, action.Stage, error) {
	rawURL, _ := cmd.Flags().GetString("url")
	method, _ := cmd.Flags().GetString("method")
	body, _ := cmd.Flags().GetString("body")
	fields, _ := cmd.Flags().GetStringArray("form")
	stage, _ := cmd.Flags().GetString("stage")

	if rawURL == "" {
		return nil, "", fmt.Errorf("缺少 --url")
	}
	st := action.Stage(stage)
	if st != action.StageBefore && st != action.StageCompleted {
		return nil, "", fmt.Errorf("未知阶段 %q", stage)
	}

	req := traffic.NewRequest(method, rawURL)
	if body != "" {
		req.Body = []byte(body)
	}
	if len(fields) > 0 {
		req.Form = make(map[string][]string, len(fields))
		for _, f := range fields {
			k, v, ok := strings.Cut(f, "=")
			if !ok {
				return nil, "", fmt.Errorf("表单字段格式应为 key=value: %q", f)
			}
			req.Form[k] = append(req.Form[k], v)
		}
		req.Headers.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req, st, nil
}

func runClassify(cmd *cobra.Command, _ []string) error {
	req, stage, err := requestFromFlags(cmd)
	if err != nil {
		return err
	}
	svc, closeStore, err := newService(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	svc.RefreshAliases(cmd.Context())
	msg, err := svc.Classify(cmd.Context(), req, stage)
	if err != nil {
		return err
	}
	if msg == nil {
		fmt.Fprintln(cmd.OutOrStdout(), noAction)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(msg))
	return nil
}
