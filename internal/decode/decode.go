package decode

import (
	"net/http"
	"strings"

	"cdpaction/pkg/traffic"

	"github.com/tidwall/gjson"
)

// Body 解析请求体
//
// 仅处理带字节体的 POST：按 UTF-8 解码后尝试解析 JSON，
// 解析失败则原样返回文本；其他情况返回 nil。从不报错。
func Body(req *traffic.Request) any {
	if req == nil || req.Method != http.MethodPost || len(req.Body) == 0 {
		return nil
	}
	text := strings.ToValidUTF8(string(req.Body), "\uFFFD")
	if !gjson.Valid(text) {
		return text
	}
	return gjson.Parse(text).Value()
}

// Object 将解析结果断言为对象
func Object(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok && m != nil
}

// Form 将多值表单转换为字面量：单值字段折叠为标量，多值字段保留为有序序列
func Form(fields map[string][]string) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, vs := range fields {
		if len(vs) == 1 {
			out[k] = vs[0]
			continue
		}
		seq := make([]any, len(vs))
		for i, v := range vs {
			seq[i] = v
		}
		out[k] = seq
	}
	return out
}
