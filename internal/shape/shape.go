// Package shape 提供键值树的结构包含判断。
//
// 同一类事件负载往往共享一组键，但周边字段各不相同，精确相等过于严格，
// 因此分类器以"候选形状"描述期望的键，只要求观测值包含这些键。
package shape

import "reflect"

// Match 判断 observed 是否在结构上包含 candidate
//
// 规则：
//   - candidate 的每个键都必须存在于 observed
//   - candidate 值为空字符串或 nil 时只要求键存在
//   - 其他基本类型值要求相等（数值按 float64 比较）
//   - 嵌套对象递归使用同一规则
//   - 数组等复合叶子值只做相等比较，不做包含判断
func Match(candidate, observed map[string]any) bool {
	if candidate == nil || observed == nil {
		return false
	}
	for k, want := range candidate {
		got, ok := observed[k]
		if !ok {
			return false
		}
		if !matchValue(want, got) {
			return false
		}
	}
	return true
}

func matchValue(want, got any) bool {
	switch w := want.(type) {
	case nil:
		return true
	case string:
		if w == "" {
			return true
		}
		g, ok := got.(string)
		return ok && g == w
	case map[string]any:
		g, ok := got.(map[string]any)
		return ok && Match(w, g)
	case bool:
		g, ok := got.(bool)
		return ok && g == w
	}
	if wf, ok := toFloat(want); ok {
		gf, ok := toFloat(got)
		return ok && gf == wf
	}
	return reflect.DeepEqual(want, got)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
