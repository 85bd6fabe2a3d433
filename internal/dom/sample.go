package dom

import (
	"context"
	"regexp"
	"strconv"
)

// Sample 一次计数采样：Known 为 false 表示不确定
type Sample struct {
	Count int
	Known bool
}

// Indeterminate 不确定采样
var Indeterminate = Sample{}

// Counted 确定的计数采样，负数视为不确定
func Counted(n int) Sample {
	if n < 0 {
		return Indeterminate
	}
	return Sample{Count: n, Known: true}
}

// EdgeTrigger 高到零的边沿触发器
//
// 只有在上一次确定计数大于 0 且本次确定计数为 0 时触发；
// 不确定采样直接跳过，不会覆盖已有基线。
type EdgeTrigger struct {
	prev Sample
}

// Observe 记录一次采样，返回是否触发
func (e *EdgeTrigger) Observe(s Sample) bool {
	if !s.Known {
		return false
	}
	fired := e.prev.Known && e.prev.Count > 0 && s.Count == 0
	e.prev = s
	return fired
}

// Baseline 当前基线
func (e *EdgeTrigger) Baseline() Sample { return e.prev }

// Reset 清空基线
func (e *EdgeTrigger) Reset() { e.prev = Indeterminate }

// FirstExisting 返回第一个存在匹配元素的选择器
func FirstExisting(ctx context.Context, doc Document, selectors []string) (string, bool) {
	for _, sel := range selectors {
		n, err := doc.Count(ctx, sel)
		if err == nil && n > 0 {
			return sel, true
		}
	}
	return "", false
}

var reDigits = regexp.MustCompile(`\d+`)

// CountFromLabel 从文本中提取第一个数字；无数字视为 0
func CountFromLabel(label string) int {
	m := reDigits.FindString(label)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}
