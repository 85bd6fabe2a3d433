package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cdpaction/internal/dom"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/mafredri/cdp/protocol/runtime"
	"github.com/tidwall/gjson"
)

// BindingName 点击上报使用的运行时绑定名
const BindingName = "__cdpactionClick"

// ErrInvalidSelector 页面拒绝了选择器
var ErrInvalidSelector = errors.New("invalid selector")

// clickHook 在文档根节点注册捕获阶段监听，上报目标及至多 3 层祖先
const clickHook = `(() => {
  const binding = %[1]s;
  const prev = window[binding + "Listener"];
  if (prev) document.removeEventListener("click", prev, true);
  const snap = (el) => ({
    tag: el.tagName.toLowerCase(),
    class: typeof el.className === "string" ? el.className : (el.getAttribute("class") || ""),
    text: (el.innerText || el.textContent || "").trim().slice(0, 64),
    attrs: Object.fromEntries(Array.from(el.attributes, (a) => [a.name, a.value])),
  });
  const listener = (e) => {
    const target = e.target instanceof Element ? e.target : null;
    const path = [];
    for (let el = target; el && path.length < %[2]d; el = el.parentElement) path.push(snap(el));
    if (path.length === 0 || typeof window[binding] !== "function") return;
    window[binding](JSON.stringify({ path, dialog: !!target.closest('[role="dialog"]') }));
  };
  window[binding + "Listener"] = listener;
  document.addEventListener("click", listener, true);
})()`

const clickUnhook = `(() => {
  const binding = %[1]s;
  const prev = window[binding + "Listener"];
  if (prev) document.removeEventListener("click", prev, true);
  delete window[binding + "Listener"];
})()`

// InstallClickHook 让每个新文档在页面脚本之前装好点击监听
//
// 导航后通过 Runtime.evaluate 补注入可能落在旧文档的执行上下文中，
// 新文档脚本保证监听总是存在；没有回调时 Dispatch 直接丢弃上报。
func InstallClickHook(ctx context.Context, pg cdp.Page) error {
	_, err := pg.AddScriptToEvaluateOnNewDocument(ctx, page.NewAddScriptToEvaluateOnNewDocumentArgs(hookScript()))
	if err != nil {
		return fmt.Errorf("注册新文档点击监听失败: %w", err)
	}
	return nil
}

func hookScript() string {
	return fmt.Sprintf(clickHook, jsString(BindingName), dom.MaxAncestors+1)
}

// Document 基于 Runtime.evaluate 的 dom.Document 实现
//
// 点击回调只在 Dispatch 中触发，调用方需在所属上下文的调度循环中调用 Dispatch。
type Document struct {
	rt        cdp.Runtime
	listeners map[int]func(dom.Click)
	nextID    int
}

// NewDocument 创建文档视图
func NewDocument(rt cdp.Runtime) *Document {
	return &Document{rt: rt, listeners: make(map[int]func(dom.Click))}
}

func (d *Document) eval(ctx context.Context, expr string) (gjson.Result, error) {
	reply, err := d.rt.Evaluate(ctx, runtime.NewEvaluateArgs(expr).SetReturnByValue(true))
	if err != nil {
		return gjson.Result{}, err
	}
	if reply.ExceptionDetails != nil {
		return gjson.Result{}, fmt.Errorf("页面脚本异常: %s", reply.ExceptionDetails.Text)
	}
	return gjson.ParseBytes(reply.Result.Value), nil
}

// Location 当前页面地址
func (d *Document) Location(ctx context.Context) (string, error) {
	res, err := d.eval(ctx, "location.href")
	if err != nil {
		return "", err
	}
	return res.String(), nil
}

// Count 匹配选择器的元素数量
func (d *Document) Count(ctx context.Context, selector string) (int, error) {
	res, err := d.eval(ctx, fmt.Sprintf(
		`(() => { try { return document.querySelectorAll(%s).length } catch (e) { return -1 } })()`,
		jsString(selector)))
	if err != nil {
		return 0, err
	}
	n := int(res.Int())
	if n < 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidSelector, selector)
	}
	return n, nil
}

// Attribute 第一个匹配元素的属性值
func (d *Document) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	res, err := d.eval(ctx, fmt.Sprintf(
		`(() => { try { const el = document.querySelector(%s); return el ? el.getAttribute(%s) : null } catch (e) { return null } })()`,
		jsString(selector), jsString(name)))
	if err != nil {
		return "", false, err
	}
	if res.Type != gjson.String {
		return "", false, nil
	}
	return res.Str, true, nil
}

// ChildCount 第一个匹配元素的子元素数量
func (d *Document) ChildCount(ctx context.Context, selector string) (int, bool, error) {
	res, err := d.eval(ctx, fmt.Sprintf(
		`(() => { try { const el = document.querySelector(%s); return el ? el.children.length : null } catch (e) { return null } })()`,
		jsString(selector)))
	if err != nil {
		return 0, false, err
	}
	if res.Type != gjson.Number {
		return 0, false, nil
	}
	return int(res.Int()), true, nil
}

// OnClick 注入点击监听并登记回调
func (d *Document) OnClick(fn func(dom.Click)) (func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultEvalTimeout)
	defer cancel()
	if _, err := d.eval(ctx, hookScript()); err != nil {
		return nil, fmt.Errorf("注入点击监听失败: %w", err)
	}

	d.nextID++
	id := d.nextID
	d.listeners[id] = fn
	return func() {
		if _, ok := d.listeners[id]; !ok {
			return
		}
		delete(d.listeners, id)
		if len(d.listeners) > 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), defaultEvalTimeout)
		defer cancel()
		// 页面可能已经销毁，失败无需处理
		_, _ = d.eval(ctx, fmt.Sprintf(clickUnhook, jsString(BindingName)))
	}, nil
}

// Dispatch 解析绑定上报的点击并通知所有回调
func (d *Document) Dispatch(payload string) {
	c, ok := ParseClick(payload)
	if !ok {
		return
	}
	for _, fn := range d.listeners {
		fn(c)
	}
}

// ParseClick 解析点击上报
func ParseClick(payload string) (dom.Click, bool) {
	if !gjson.Valid(payload) {
		return dom.Click{}, false
	}
	root := gjson.Parse(payload)
	var c dom.Click
	c.Dialog = root.Get("dialog").Bool()
	root.Get("path").ForEach(func(_, n gjson.Result) bool {
		node := dom.Node{
			Tag:   n.Get("tag").String(),
			Class: n.Get("class").String(),
			Text:  n.Get("text").String(),
		}
		if attrs := n.Get("attrs"); attrs.IsObject() {
			node.Attrs = make(map[string]string)
			attrs.ForEach(func(k, v gjson.Result) bool {
				node.Attrs[k.String()] = v.String()
				return true
			})
		}
		c.Path = append(c.Path, node)
		return true
	})
	return c, len(c.Path) > 0
}

// jsString 生成 JS 字符串字面量
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

var _ dom.Document = (*Document)(nil)
