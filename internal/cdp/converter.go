package cdp

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"strings"

	"cdpaction/pkg/action"
	"cdpaction/pkg/traffic"

	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/tidwall/gjson"
)

// maxFormParts 解析 multipart 表单时的字段上限
const maxFormParts = 256

// ToRequest 将 CDP 拦截事件转换为中立请求模型，同时给出所处阶段
func ToRequest(ev *fetch.RequestPausedReply) (*traffic.Request, action.Stage) {
	req := traffic.NewRequest(ev.Request.Method, ev.Request.URL)
	req.ID = string(ev.RequestID)

	if len(ev.Request.Headers) > 0 {
		gjson.ParseBytes(ev.Request.Headers).ForEach(func(k, v gjson.Result) bool {
			req.Headers.Set(k.String(), v.String())
			return true
		})
	}

	if ev.Request.PostData != nil {
		req.Body = []byte(*ev.Request.PostData)
		req.Form = parseForm(req.Headers.Get("content-type"), req.Body)
	}

	return req, stageOf(ev)
}

// stageOf 带响应状态或错误原因的事件属于完成阶段
func stageOf(ev *fetch.RequestPausedReply) action.Stage {
	if ev.ResponseStatusCode != nil || ev.ResponseErrorReason != nil {
		return action.StageCompleted
	}
	return action.StageBefore
}

// parseForm 解析表单编码的请求体；非表单请求返回 nil
func parseForm(contentType string, body []byte) map[string][]string {
	if contentType == "" || len(body) == 0 {
		return nil
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil
	}
	switch mediaType {
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil
		}
		return values
	case "multipart/form-data":
		return parseMultipart(body, params["boundary"])
	}
	return nil
}

func parseMultipart(body []byte, boundary string) map[string][]string {
	if boundary == "" {
		return nil
	}
	out := make(map[string][]string)
	r := multipart.NewReader(bytes.NewReader(body), boundary)
	for i := 0; i < maxFormParts; i++ {
		part, err := r.NextPart()
		if err != nil {
			break
		}
		name := part.FormName()
		if name == "" || part.FileName() != "" {
			continue
		}
		data, err := io.ReadAll(part)
		if err != nil {
			break
		}
		out[name] = append(out[name], strings.ToValidUTF8(string(data), "�"))
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
