package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestZerologFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "debug").With("target", "T1")

	l.Info("检测到动作", "action", "prMerged", "delay", 3000)

	line := buf.String()
	assert.Equal(t, "info", gjson.Get(line, "level").String())
	assert.Equal(t, "检测到动作", gjson.Get(line, "message").String())
	assert.Equal(t, "T1", gjson.Get(line, "target").String())
	assert.Equal(t, "prMerged", gjson.Get(line, "action").String())
	assert.Equal(t, int64(3000), gjson.Get(line, "delay").Int())
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn")

	l.Debug("ignored")
	l.Info("ignored")
	assert.Zero(t, buf.Len())

	l.Err(errors.New("boom"), "读取设置失败")
	assert.Equal(t, "boom", gjson.Get(buf.String(), "error").String())
}

func TestNop(t *testing.T) {
	l := NewNop()
	assert.NotPanics(t, func() {
		l.With("k", "v").Err(errors.New("x"), "msg")
	})
}
