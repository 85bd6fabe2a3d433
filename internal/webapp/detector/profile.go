package detector

import (
	_ "embed"
	"fmt"
	"slices"

	"cdpaction/internal/dom"
	"cdpaction/pkg/action"

	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var profilesYAML []byte

// Keywords 由关键词生成的点击标记
type Keywords struct {
	Attr  string   `yaml:"attr"`
	Words []string `yaml:"words"`
}

// Profile 单个 Web 应用的主机、文案、延迟、选择器与点击标记
type Profile struct {
	DisplayName   string                         `yaml:"display_name"`
	Hosts         []string                       `yaml:"hosts"`
	Labels        map[action.Action]string       `yaml:"labels"`
	Delays        map[action.Action]int          `yaml:"delays"`
	ClickMarkers  map[action.Action][]dom.Marker `yaml:"click_markers"`
	ClickKeywords map[action.Action]Keywords     `yaml:"click_keywords"`
	Selectors     map[string][]string            `yaml:"selectors"`
}

// MatchesHost 判断主机名是否属于该应用
func (p Profile) MatchesHost(hostname string) bool {
	return slices.Contains(p.Hosts, hostname)
}

// LabelFor 返回动作文案，缺失时回退为动作标识
func (p Profile) LabelFor(a action.Action) string {
	return action.Labels(p.Labels).For(a)
}

// Result 按延迟表构造检测结果
func (p Profile) Result(a action.Action) *action.Result {
	return action.Delays(p.Delays).Result(a)
}

// Markers 返回动作的全部点击标记（显式标记与关键词展开）
func (p Profile) Markers(a action.Action) []dom.Marker {
	out := slices.Clone(p.ClickMarkers[a])
	if kw, ok := p.ClickKeywords[a]; ok {
		out = append(out, dom.KeywordMarkers(kw.Attr, kw.Words...)...)
	}
	return out
}

// Select 返回命名选择器列表
func (p Profile) Select(name string) []string {
	return p.Selectors[name]
}

// LoadProfiles 解析配置；未知动作视为错误，保证词表封闭
func LoadProfiles(data []byte) (map[string]Profile, error) {
	var out map[string]Profile
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("解析 Web 应用配置失败: %w", err)
	}
	for name, p := range out {
		if err := firstErr(
			checkActions(name, p.Labels),
			checkActions(name, p.Delays),
			checkActions(name, p.ClickMarkers),
			checkActions(name, p.ClickKeywords),
		); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Builtin 返回内置配置中的指定应用
func Builtin(name string) Profile {
	profiles, err := LoadProfiles(profilesYAML)
	if err != nil {
		panic(err)
	}
	p, ok := profiles[name]
	if !ok {
		panic(fmt.Sprintf("detector: 内置配置缺少 %q", name))
	}
	return p
}

func checkActions[V any](name string, m map[action.Action]V) error {
	for a := range m {
		if !a.Valid() {
			return fmt.Errorf("%s: %w: %q", name, action.ErrUnknownAction, a)
		}
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
