package model

// TargetID 浏览器目标（标签页）标识
type TargetID string

// TargetInfo 可附加的浏览器目标
type TargetInfo struct {
	ID       TargetID `json:"id"`
	Type     string   `json:"type"`
	URL      string   `json:"url"`
	Title    string   `json:"title"`
	Attached bool     `json:"attached"`
}
