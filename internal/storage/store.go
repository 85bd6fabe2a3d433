// Package storage 持久化设置项。
//
// 设置以 JSON 文本按命名空间键存放在 SQLite 中，自建 GitLab 域名列表即
// eldenGithubSettings 键下的 customGitLabDomains 数组。
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	ilog "cdpaction/internal/logger"

	"github.com/glebarez/sqlite"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// SettingsKey 设置命名空间键
const SettingsKey = "eldenGithubSettings"

const domainsPath = "customGitLabDomains"

// ErrInvalidDomain 域名格式不合法
var ErrInvalidDomain = errors.New("invalid domain")

var reDomain = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// Setting 单个设置项
type Setting struct {
	Key       string `gorm:"primaryKey;size:128"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// Store 设置存储
type Store struct {
	db  *gorm.DB
	log ilog.Logger

	mu     sync.Mutex // 串行化读改写
	subsMu sync.Mutex
	subs   map[int]chan string
	nextID int

	seenMu sync.Mutex
	seen   map[string]time.Time // 各键最近一次已知的更新时间
}

// Open 打开（必要时创建）设置库
func Open(dsn, prefix string, l ilog.Logger) (*Store, error) {
	if l == nil {
		l = ilog.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(withBusyTimeout(dsn)), &gorm.Config{
		Logger:         NewGormLogger(l).LogMode(logger.Warn),
		NamingStrategy: schema.NamingStrategy{TablePrefix: prefix},
	})
	if err != nil {
		return nil, fmt.Errorf("打开设置库失败: %w", err)
	}
	if err := db.AutoMigrate(&Setting{}); err != nil {
		return nil, fmt.Errorf("迁移设置表失败: %w", err)
	}
	s := &Store{
		db:   db,
		log:  l,
		subs: make(map[int]chan string),
		seen: make(map[string]time.Time),
	}
	// 以打开时的状态为基线，Watch 只报告之后的变更
	if _, err := s.changedKeys(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Close 关闭底层连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Get 读取设置原文；不存在时返回空字符串
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var row Setting
	err := s.db.WithContext(ctx).Where(&Setting{Key: key}).Take(&row).Error
	if isNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("读取设置 %s 失败: %w", key, err)
	}
	return row.Value, nil
}

// Put 写入设置原文并通知订阅者
func (s *Store) Put(ctx context.Context, key, value string) error {
	row := Setting{Key: key, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("写入设置 %s 失败: %w", key, err)
	}
	s.seenMu.Lock()
	s.seen[key] = row.UpdatedAt
	s.seenMu.Unlock()
	s.notify(key)
	return nil
}

// CustomDomains 读取自建 GitLab 域名列表
func (s *Store) CustomDomains(ctx context.Context) ([]string, error) {
	raw, err := s.Get(ctx, SettingsKey)
	if err != nil {
		return nil, err
	}
	return parseDomains(raw), nil
}

// SetCustomDomains 覆盖域名列表，保留同一键下的其他字段
func (s *Store) SetCustomDomains(ctx context.Context, domains []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setDomains(ctx, domains)
}

// AddCustomDomain 校验并追加域名；已存在时返回 false
func (s *Store) AddCustomDomain(ctx context.Context, domain string) (bool, error) {
	domain = NormalizeDomain(domain)
	if !ValidDomain(domain) {
		return false, fmt.Errorf("%w: %q", ErrInvalidDomain, domain)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.CustomDomains(ctx)
	if err != nil {
		return false, err
	}
	if slices.Contains(cur, domain) {
		return false, nil
	}
	return true, s.setDomains(ctx, append(cur, domain))
}

// RemoveCustomDomain 移除域名；不存在时返回 false
func (s *Store) RemoveCustomDomain(ctx context.Context, domain string) (bool, error) {
	domain = NormalizeDomain(domain)

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.CustomDomains(ctx)
	if err != nil {
		return false, err
	}
	next := slices.DeleteFunc(slices.Clone(cur), func(d string) bool { return d == domain })
	if len(next) == len(cur) {
		return false, nil
	}
	return true, s.setDomains(ctx, next)
}

func (s *Store) setDomains(ctx context.Context, domains []string) error {
	raw, err := s.Get(ctx, SettingsKey)
	if err != nil {
		return err
	}
	if !gjson.Valid(raw) {
		raw = "{}"
	}
	if domains == nil {
		domains = []string{}
	}
	raw, err = sjson.Set(raw, domainsPath, domains)
	if err != nil {
		return fmt.Errorf("编码域名列表失败: %w", err)
	}
	return s.Put(ctx, SettingsKey, raw)
}

// Subscribe 订阅设置变更，通道中收到变更的键；返回取消订阅函数
func (s *Store) Subscribe() (<-chan string, func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.nextID++
	id := s.nextID
	ch := make(chan string, 8)
	s.subs[id] = ch
	return ch, func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// Watch 周期检查设置行的更新时间，把其他进程（如 domains 命令）的写入转为变更通知；
// ctx 结束时返回
func (s *Store) Watch(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		keys, err := s.changedKeys(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Err(err, "检查设置变更失败")
			}
			continue
		}
		for _, key := range keys {
			s.log.Debug("检测到外部设置变更", "key", key)
			s.notify(key)
		}
	}
}

// changedKeys 返回更新时间与上次所见不同的键，并记下新的更新时间
func (s *Store) changedKeys(ctx context.Context) ([]string, error) {
	var rows []Setting
	if err := s.db.WithContext(ctx).Select([]string{"key", "updated_at"}).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("读取设置更新时间失败: %w", err)
	}

	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	var out []string
	for _, row := range rows {
		if prev, ok := s.seen[row.Key]; ok && prev.Equal(row.UpdatedAt) {
			continue
		}
		s.seen[row.Key] = row.UpdatedAt
		out = append(out, row.Key)
	}
	return out, nil
}

func (s *Store) notify(key string) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- key:
		default:
			s.log.Warn("设置变更通知积压，丢弃", "key", key)
		}
	}
}

// NormalizeDomain 去除首尾空白并转为小写
func NormalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}

// ValidDomain 校验主机名语法
func ValidDomain(domain string) bool {
	return domain != "" && reDomain.MatchString(domain)
}

func parseDomains(raw string) []string {
	if raw == "" {
		return nil
	}
	arr := gjson.Get(raw, domainsPath).Array()
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if v.Type == gjson.String && v.Str != "" {
			out = append(out, v.Str)
		}
	}
	return out
}

// withBusyTimeout 多个进程共用同一库文件时，写锁冲突等待而不是立即失败
func withBusyTimeout(dsn string) string {
	if strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)"
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
