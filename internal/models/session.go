// internal/models/session.go
package models

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Corphon/CoffeeWithCinema/internal/config"
)

// Section 生成结果中的一个部分
type Section string

const (
	SectionScreenplay  Section = "screenplay"
	SectionCharacters  Section = "characters"
	SectionSoundDesign Section = "sound_design"
)

// AllSections 固定的生成顺序
var AllSections = []Section{SectionScreenplay, SectionCharacters, SectionSoundDesign}

// ParseSection 解析部分名称，空字符串视为剧本
func ParseSection(s string) (Section, error) {
	switch sec := Section(strings.ToLower(strings.TrimSpace(s))); sec {
	case "":
		return SectionScreenplay, nil
	case SectionScreenplay, SectionCharacters, SectionSoundDesign:
		return sec, nil
	case "sound", "sounddesign", "sound-design":
		return SectionSoundDesign, nil
	}
	return "", fmt.Errorf("unknown section %q", s)
}

// Title 导出文档的标题
func (s Section) Title() string {
	switch s {
	case SectionCharacters:
		return "Character Profiles"
	case SectionSoundDesign:
		return "Sound Design Plan"
	default:
		return "Screenplay"
	}
}

// GenerationResult 一次完整生成的三个输出，整体替换，不做部分更新
type GenerationResult struct {
	Screenplay  string        `json:"screenplay"`
	Characters  string        `json:"characters"`
	SoundDesign string        `json:"sound_design"`
	StoryIdea   string        `json:"story_idea"`
	ModelName   string        `json:"model_name"`
	GeneratedAt time.Time     `json:"generated_at"`
	Duration    time.Duration `json:"duration"`
}

// Text 返回指定部分的文本
func (r *GenerationResult) Text(section Section) string {
	if r == nil {
		return ""
	}
	switch section {
	case SectionCharacters:
		return r.Characters
	case SectionSoundDesign:
		return r.SoundDesign
	default:
		return r.Screenplay
	}
}

// Set 设置指定部分的文本
func (r *GenerationResult) Set(section Section, text string) {
	switch section {
	case SectionCharacters:
		r.Characters = text
	case SectionSoundDesign:
		r.SoundDesign = text
	default:
		r.Screenplay = text
	}
}

// Session 单个用户的会话状态，会话之间互不共享
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.RWMutex
	settings  config.Settings
	storyIdea string
	result    *GenerationResult
	lastSeen  time.Time
	running   bool
}

// NewSession 使用给定默认设置创建会话
func NewSession(id string, defaults config.Settings, now time.Time) *Session {
	return &Session{
		ID:        id,
		CreatedAt: now,
		settings:  defaults.Normalize(),
		lastSeen:  now,
	}
}

// Settings 返回当前设置的副本
func (s *Session) Settings() config.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings 替换设置，空字段回退到 fallback
func (s *Session) UpdateSettings(in config.Settings, fallback config.Settings) config.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = in.NormalizeWith(fallback)
	return s.settings
}

// StoryIdea 最近一次提交的故事创意
func (s *Session) StoryIdea() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.storyIdea
}

// SetStoryIdea 记录故事创意（不影响生成结果）
func (s *Session) SetStoryIdea(idea string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storyIdea = idea
}

// Result 返回当前结果的副本；尚未生成时返回 nil
func (s *Session) Result() *GenerationResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return nil
	}
	r := *s.result
	return &r
}

// CommitResult 原子地整体替换结果
func (s *Session) CommitResult(r GenerationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = &r
	s.storyIdea = r.StoryIdea
}

// TryBegin 标记生成开始；已有生成在进行时返回 false
func (s *Session) TryBegin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

// End 标记生成结束
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

// Running 是否有生成在进行
func (s *Session) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Touch 更新最后访问时间
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

// LastSeen 最后访问时间
func (s *Session) LastSeen() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}

// SessionSnapshot 会话的可序列化视图
type SessionSnapshot struct {
	ID        string            `json:"id"`
	Settings  config.Settings   `json:"settings"`
	StoryIdea string            `json:"story_idea"`
	Result    *GenerationResult `json:"result,omitempty"`
	Running   bool              `json:"running"`
	CreatedAt time.Time         `json:"created_at"`
}

// Snapshot 在读锁下生成一致的视图
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := SessionSnapshot{
		ID:        s.ID,
		Settings:  s.settings,
		StoryIdea: s.storyIdea,
		Running:   s.running,
		CreatedAt: s.CreatedAt,
	}
	if s.result != nil {
		r := *s.result
		snap.Result = &r
	}
	return snap
}
