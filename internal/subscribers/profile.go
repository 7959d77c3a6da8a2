package subscribers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/myclaw/myclaw/internal/bus"
)

// ProfileVersion is the current user-profile document version.
const ProfileVersion = 2

// Profile is the durable user-profile document (version 2).
type Profile struct {
	Version       int           `json:"version"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	StableProfile StableProfile `json:"stableProfile"`
}

// StableProfile is the slowly-changing part of the profile, merged across
// sessions.
type StableProfile struct {
	PreferredLanguage string      `json:"preferredLanguage,omitempty"`
	CodingLanguages   []string    `json:"codingLanguages,omitempty"`
	Environment       Environment `json:"environment"`
	Preferences       []string    `json:"preferences,omitempty"`
	RecentFocus       string      `json:"recentFocus,omitempty"`
	LastWorkspace     string      `json:"lastWorkspace,omitempty"`
}

// Environment describes the user's tooling as far as it was mentioned.
type Environment struct {
	OS             string `json:"os,omitempty"`
	Shell          string `json:"shell,omitempty"`
	PackageManager string `json:"packageManager,omitempty"`
	NodeVersion    string `json:"nodeVersion,omitempty"`
}

// legacyProfile is the version-1 document: a flat list of session-exit notes.
// Migration keeps only the newest entry's focus and workspace.
type legacyProfile struct {
	Version int `json:"version"`
	Entries []struct {
		TS        time.Time `json:"ts"`
		Focus     string    `json:"focus,omitempty"`
		Workspace string    `json:"workspace,omitempty"`
	} `json:"entries"`
}

// UserProfile learns durable facts about the user from their messages and
// from compression summaries, and merges them into <home>/user-profile.json
// on every summary and on session_end.
type UserProfile struct {
	path string

	mu       sync.Mutex
	sessions map[string]*profileSignals
}

// profileSignals accumulates one session's extracted evidence.
type profileSignals struct {
	workspace         string
	preferredLanguage string
	codingLanguages   []string
	env               Environment
	preferences       []string
	recentFocus       string
}

func NewUserProfile(path string) *UserProfile {
	return &UserProfile{path: path, sessions: make(map[string]*profileSignals)}
}

// Attach subscribes the learner to the bus.
func (u *UserProfile) Attach(b bus.Publisher) func() {
	return b.Subscribe("user_profile", u.Handle)
}

func (u *UserProfile) Handle(evt bus.Event) {
	switch evt.Type {
	case bus.EventStart:
		p, _ := evt.Payload.(bus.StartPayload)
		u.signals(evt.SessionID).workspace = p.Workspace

	case bus.EventSessionResume:
		p, _ := evt.Payload.(bus.ResumePayload)
		u.signals(evt.SessionID).workspace = p.Workspace

	case bus.EventMessage:
		p, ok := evt.Payload.(bus.MessagePayload)
		if !ok || p.Role != "user" {
			return
		}
		u.mu.Lock()
		sig := u.lockedSignals(evt.SessionID)
		sig.absorb(p.Content)
		sig.recentFocus = oneLineFocus(p.Content)
		u.mu.Unlock()

	case bus.EventSummary:
		p, ok := evt.Payload.(bus.SummaryPayload)
		if !ok {
			return
		}
		u.mu.Lock()
		sig := u.lockedSignals(evt.SessionID)
		sig.absorb(p.Content)
		u.mu.Unlock()
		u.merge(evt.SessionID, evt.At)

	case bus.EventSessionEnd:
		u.merge(evt.SessionID, evt.At)
		u.mu.Lock()
		delete(u.sessions, evt.SessionID)
		u.mu.Unlock()
	}
}

func (u *UserProfile) signals(sessionID string) *profileSignals {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lockedSignals(sessionID)
}

func (u *UserProfile) lockedSignals(sessionID string) *profileSignals {
	sig, ok := u.sessions[sessionID]
	if !ok {
		sig = &profileSignals{}
		u.sessions[sessionID] = sig
	}
	return sig
}

// absorb extracts heuristic signals from one piece of user-authored text.
func (s *profileSignals) absorb(text string) {
	// "en" is a weak signal: it fills an empty slot but never displaces a
	// detected non-Latin language.
	if lang := detectNaturalLanguage(text); lang != "" {
		if lang != "en" || s.preferredLanguage == "" {
			s.preferredLanguage = lang
		}
	}
	s.codingLanguages = mergeList(s.codingLanguages, detectCodingLanguages(text), maxCodingLanguages)
	env := detectEnvironment(text)
	if env.OS != "" {
		s.env.OS = env.OS
	}
	if env.Shell != "" {
		s.env.Shell = env.Shell
	}
	if env.PackageManager != "" {
		s.env.PackageManager = env.PackageManager
	}
	if env.NodeVersion != "" {
		s.env.NodeVersion = env.NodeVersion
	}
	s.preferences = mergeList(s.preferences, detectPreferences(text), maxPreferences)
}

// merge folds one session's signals into the durable profile document.
func (u *UserProfile) merge(sessionID string, at time.Time) {
	u.mu.Lock()
	defer u.mu.Unlock()

	sig, ok := u.sessions[sessionID]
	if !ok {
		return
	}

	profile := u.load()
	sp := &profile.StableProfile
	if sig.preferredLanguage != "" {
		sp.PreferredLanguage = sig.preferredLanguage
	}
	sp.CodingLanguages = mergeList(sp.CodingLanguages, sig.codingLanguages, maxCodingLanguages)
	if sig.env.OS != "" {
		sp.Environment.OS = sig.env.OS
	}
	if sig.env.Shell != "" {
		sp.Environment.Shell = sig.env.Shell
	}
	if sig.env.PackageManager != "" {
		sp.Environment.PackageManager = sig.env.PackageManager
	}
	if sig.env.NodeVersion != "" {
		sp.Environment.NodeVersion = sig.env.NodeVersion
	}
	sp.Preferences = mergeList(sp.Preferences, sig.preferences, maxPreferences)
	if sig.recentFocus != "" {
		sp.RecentFocus = sig.recentFocus
	}
	if sig.workspace != "" {
		sp.LastWorkspace = sig.workspace
	}
	profile.Version = ProfileVersion
	profile.UpdatedAt = at

	if err := u.save(profile); err != nil {
		slog.Warn("user profile save failed", "error", err)
	}
}

// load reads the profile from disk, migrating a v1 document. Any unreadable
// file yields a fresh profile.
func (u *UserProfile) load() *Profile {
	data, err := os.ReadFile(u.path)
	if err != nil {
		return &Profile{Version: ProfileVersion}
	}

	var versionProbe struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &versionProbe); err != nil {
		return &Profile{Version: ProfileVersion}
	}

	if versionProbe.Version <= 1 {
		return migrateLegacy(data)
	}

	var profile Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return &Profile{Version: ProfileVersion}
	}
	return &profile
}

// migrateLegacy converts a v1 entry list, keeping only the latest exit focus
// and workspace.
func migrateLegacy(data []byte) *Profile {
	var legacy legacyProfile
	profile := &Profile{Version: ProfileVersion}
	if err := json.Unmarshal(data, &legacy); err != nil {
		return profile
	}
	var newest time.Time
	for _, entry := range legacy.Entries {
		if entry.TS.Before(newest) {
			continue
		}
		newest = entry.TS
		if entry.Focus != "" {
			profile.StableProfile.RecentFocus = entry.Focus
		}
		if entry.Workspace != "" {
			profile.StableProfile.LastWorkspace = entry.Workspace
		}
	}
	return profile
}

// save writes the profile atomically (temp file → rename).
func (u *UserProfile) save(profile *Profile) error {
	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(u.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "profile-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, u.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename profile: %w", err)
	}
	return nil
}

// mergeList unions base and extra preserving order, keeping the newest
// limit entries.
func mergeList(base, extra []string, limit int) []string {
	seen := make(map[string]struct{}, len(base))
	out := make([]string, 0, len(base)+len(extra))
	for _, v := range base {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for _, v := range extra {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
