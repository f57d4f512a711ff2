package classify

import "strings"

// Static lookup tables for the fast path. A hit here answers with full
// confidence and no external call.

var knownStudyApps = map[string]bool{
	"Code.exe":            true,
	"idea64.exe":          true,
	"studio64.exe":        true,
	"pycharm64.exe":       true,
	"sublime_text.exe":    true,
	"WindowsTerminal.exe": true,
	"cmd.exe":             true,
	"powershell.exe":      true,
	"Obsidian.exe":        true,
	"Notion.exe":          true,
}

var knownPlayApps = map[string]bool{
	"League of Legends.exe":  true,
	"RiotClientServices.exe": true,
	"Steam.exe":              true,
	"steamwebhelper.exe":     true,
	"Overwatch.exe":          true,
	"MapleStory.exe":         true,
	"Discord.exe":            true,
	"KakaoTalk.exe":          true,
}

var knownStudyDomains = []string{
	"github.com", "stackoverflow.com", "docs.python.org", "claude.ai",
	"chatgpt.com", "notion.so", "programmers.co.kr", "baekjoon.online",
}

var knownPlayDomains = []string{
	"netflix.com", "youtube.com/shorts", "twitch.tv", "afreecatv.com",
	"steamcommunity.com", "op.gg", "fow.kr",
}

// killList names apps and sites that warrant a kill command when matched
// with high confidence.
var killList = []string{
	"League of Legends", "Overwatch", "MapleStory", "Destiny",
	"Battle.net", "Steam", "Netflix",
}

// FastPathResult is a static table hit.
type FastPathResult struct {
	Label  string
	Reason string
}

// FastPath checks the observed process name and URL against the static
// tables. Returns nil on a miss.
func FastPath(processName, url string) *FastPathResult {
	if knownStudyApps[processName] {
		return &FastPathResult{Label: "STUDY", Reason: "known study app: " + processName}
	}
	if knownPlayApps[processName] {
		return &FastPathResult{Label: "PLAY", Reason: "known play app: " + processName}
	}

	if url != "" {
		clean := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(url, "https://"), "http://"))
		for _, d := range knownStudyDomains {
			if strings.Contains(clean, d) {
				return &FastPathResult{Label: "STUDY", Reason: "known study site: " + d}
			}
		}
		for _, d := range knownPlayDomains {
			if strings.Contains(clean, d) {
				return &FastPathResult{Label: "PLAY", Reason: "known play site: " + d}
			}
		}
	}
	return nil
}

// OnKillList reports whether the content names an app on the kill list.
func OnKillList(content string) (string, bool) {
	lower := strings.ToLower(content)
	for _, k := range killList {
		if strings.Contains(lower, strings.ToLower(k)) {
			return k, true
		}
	}
	return "", false
}
