package llm

import (
	"fmt"
	"strings"
)

// ClassifyPrompt generates the prompt for STUDY/PLAY classification of an
// observed activity context.
func ClassifyPrompt(context string) string {
	return fmt.Sprintf(`You are a strict but fair study supervisor.
Distinguish between STUDY (productive) and PLAY (distraction) from the screen context below.

Context:
%s

Rules:
- Editors, terminals, documentation, GitHub, StackOverflow are STUDY.
- Video platforms are STUDY only for clearly educational content; shorts and entertainment are PLAY.
- Games, launchers (Steam, Battle.net), streaming and shopping sites are PLAY.
- If the web search context below says the unknown term is a video game, it is PLAY.
- If you genuinely cannot tell, use label UNKNOWN with low confidence.

Return ONLY a JSON object:
{"label": "STUDY|PLAY|UNKNOWN", "confidence": 0.0, "reason": "short reason", "message": "one sentence to the user"}`, context)
}

// GameScanPrompt generates the prompt for scanning a running-app list for
// video games.
func GameScanPrompt(apps []string) string {
	return fmt.Sprintf(`You are a strict anti-gaming supervisor.
Scan this list of running processes and detect any VIDEO GAMES.

Apps: %s

Rules:
- Target explicit games and game launchers (count Steam and Battle.net as games).
- Ignore browsers, development tools, chat apps, and system processes.

Return ONLY a JSON object:
{"detected": true, "target": "main game process or empty", "games": ["..."], "message": "one stern sentence if a game is found", "confidence": 0.0}`,
		strings.Join(apps, ", "))
}

// ConsolidationPrompt generates the prompt for summarizing a day's event log
// into a diary entry.
func ConsolidationPrompt(logText string) string {
	return fmt.Sprintf(`Summarize the following user activity log into a concise diary entry.
Focus on: what did they study, and did they slack off?
Format: "User [action summary]. Notable: [details]."
Return plain text only, no JSON.

Log:
%s`, logText)
}
