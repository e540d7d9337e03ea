// Package classify turns raw client-log lines into typed events.
//
// Classification is an ordered cascade of (match, extract) rules; the
// first rule whose matcher accepts the line wins. The rules themselves
// are data (regular expressions plus the name tables in npcs.go), so new
// NPCs or line shapes are added without touching the dispatch loop.
package classify

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/exiletools/runtracker/internal/event"
)

// Classifier is a pure function object: it carries no mutable state
// beyond its configuration, so it is safe to call from any goroutine.
type Classifier struct {
	logger *slog.Logger
	// character is the player's own character name, used to tell
	// self-addressed whispers (notes, the "end" signal) from chat.
	character string
	rules     []rule
}

type rule struct {
	name    string
	match   func(content string) []string
	extract func(c *Classifier, raw event.Raw, m []string) (event.Event, bool)
}

func New(logger *slog.Logger, character string) *Classifier {
	c := &Classifier{logger: logger, character: character}
	c.rules = buildRules()
	return c
}

// Classify maps one raw line to a typed event. The second return is
// false when the line produced nothing: engine spam, chat from unknown
// shapes, or an unmatched sentinel line (which is logged, since every
// sentinel- or @-prefixed line is expected to be classifiable).
func (c *Classifier) Classify(raw event.Raw) (event.Event, bool) {
	// Windows client logs end lines with \r; normalize before any
	// pattern sees the content.
	content := strings.TrimRight(raw.Content, "\r")
	raw.Content = content

	for _, r := range c.rules {
		if m := r.match(content); m != nil {
			return r.extract(c, raw, m)
		}
	}

	if strings.HasPrefix(content, ": ") || strings.HasPrefix(content, "@") {
		c.logger.Warn("unclassifiable system line", "content", content)
	} else {
		c.logger.Debug("line dropped", "content", content)
	}
	return event.Event{}, false
}

func reMatch(expr string) func(string) []string {
	re := regexp.MustCompile(expr)
	return re.FindStringSubmatch
}

func buildRules() []rule {
	return []rule{
		{
			name:  "afk",
			match: reMatch(`^: AFK mode is now (ON|OFF)`),
			extract: func(c *Classifier, raw event.Raw, m []string) (event.Event, bool) {
				return event.Event{Type: event.TypeAFKToggle, Text: strings.ToLower(m[1]), Timestamp: raw.Timestamp}, true
			},
		},
		{
			name:  "entered",
			match: reMatch(`^: You have entered (.+)\.$`),
			extract: func(c *Classifier, raw event.Raw, m []string) (event.Event, bool) {
				return event.Event{Type: event.TypeEntered, Text: m[1], Timestamp: raw.Timestamp}, true
			},
		},
		{
			name:  "generatedArea",
			match: reMatch(`^Generating level (\d+) area "([^"]+)"(?: with seed (\d+))?`),
			extract: func(c *Classifier, raw event.Raw, m []string) (event.Event, bool) {
				level, _ := strconv.Atoi(m[1])
				var seed int64
				if m[3] != "" {
					seed, _ = strconv.ParseInt(m[3], 10, 64)
				}
				payload := event.AreaGenerated{Level: level, Area: m[2], Seed: seed}
				return event.Event{Type: event.TypeGeneratedArea, Text: payload.Encode(), Timestamp: raw.Timestamp}, true
			},
		},
		{
			name:  "instanceServer",
			match: reMatch(`^Connecting to instance server at (\S+)`),
			extract: func(c *Classifier, raw event.Raw, m []string) (event.Event, bool) {
				return event.Event{Type: event.TypeInstanceServer, Text: m[1], Timestamp: raw.Timestamp}, true
			},
		},
		{
			name:  "abnormalDisconnect",
			match: reMatch(`^Abnormal disconnect: (.*)$`),
			extract: func(c *Classifier, raw event.Raw, m []string) (event.Event, bool) {
				return event.Event{Type: event.TypeAbnormalDisconnect, Text: m[1], Timestamp: raw.Timestamp}, true
			},
		},
		{
			name:  "allocated",
			match: reMatch(`^Successfully (allocated|unallocated) passive skill id: [\w\-]+, name: (.+)$`),
			extract: func(c *Classifier, raw event.Raw, m []string) (event.Event, bool) {
				t := event.TypeAllocated
				if m[1] == "unallocated" {
					t = event.TypeUnallocated
				}
				return event.Event{Type: t, Text: m[2], Timestamp: raw.Timestamp}, true
			},
		},
		{
			name:  "slain",
			match: reMatch(`^: (.+) has been slain\.$`),
			extract: func(c *Classifier, raw event.Raw, m []string) (event.Event, bool) {
				return event.Event{Type: event.TypeSlain, Text: m[1], Timestamp: raw.Timestamp}, true
			},
		},
		{
			name:  "level",
			match: reMatch(`^: (.+?) \((\w+)\) is now level (\d+)$`),
			extract: func(c *Classifier, raw event.Raw, m []string) (event.Event, bool) {
				return event.Event{Type: event.TypeLevel, Text: fmt.Sprintf("%s|%s|%s", m[1], m[2], m[3]), Timestamp: raw.Timestamp}, true
			},
		},
		{
			name:  "whisper",
			match: reMatch(`^@(From|To) (?:<[^>]+> )?([^:]+): (.+)$`),
			extract: (*Classifier).extractWhisper,
		},
		{
			name:  "playerChat",
			match: reMatch(`^([#%&$])([^:]+): (.+)$`),
			extract: func(c *Classifier, raw event.Raw, m []string) (event.Event, bool) {
				return event.Event{Type: event.TypeChat, Text: m[2] + ": " + m[3], Timestamp: raw.Timestamp}, true
			},
		},
		{
			name:  "shrine",
			match: matchShrine,
			extract: func(c *Classifier, raw event.Raw, m []string) (event.Event, bool) {
				return event.Event{Type: event.TypeShrine, Text: m[1], Timestamp: raw.Timestamp}, true
			},
		},
		{
			name:  "npcDialogue",
			match: reMatch(`^: (.+?): (.+)$`),
			extract: (*Classifier).extractNPC,
		},
	}
}

// extractWhisper handles "@From x: ..." and "@To x: ...". A whisper to
// or from the player's own character is a note; a note that is exactly
// "end" is the manual run-termination signal and is not stored.
func (c *Classifier) extractWhisper(raw event.Raw, m []string) (event.Event, bool) {
	who := strings.TrimSpace(m[2])
	text := m[3]
	if c.character != "" && who == c.character {
		if strings.TrimSpace(text) == "end" {
			return event.Event{Type: event.TypeEndSignal, Timestamp: raw.Timestamp}, true
		}
		return event.Event{Type: event.TypeNote, Text: text, Timestamp: raw.Timestamp}, true
	}
	return event.Event{Type: event.TypeChat, Text: m[1] + " " + who + ": " + text, Timestamp: raw.Timestamp}, true
}

// extractNPC dispatches "<speaker>: <dialogue>" lines on the speaker
// tables. Unknown speakers degrade to chat so quest NPC chatter in town
// does not pollute the warn log.
func (c *Classifier) extractNPC(raw event.Raw, m []string) (event.Event, bool) {
	speaker, dialogue := m[1], m[2]
	text := speaker + ": " + dialogue

	var t event.Type
	switch {
	case masterNames[speaker]:
		t = event.TypeMaster
	case conquerorNames[speaker]:
		t = event.TypeConqueror
	case leagueNPCNames[speaker]:
		t = event.TypeLeagueNPC
	case mapBossNames[speaker]:
		t = event.TypeMapBoss
	default:
		t = event.TypeChat
	}
	return event.Event{Type: t, Text: text, Timestamp: raw.Timestamp}, true
}

func matchShrine(content string) []string {
	msg, ok := strings.CutPrefix(content, ": ")
	if !ok {
		return nil
	}
	for phrase, shrine := range shrinePhrases {
		if strings.HasPrefix(msg, phrase) {
			return []string{content, shrine}
		}
	}
	return nil
}

// SplitSpeaker splits an NPC event text back into speaker and dialogue.
// The stats reducer uses it; it lives here so the split stays next to
// the join in extractNPC.
func SplitSpeaker(text string) (speaker, dialogue string) {
	i := strings.Index(text, ": ")
	if i < 0 {
		return text, ""
	}
	return text[:i], text[i+2:]
}
