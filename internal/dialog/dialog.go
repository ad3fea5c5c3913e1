package dialog

import (
	"strings"
	"unicode/utf8"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerBot   Speaker = "bot"
	SpeakerHuman Speaker = "human"
)

const (
	turnSeparator = ";"
	botPrefix     = "bot:"
	humanPrefix   = "human:"

	excerptTurns    = 2
	excerptMaxRunes = 200
)

// Turn is a single utterance in a call transcript.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Parse splits a raw transcript into ordered speaker turns.
// Segments without a bot/human prefix are dropped; malformed input yields an
// empty or partial slice, never an error.
func Parse(transcript string) []Turn {
	segments := Segments(transcript)
	turns := make([]Turn, 0, len(segments))
	for _, segment := range segments {
		switch {
		case strings.HasPrefix(segment, botPrefix):
			turns = append(turns, Turn{
				Speaker: SpeakerBot,
				Text:    strings.TrimSpace(strings.TrimPrefix(segment, botPrefix)),
			})
		case strings.HasPrefix(segment, humanPrefix):
			turns = append(turns, Turn{
				Speaker: SpeakerHuman,
				Text:    strings.TrimSpace(strings.TrimPrefix(segment, humanPrefix)),
			})
		}
	}
	return turns
}

// Segments returns the trimmed, non-empty `;`-separated parts of a transcript
// with their prefixes intact.
func Segments(transcript string) []string {
	parts := strings.Split(transcript, turnSeparator)
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		segments = append(segments, part)
	}
	return segments
}

// Excerpt returns a short representative piece of a transcript: the last two
// segments, or a 200-character prefix when the transcript has fewer segments.
func Excerpt(transcript string) string {
	segments := Segments(transcript)
	if len(segments) >= excerptTurns {
		return strings.Join(segments[len(segments)-excerptTurns:], "\n")
	}
	if utf8.RuneCountInString(transcript) > excerptMaxRunes {
		return string([]rune(transcript)[:excerptMaxRunes]) + "..."
	}
	return transcript
}
