package bot

import "strings"

// Discord caps messages at 2000 characters; 1900 leaves room for the code
// fence and a continuation marker.
const maxChunkRunes = 1900

// chunkOutput splits text into pieces of at most limit runes, preferring to
// break on line boundaries. An over-long single line is split mid-line.
func chunkOutput(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len([]rune(text)) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, strings.TrimRight(current.String(), "\n"))
			current.Reset()
			currentLen = 0
		}
	}

	for _, line := range strings.Split(text, "\n") {
		runes := []rune(line)

		// Hard-split lines that alone exceed the limit.
		for len(runes) > limit {
			flush()
			chunks = append(chunks, string(runes[:limit]))
			runes = runes[limit:]
		}

		if currentLen > 0 && currentLen+1+len(runes) > limit {
			flush()
		}
		if currentLen > 0 {
			current.WriteByte('\n')
			currentLen++
		}
		current.WriteString(string(runes))
		currentLen += len(runes)
	}
	flush()

	return chunks
}

// fence wraps a chunk in a Markdown code fence.
func fence(chunk string) string {
	return "```\n" + chunk + "\n```"
}
