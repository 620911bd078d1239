package domain

// previewRunes is the number of leading characters of the last message kept
// as the session preview.
const previewRunes = 30

// DefaultSessionTitle is the title given to a freshly persisted session.
const DefaultSessionTitle = "محادثة جديدة"

// ChatSession is a titled, dated, ordered collection of messages. Message
// order is insertion order and is canonical for both display and the recent
// history window sent to the model.
type ChatSession struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Preview  string    `json:"preview"`
	Date     string    `json:"date"`
	Messages []Message `json:"messages"`
}

// PreviewText derives the sidebar preview from the last message: its first 30
// characters with a trailing ellipsis marker. The marker is appended even
// when the text is shorter than 30 characters; session lists written by
// earlier releases always carry it, so the rule is kept as-is.
func PreviewText(messages []Message) string {
	if len(messages) == 0 {
		return ""
	}
	text := messages[len(messages)-1].Text
	runes := []rune(text)
	if len(runes) > previewRunes {
		runes = runes[:previewRunes]
	}
	return string(runes) + "..."
}

// LastMessages returns the trailing n messages, or all of them when fewer
// exist.
func LastMessages(messages []Message, n int) []Message {
	if n >= len(messages) {
		return messages
	}
	return messages[len(messages)-n:]
}
