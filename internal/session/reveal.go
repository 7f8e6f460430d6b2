package session

import (
	"strings"
	"unicode"

	"studyhall/internal/chat"
	"studyhall/internal/log"
)

// Tokenize splits text into alternating word and whitespace-run tokens.
// Every character lands in exactly one token, so concatenating the tokens
// reproduces the input byte for byte. Splitting on Unicode whitespace keeps
// the reveal honest for any language the backend answers in.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	var tokens []string
	var b strings.Builder
	var inSpace bool
	for i, r := range text {
		isSpace := unicode.IsSpace(r)
		if i > 0 && isSpace != inSpace {
			tokens = append(tokens, b.String())
			b.Reset()
		}
		b.WriteRune(r)
		inSpace = isSpace
	}
	tokens = append(tokens, b.String())
	return tokens
}

// reveal plays the assistant message into the view one token at a time with
// a fixed pause between tokens. The chat's data already holds the full text;
// only the displayed text trails behind. Each step re-checks the active
// chat, so switching away mid-reveal stops the visible animation without
// touching the data. A final update pins the complete text and refreshes
// the chrome regions.
func (s *Session) reveal(target *chat.Chat, m chat.Message) {
	tokens := Tokenize(m.Text)
	log.Debug(log.CatRender, "reveal started", "chat", target.ID, "message", m.ID, "tokens", len(tokens))

	var shown strings.Builder
	for _, token := range tokens {
		shown.WriteString(token)

		s.mu.Lock()
		active := s.activeID == target.ID
		if active {
			partial := m
			partial.Text = shown.String()
			s.view.UpdateMessage(target.ID, partial)
		}
		s.mu.Unlock()
		if !active {
			return
		}
		s.cfg.Sleep(s.cfg.RevealDelay)
	}

	s.mu.Lock()
	if s.activeID == target.ID {
		s.view.UpdateMessage(target.ID, m)
		s.recon.Reconcile(target)
	}
	s.mu.Unlock()
}
