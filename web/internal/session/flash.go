package session

import (
	"net/http"
)

// Flash levels
const (
	FlashSuccess = "success"
	FlashError   = "error"
)

// Flash is a one-shot status message
type Flash struct {
	Level   string
	Message string
}

// AddFlash queues a message for the next page render
func (m *Manager) AddFlash(r *http.Request, w http.ResponseWriter, level, message string) error {
	s, err := m.shortStore.Get(r, FlashSessionName)
	if err != nil {
		s, _ = m.shortStore.New(r, FlashSessionName)
	}
	s.AddFlash(message, level)
	return s.Save(r, w)
}

// Flashes returns and clears queued messages
func (m *Manager) Flashes(r *http.Request, w http.ResponseWriter) []Flash {
	s, err := m.shortStore.Get(r, FlashSessionName)
	if err != nil {
		return nil
	}

	var out []Flash
	for _, level := range []string{FlashSuccess, FlashError} {
		for _, v := range s.Flashes(level) {
			if msg, ok := v.(string); ok {
				out = append(out, Flash{Level: level, Message: msg})
			}
		}
	}
	if len(out) > 0 {
		_ = s.Save(r, w)
	}
	return out
}
