package session

import (
	"log"
	"sync"
	"time"
)

type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is a transient user-facing message.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
	At      time.Time   `json:"at"`
}

type Notifier interface {
	Notify(Notice)
}

// LogNotifier logs every notice and keeps the most recent ones in memory.
type LogNotifier struct {
	mu     sync.Mutex
	recent []Notice
	limit  int
}

func NewLogNotifier(limit int) *LogNotifier {
	if limit <= 0 {
		limit = 20
	}
	return &LogNotifier{limit: limit}
}

func (n *LogNotifier) Notify(notice Notice) {
	log.Printf("Notice [%s]: %s", notice.Level, notice.Message)

	n.mu.Lock()
	defer n.mu.Unlock()
	n.recent = append(n.recent, notice)
	if len(n.recent) > n.limit {
		n.recent = n.recent[len(n.recent)-n.limit:]
	}
}

// Recent returns the buffered notices, oldest first.
func (n *LogNotifier) Recent() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notice, len(n.recent))
	copy(out, n.recent)
	return out
}

// Drain returns the buffered notices and forgets them.
func (n *LogNotifier) Drain() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.recent
	n.recent = nil
	if out == nil {
		out = []Notice{}
	}
	return out
}
