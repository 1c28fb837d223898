package reactive

import (
	"fmt"
	"sync"
	"time"
)

func awaitTimeout() <-chan time.Time { return time.After(5 * time.Second) }

// eventLog collects ordered observations from effects and task bodies.
type eventLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *eventLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, fmt.Sprintf(format, args...))
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *eventLog) count(entry string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e == entry {
			n++
		}
	}
	return n
}

// recordingObserver exposes lifecycle notifications to tests via channels.
type recordingObserver struct {
	NoopObserver
	started    chan string
	settled    chan string
	suppressed chan string
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		started:    make(chan string, 64),
		settled:    make(chan string, 64),
		suppressed: make(chan string, 64),
	}
}

func (o *recordingObserver) TaskStarted(name string, _ uint64) { o.started <- name }

func (o *recordingObserver) TaskSettled(name, outcome string, _ uint64) {
	o.settled <- name + ":" + outcome
}

func (o *recordingObserver) TaskSuppressed(name string, _ uint64) { o.suppressed <- name }
