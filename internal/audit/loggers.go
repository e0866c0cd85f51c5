package audit

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/LeoCTH/gravity-guns/internal/entity"
	"github.com/LeoCTH/gravity-guns/internal/event"
	"github.com/LeoCTH/gravity-guns/internal/world"
)

// Logger writes world audit entries (compressed).
type Logger struct{ w *JSONLZstdWriter }

func NewLogger(dir string) *Logger {
	return &Logger{w: NewJSONLZstdWriter(filepath.Join(dir, "audit"), "audit")}
}

func (l *Logger) WriteAudit(v world.AuditEntry) error { return l.w.Write(v) }
func (l *Logger) Close() error                        { return l.w.Close() }

// GrabRecord is one line of the grab journal.
type GrabRecord struct {
	Time     string     `json:"time"`
	Event    string     `json:"event"`
	Actor    string     `json:"actor"`
	Target   string     `json:"target"`
	Forced   bool       `json:"forced,omitempty"`
	Velocity [3]float64 `json:"velocity"`
}

// BlockStatesRecord is the journal line for a block state sync, decoded from
// the payload an observer receives.
type BlockStatesRecord struct {
	Time     string  `json:"time"`
	Event    string  `json:"event"`
	EntityID int32   `json:"entity"`
	States   []int32 `json:"states"`
}

// GrabJournal records grab start and release events and block state syncs
// from the bus.
type GrabJournal struct {
	w      *JSONLZstdWriter
	log    *slog.Logger
	cancel []func()
}

func NewGrabJournal(dir string, bus *event.Bus) *GrabJournal {
	j := &GrabJournal{
		w:   NewJSONLZstdWriter(filepath.Join(dir, "grabs"), "grabs"),
		log: slog.Default().With("component", "audit"),
	}
	for _, name := range []string{event.EventGrabStarted, event.EventGrabReleased} {
		name := name
		j.cancel = append(j.cancel, bus.Subscribe(name, func(raw any) {
			evt, ok := raw.(event.GrabEvent)
			if !ok {
				return
			}
			j.write(GrabRecord{
				Time:     now(),
				Event:    name,
				Actor:    evt.Actor.String(),
				Target:   evt.Target,
				Forced:   evt.Forced,
				Velocity: [3]float64{evt.Velocity.X(), evt.Velocity.Y(), evt.Velocity.Z()},
			})
		}))
	}
	j.cancel = append(j.cancel, bus.Subscribe(event.EventBlockStatesChanged, func(raw any) {
		evt, ok := raw.(event.BlockStatesEvent)
		if !ok {
			return
		}
		states, err := entity.DecodeCompactBlockStates(evt.Encoded)
		if err != nil {
			j.log.Warn("Malformed block state sync", "entity", evt.EntityID, "error", err)
			return
		}
		j.write(BlockStatesRecord{
			Time:     now(),
			Event:    event.EventBlockStatesChanged,
			EntityID: evt.EntityID,
			States:   states.States(),
		})
	}))
	return j
}

func (j *GrabJournal) write(v any) {
	if err := j.w.Write(v); err != nil {
		j.log.Warn("Grab journal write failed", "error", err)
	}
}

func (j *GrabJournal) Close() error {
	for _, c := range j.cancel {
		c()
	}
	j.cancel = nil
	return j.w.Close()
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }
