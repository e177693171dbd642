package progress

import (
	"context"
	"time"

	"github.com/trezcool/skolar/core"
)

const DefaultPushInterval = 5 * time.Second

// Player exposes the state of a playing lesson.
type Player interface {
	// Playhead returns the current position in seconds.
	Playhead() float64
	// Ended is closed when the lesson reaches its end.
	Ended() <-chan struct{}
}

// Tracker persists the playhead of a player at a fixed interval.
// It is meant for players and clients embedding this module; the HTTP API takes pushes instead.
type Tracker struct {
	svc      *Service
	interval time.Duration
	logger   core.Logger
}

func NewTracker(svc *Service, interval time.Duration, logger core.Logger) *Tracker {
	if interval <= 0 {
		interval = DefaultPushInterval
	}
	return &Tracker{svc: svc, interval: interval, logger: logger}
}

// Run pushes the playhead every interval until the player ends, then marks the lesson completed.
// It returns when the lesson ended or ctx is done. Failed pushes are logged and retried on the next tick.
func (t *Tracker) Run(ctx context.Context, key Key, player Player) error {
	if _, err := t.svc.Start(ctx, key); err != nil {
		return err
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	pushed := -1.0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-player.Ended():
			_, _, err := t.svc.Complete(context.WithoutCancel(ctx), key, player.Playhead())
			return err
		case <-ticker.C:
			playhead := player.Playhead()
			if playhead == pushed {
				continue
			}
			if _, err := t.svc.UpdatePlayhead(ctx, key, playhead); err != nil {
				t.logger.Warn("pushing playhead", err, map[string]interface{}{"lesson": key.LessonID, "user": key.UserID})
				continue
			}
			pushed = playhead
		}
	}
}
