package postgres

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"admissionengine/internal/domain"
)

// changeChannel is the LISTEN channel written by the notify_admission_change trigger.
const changeChannel = "admission_changes"

const (
	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingInterval = 90 * time.Second
)

type changeFeed struct {
	dsn    string
	logger *slog.Logger
}

// NewChangeFeed returns a ChangeFeed backed by LISTEN/NOTIFY. Every
// subscription owns its own connection.
func NewChangeFeed(dsn string, logger *slog.Logger) domain.ChangeFeed {
	return &changeFeed{dsn: dsn, logger: logger}
}

func (f *changeFeed) Subscribe(ctx context.Context, tables ...string) (<-chan domain.Change, error) {
	listener := pq.NewListener(f.dsn, listenerMinReconnect, listenerMaxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			f.logger.Warn("change feed listener event", "event", ev, "err", err)
		}
	})
	if err := listener.Listen(changeChannel); err != nil {
		_ = listener.Close()
		return nil, storeErr(err)
	}
	wanted := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		wanted[t] = struct{}{}
	}
	out := make(chan domain.Change, 64)
	go f.pump(ctx, listener, wanted, out)
	return out, nil
}

func (f *changeFeed) pump(ctx context.Context, listener *pq.Listener, wanted map[string]struct{}, out chan<- domain.Change) {
	defer close(out)
	defer listener.Close()

	ping := time.NewTicker(listenerPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-listener.Notify:
			if !ok {
				return
			}
			var change domain.Change
			if n == nil {
				// Reconnected: anything sent while we were away is lost.
				change = domain.Change{Op: domain.OpResync}
			} else {
				var keep bool
				change, keep = parseChange(n.Extra, wanted)
				if !keep {
					continue
				}
			}
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		case <-ping.C:
			if err := listener.Ping(); err != nil {
				f.logger.Warn("change feed ping failed", "err", err)
			}
		}
	}
}

// parseChange decodes a trigger payload and reports whether its table is wanted.
// An empty wanted set accepts every table.
func parseChange(payload string, wanted map[string]struct{}) (domain.Change, bool) {
	var c domain.Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return domain.Change{}, false
	}
	if len(wanted) == 0 {
		return c, true
	}
	_, ok := wanted[c.Table]
	return c, ok
}
