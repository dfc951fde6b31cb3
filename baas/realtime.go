package baas

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	connectshare "github.com/alinasr783/connect-share"
)

// rowPayload is the wire form of a row change on a realtime channel.
type rowPayload struct {
	Type            connectshare.RowEventKind `json:"type"`
	Table           string                    `json:"table"`
	Record          connectshare.ProfileRow   `json:"record"`
	OldRecord       connectshare.ProfileRow   `json:"old_record"`
	CommitTimestamp time.Time                 `json:"commit_timestamp"`
}

func (b *Backend) publish(ctx context.Context, kind connectshare.RowEventKind, row, old connectshare.ProfileRow) error {
	payload, err := json.Marshal(rowPayload{
		Type:            kind,
		Table:           ProfileTable,
		Record:          row,
		OldRecord:       old,
		CommitTimestamp: b.now().UTC(),
	})
	if err != nil {
		return err
	}
	filter := connectshare.RowFilter{Column: "id", Value: row.ID}
	if err := b.rdb.Publish(ctx, b.keys.channel(ProfileTable, filter), payload).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// SubscribeToRowUpdate opens the realtime feed of one users row. It returns once
// Redis confirmed the subscription or ctx ended.
func (b *Backend) SubscribeToRowUpdate(ctx context.Context, table string, filter connectshare.RowFilter) (connectshare.RealtimeChannel, error) {
	if table != ProfileTable || filter.Column != "id" || filter.Value == "" {
		return nil, fmt.Errorf("%w: %s %s", ErrUnsupportedFilter, table, filter.String())
	}

	ps := b.rdb.Subscribe(ctx, b.keys.channel(table, filter))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c := &rowChannel{
		ps:     ps,
		out:    make(chan connectshare.RowEvent, 16),
		done:   make(chan struct{}),
		logger: b.logger,
	}
	c.wg.Add(1)
	go c.pump(ps.Channel())
	return c, nil
}

type rowChannel struct {
	ps     *redis.PubSub
	out    chan connectshare.RowEvent
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
	logger *slog.Logger
}

func (c *rowChannel) Events() <-chan connectshare.RowEvent { return c.out }

func (c *rowChannel) pump(msgs <-chan *redis.Message) {
	defer c.wg.Done()
	defer close(c.out)

	for {
		select {
		case <-c.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var p rowPayload
			if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
				c.logger.Debug("baas: malformed realtime payload", "channel", msg.Channel, "error", err)
				continue
			}
			ev := connectshare.RowEvent{
				Kind:            p.Type,
				Table:           p.Table,
				Record:          p.Record,
				Old:             p.OldRecord,
				CommitTimestamp: p.CommitTimestamp,
			}
			select {
			case c.out <- ev:
			case <-c.done:
				return
			}
		}
	}
}

// Unsubscribe closes the feed. Events is closed once it returns.
func (c *rowChannel) Unsubscribe() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.ps.Close()
		c.wg.Wait()
	})
	return err
}
