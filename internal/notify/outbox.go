package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	rd "github.com/redis/go-redis/v9"

	applog "github.com/DrMneff/digital-unlock-oasis/internal/log"
)

// Outbox appends notifications to a Redis stream; a Relay delivers them.
type Outbox struct {
	rdb    *rd.Client
	stream string
	maxLen int64
}

func NewOutbox(rdb *rd.Client, stream string) *Outbox {
	return &Outbox{rdb: rdb, stream: stream, maxLen: 10000}
}

func (o *Outbox) Dispatch(ctx context.Context, function string, body any) {
	values, err := encodeMessage(ulid.Make().String(), function, body)
	if err != nil {
		applog.Error(nil, "notify.encode", err, map[string]any{"function": function})
		return
	}
	if err := o.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: o.stream,
		MaxLen: o.maxLen,
		Approx: true,
		Values: values,
	}).Err(); err != nil {
		applog.Error(nil, "notify.fail", err, map[string]any{"function": function, "stage": "enqueue"})
	}
}

type message struct {
	ID       string
	Function string
	Body     json.RawMessage
}

func encodeMessage(id, function string, body any) (map[string]any, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": id, "function": function, "body": string(b)}, nil
}

func decodeMessage(values map[string]any) (message, error) {
	var m message
	var err error
	if m.ID, err = streamString(values, "id"); err != nil {
		return m, err
	}
	if m.Function, err = streamString(values, "function"); err != nil {
		return m, err
	}
	body, err := streamString(values, "body")
	if err != nil {
		return m, err
	}
	if !json.Valid([]byte(body)) {
		return m, fmt.Errorf("invalid body for %s", m.ID)
	}
	m.Body = json.RawMessage(body)
	return m, nil
}

func streamString(values map[string]any, key string) (string, error) {
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing field %s", key)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	default:
		return "", fmt.Errorf("unsupported field type %s: %T", key, v)
	}
}

// Relay reads the outbox stream through a consumer group and delivers each
// message once. Messages are acknowledged and deleted whatever the outcome.
type Relay struct {
	rdb    *rd.Client
	sender Sender

	stream   string
	group    string
	consumer string
}

func NewRelay(rdb *rd.Client, sender Sender, stream, group, consumer string) *Relay {
	return &Relay{
		rdb:      rdb,
		sender:   sender,
		stream:   stream,
		group:    group,
		consumer: consumer,
	}
}

func (r *Relay) Run(ctx context.Context) {
	if err := r.ensureGroup(ctx); err != nil {
		applog.Error(nil, "notify.relay.group", err, map[string]any{"stream": r.stream})
		return
	}
	applog.Info(nil, "notify.relay.start", map[string]any{"stream": r.stream, "group": r.group})

	for {
		if ctx.Err() != nil {
			return
		}

		// leftovers from a previous run of this consumer first; -1 omits BLOCK
		msgs, err := r.readGroup(ctx, "0", -1)
		if err == nil && len(msgs) == 0 {
			msgs, err = r.readGroup(ctx, ">", 2*time.Second)
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			applog.Error(nil, "notify.relay.read", err, nil)
			time.Sleep(300 * time.Millisecond)
			continue
		}

		for _, xm := range msgs {
			r.processOne(ctx, xm)
		}
	}
}

func (r *Relay) ensureGroup(ctx context.Context) error {
	err := r.rdb.XGroupCreateMkStream(ctx, r.stream, r.group, "0").Err()
	if err == nil || strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

func (r *Relay) readGroup(ctx context.Context, streamID string, block time.Duration) ([]rd.XMessage, error) {
	streams, err := r.rdb.XReadGroup(ctx, &rd.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.consumer,
		Streams:  []string{r.stream, streamID},
		Count:    16,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var out []rd.XMessage
	for _, s := range streams {
		out = append(out, s.Messages...)
	}
	return out, nil
}

func (r *Relay) processOne(ctx context.Context, xm rd.XMessage) {
	msg, err := decodeMessage(xm.Values)
	if err != nil {
		applog.Error(nil, "notify.relay.decode", err, map[string]any{"stream_id": xm.ID})
	} else {
		sendCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
		deliver(sendCtx, r.sender, msg.ID, msg.Function, msg.Body)
		cancel()
	}
	if err := r.ackAndDelete(ctx, xm.ID); err != nil {
		applog.Error(nil, "notify.relay.ack", err, map[string]any{"stream_id": xm.ID})
	}
}

func (r *Relay) ackAndDelete(ctx context.Context, id string) error {
	pipe := r.rdb.TxPipeline()
	pipe.XAck(ctx, r.stream, r.group, id)
	pipe.XDel(ctx, r.stream, id)
	_, err := pipe.Exec(ctx)
	return err
}
