package notify

import (
	"context"
	"sync"
	"time"

	applog "github.com/DrMneff/digital-unlock-oasis/internal/log"
)

// Async delivers each notification on its own goroutine with a timeout.
type Async struct {
	sender  Sender
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsync(s Sender, timeout time.Duration) *Async {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Async{sender: s, timeout: timeout}
}

func (a *Async) Dispatch(ctx context.Context, function string, body any) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		// detached from the request: the response may be written before delivery ends
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		deliver(sendCtx, a.sender, "", function, body)
	}()
}

// Wait blocks until every in-flight delivery has finished.
func (a *Async) Wait() { a.wg.Wait() }

func deliver(ctx context.Context, s Sender, id, function string, body any) {
	fields := map[string]any{"function": function}
	if id != "" {
		fields["message_id"] = id
	}
	if err := s.Send(ctx, function, body); err != nil {
		applog.Error(nil, "notify.fail", err, fields)
		return
	}
	applog.Info(nil, "notify.sent", fields)
}
