package pipeline

import (
	"context"
	"errors"
	"time"

	"vlmd/internal/events"
	"vlmd/internal/history"
	"vlmd/internal/vlm"
	"vlmd/pkg/types"
)

const historyTimeout = 2 * time.Second

// handleResult is the inference client's completion callback. It runs on the
// call goroutine after the gate is released.
func (p *Pipeline) handleResult(res vlm.Result) {
	ev := events.Event{
		RequestID:  res.RequestID,
		Prompt:     res.Prompt,
		DurationMS: res.Duration.Milliseconds(),
		At:         time.Now(),
	}
	status, text := types.StatusOK, res.Reply
	if res.Err != nil {
		status, text = types.StatusError, res.Err.Error()
		ev.Name, ev.Error = events.Failed, text
		p.mu.Lock()
		p.lastError = text
		p.mu.Unlock()
	} else {
		ev.Name, ev.Reply = events.Replied, res.Reply
		p.mu.Lock()
		p.lastReply, p.lastError = res.Reply, ""
		p.mu.Unlock()
	}

	if res.RequestID != "" && !errors.Is(res.Err, vlm.ErrClosed) {
		p.complete(res.RequestID, status, text)
	}
	p.hub.Deliver(res.RequestID, res.Reply, res.Err)
	p.pub.Publish(ev)
}

func (p *Pipeline) complete(id, status, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	if err := p.cfg.History.Complete(ctx, id, status, text); err != nil && !errors.Is(err, history.ErrDisabled) {
		p.log.Warn().Err(err).Str("request_id", id).Msg("history update failed")
	}
}

// answer pins the row for id to the reply its caller received.
func (p *Pipeline) answer(id, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	if err := p.cfg.History.Answer(ctx, id, text); err != nil && !errors.Is(err, history.ErrDisabled) {
		p.log.Warn().Err(err).Str("request_id", id).Msg("history update failed")
	}
}
