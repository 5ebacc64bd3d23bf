package pipeline

import (
	"context"
	"errors"
	"time"

	"vlmd/internal/events"
	"vlmd/internal/history"
	"vlmd/internal/relay"
	"vlmd/pkg/types"
)

// Query injects prompt into the frame loop and waits for the reply.
// Errors are those of relay.Hub.QueryID.
func (p *Pipeline) Query(ctx context.Context, prompt string) (string, error) {
	id := p.hub.NewID()
	if err := p.cfg.History.Record(ctx, id, prompt); err != nil && !errors.Is(err, history.ErrDisabled) {
		p.log.Warn().Err(err).Str("request_id", id).Msg("history record failed")
	}
	text, err := p.hub.QueryID(ctx, id, prompt)
	switch {
	case err == nil:
		p.answer(id, text)
	case errors.Is(err, relay.ErrTimeout):
		p.complete(id, types.StatusTimeout, "")
		p.pub.Publish(events.Event{Name: events.TimedOut, RequestID: id, Prompt: prompt, At: time.Now()})
	case errors.Is(err, relay.ErrMailboxFull):
		p.complete(id, types.StatusError, err.Error())
	}
	return text, err
}

// Status reports loop and queue state.
func (p *Pipeline) Status() types.StatusResponse {
	p.mu.RLock()
	prompt, id, reply, lastErr := p.prompt, p.promptID, p.lastReply, p.lastError
	p.mu.RUnlock()
	now := time.Now()
	st := types.StatusResponse{
		Running:        p.running.Load(),
		Busy:           p.client.Busy(),
		Prompt:         prompt,
		PromptID:       id,
		LastReply:      reply,
		LastError:      lastErr,
		MailboxDepth:   p.hub.Mailbox().Len(),
		PendingReplies: p.hub.Replies().Len(),
		Frames:         p.frames.Load(),
		FramesSkipped:  p.skipped.Load(),
		Calls:          p.client.Calls(),
		UptimeSeconds:  int64(now.Sub(p.started).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
	if p.cfg.EventStats != nil {
		published, failed := p.cfg.EventStats.Stats()
		st.Broker = &types.BrokerStats{Published: published, Failed: failed}
	}
	return st
}

// Ready reports whether the frame loop is running.
func (p *Pipeline) Ready() bool { return p.running.Load() }

// History lists recorded queries, newest first. It returns
// history.ErrDisabled when no store is configured.
func (p *Pipeline) History(ctx context.Context, offset, limit int) ([]types.HistoryEntry, int, error) {
	return p.cfg.History.List(ctx, offset, limit)
}

// HistoryEntry returns the recorded query with id.
func (p *Pipeline) HistoryEntry(ctx context.Context, id string) (types.HistoryEntry, bool, error) {
	return p.cfg.History.Get(ctx, id)
}
