package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

// PublishResult reports delivery stats of one publish.
type PublishResult struct {
	SentTo  int
	Dropped []core.SessionID
}

// PubSub is the in-process broadcast transport: every subscriber of a
// channel receives each published frame. Sends never block; a full
// subscriber buffer is handed to the backpressure Policy.
type PubSub struct {
	mu       sync.RWMutex
	channels map[string]map[core.SessionID]core.SignalConnection
	policy   Policy
}

var _ core.Publisher = (*PubSub)(nil)

func NewPubSub(policy Policy) *PubSub {
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &PubSub{
		channels: make(map[string]map[core.SessionID]core.SignalConnection),
		policy:   policy,
	}
}

func (p *PubSub) Subscribe(channel string, sid core.SessionID, conn core.SignalConnection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	subs, ok := p.channels[channel]
	if !ok {
		subs = make(map[core.SessionID]core.SignalConnection)
		p.channels[channel] = subs
	}
	subs[sid] = conn
	log.Debug().Str("module", "app.pubsub").Str("channel", channel).Str("sid", string(sid)).Msg("subscribed")
}

func (p *PubSub) Unsubscribe(channel string, sid core.SessionID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unsubscribeLocked(channel, sid)
}

func (p *PubSub) UnsubscribeAll(sid core.SessionID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for channel := range p.channels {
		p.unsubscribeLocked(channel, sid)
	}
}

func (p *PubSub) unsubscribeLocked(channel string, sid core.SessionID) {
	subs, ok := p.channels[channel]
	if !ok {
		return
	}
	delete(subs, sid)
	if len(subs) == 0 {
		delete(p.channels, channel)
	}
}

func (p *PubSub) SubscriberCount(channel string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.channels[channel])
}

// Publish encodes msg once and fans it out to the channel.
func (p *PubSub) Publish(channel string, msg domain.SignalingMessage) {
	frame, err := msg.EncodeFrame()
	if err != nil {
		log.Error().Err(err).Str("module", "app.pubsub").Str("type", msg.Type.String()).Msg("encode message")
		return
	}
	res := p.PublishFrame(channel, frame)
	log.Debug().Str("module", "app.pubsub").
		Str("channel", channel).
		Str("type", msg.Type.String()).
		Int("sent_to", res.SentTo).
		Int("dropped", len(res.Dropped)).
		Msg("broadcast result")
}

// PublishFrame sends an encoded frame to every subscriber of channel.
func (p *PubSub) PublishFrame(channel string, frame core.Frame) PublishResult {
	res, slow := p.fanOut(channel, frame)
	for sid, conn := range slow {
		switch p.policy.OnBackPressure(channel, sid) {
		case KickMember:
			log.Warn().Str("module", "app.pubsub").Str("channel", channel).Str("sid", string(sid)).Msg("kicking slow subscriber")
			p.UnsubscribeAll(sid)
			conn.Close()
		case DropFrame, NoAction:
		}
	}
	return res
}

func (p *PubSub) fanOut(channel string, frame core.Frame) (PublishResult, map[core.SessionID]core.SignalConnection) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	res := PublishResult{}
	var slow map[core.SessionID]core.SignalConnection
	for sid, conn := range p.channels[channel] {
		if err := conn.TrySend(frame); err != nil {
			res.Dropped = append(res.Dropped, sid)
			if slow == nil {
				slow = make(map[core.SessionID]core.SignalConnection)
			}
			slow[sid] = conn
			continue
		}
		res.SentTo++
	}
	return res, slow
}
