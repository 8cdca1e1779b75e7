package app

import (
	"encoding/json"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/qing-wang/WebRTC-SS/internal/core"
)

// serverSender is the from-field stamped on relay-originated envelopes.
const serverSender = "Server"

// Engine is the signaling state machine. It consumes decoded envelopes and
// connection lifecycle events, mutates registry/room state and pushes
// outbound envelopes to specific connections. Every per-message failure is
// isolated to that message: it is logged and dropped, never retried and
// never allowed to disturb other connections.
type Engine struct {
	reg   *Registry
	joins *JoinLimiter
}

// NewEngine builds an engine over reg. joins may be nil to disable join
// rate limiting.
func NewEngine(reg *Registry, joins *JoinLimiter) *Engine {
	return &Engine{reg: reg, joins: joins}
}

func (e *Engine) Registry() *Registry { return e.reg }

// OnConnectionOpened is the transport hook for a freshly upgraded
// connection. The connection stays unjoined until its join envelope.
func (e *Engine) OnConnectionOpened(conn core.SignalConnection) {
	log.Debug().Str("module", "app.engine").Str("sid", string(conn.ID())).Msg("connection opened")
}

// OnTextFrame dispatches one decoded text frame from conn. Frames for one
// connection arrive in send order; frames across connections race freely.
func (e *Engine) OnTextFrame(conn core.SignalConnection, raw []byte) {
	env, err := core.DecodeEnvelope(raw)
	if err != nil {
		log.Error().Err(err).Str("module", "app.engine").Str("sid", string(conn.ID())).Msg("malformed envelope")
		return
	}
	log.Debug().Str("module", "app.engine").Str("type", string(env.Type)).Str("from", env.From).Msg("envelope received")

	switch env.Type {
	case core.MsgText:
		log.Debug().Str("module", "app.engine").Str("from", env.From).Str("text", env.Data).Msg("text message")
	case core.MsgOffer, core.MsgAnswer, core.MsgICE:
		e.handleSignal(conn, env)
	case core.MsgJoin:
		e.handleJoin(conn, env)
	case core.MsgLeave:
		e.handleLeave(conn, env)
	default:
		log.Warn().Str("module", "app.engine").Str("type", string(env.Type)).Msg("unknown envelope type")
	}
}

// OnConnectionClosed is the transport hook for a dropped connection. A
// bound connection is removed from its room; the empty-room cache reset
// happens inside the room when the last member goes.
func (e *Engine) OnConnectionClosed(conn core.SignalConnection, reason error) {
	sid := conn.ID()
	log.Debug().Err(reason).Str("module", "app.engine").Str("sid", string(sid)).Msg("connection closed")
	if e.joins != nil {
		e.joins.Forget(sid)
	}
	room, ok := e.reg.Unbind(sid)
	if !ok {
		return
	}
	room.RemoveMemberBySession(sid)
}

// handleJoin binds the connection to the requested room and acks the
// sender. The ack's data reports whether any room had members before this
// join; its sdp carries the room's cached offer so a late joiner catches
// up without replaying history. A join for an unknown room gets no reply:
// the missing ack is the client's failure signal.
func (e *Engine) handleJoin(conn core.SignalConnection, env core.Envelope) {
	sid := conn.ID()
	if e.joins != nil && !e.joins.Allow(sid) {
		log.Warn().Str("module", "app.engine").Str("sid", string(sid)).Msg("join rate limited")
		return
	}

	id, err := core.ParseRoomID(env.Data)
	if err != nil {
		log.Error().Err(err).Str("module", "app.engine").Str("data", env.Data).Msg("join: bad room id")
		return
	}
	room, ok := e.reg.FindRoom(id)
	if !ok {
		log.Error().Str("module", "app.engine").Int64("room", id).Msg("join: room not found")
		return
	}

	occupied := e.reg.AnyMembers()
	cached, hasCached := room.CachedOffer()

	room.AddMember(env.From, conn)
	e.reg.Bind(sid, room)
	log.Info().Str("module", "app.engine").Str("name", env.From).Int64("room", id).Msg("joined room")

	reply := core.Envelope{
		From: serverSender,
		Type: core.MsgJoin,
		Data: strconv.FormatBool(occupied),
	}
	if hasCached {
		sdp, err := json.Marshal(cached)
		if err != nil {
			log.Error().Err(err).Str("module", "app.engine").Msg("join: marshal cached offer")
		} else {
			reply.SDP = sdp
		}
	}
	e.send(conn, reply)
}

// handleLeave removes the sender from its room. When the leaver is the
// recorded initiator the whole room is torn down: every remaining
// connection is unbound, removed and force-closed.
func (e *Engine) handleLeave(conn core.SignalConnection, env core.Envelope) {
	sid := conn.ID()
	room, ok := e.reg.Lookup(sid)
	if !ok {
		log.Debug().Str("module", "app.engine").Str("sid", string(sid)).Msg("leave: not bound")
		return
	}
	log.Info().Str("module", "app.engine").Str("from", env.From).Int64("room", room.ID()).Msg("leaving room")

	name, found := room.MemberNameBySession(sid)
	if found {
		room.RemoveMemberByName(name)
	}
	e.reg.Unbind(sid)

	if found && name == room.Initiator() {
		log.Info().Str("module", "app.engine").Str("initiator", name).Int64("room", room.ID()).Msg("initiator left, closing room sessions")
		for _, peer := range room.Drain() {
			e.reg.Unbind(peer.ID())
			peer.Close()
		}
	}
}

// handleSignal relays one offer/answer/ice envelope to every other member
// of the sender's room. The first signal seen by an empty negotiation is
// cached, whatever its type, and its sender becomes the initiator.
func (e *Engine) handleSignal(conn core.SignalConnection, env core.Envelope) {
	sid := conn.ID()
	room, ok := e.reg.Lookup(sid)
	if !ok {
		log.Warn().Str("module", "app.engine").Str("sid", string(sid)).Str("type", string(env.Type)).Msg("signal: not bound, dropped")
		return
	}

	if room.SetOfferIfAbsent(env.From, core.WrapOffer(env.SDP)) {
		log.Debug().Str("module", "app.engine").Str("initiator", env.From).Int64("room", room.ID()).Msg("negotiation started")
	}

	out := core.Envelope{
		From:      env.From,
		Type:      env.Type,
		Data:      env.Data,
		Candidate: env.Candidate,
		SDP:       env.SDP,
	}
	frame, err := out.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "app.engine").Msg("signal: encode")
		return
	}

	sent, dropped := 0, 0
	for _, peer := range room.PeersExcept(env.From) {
		if err := peer.TrySend(frame); err != nil {
			dropped++
			log.Warn().Err(err).Str("module", "app.engine").Str("peer", string(peer.ID())).Msg("signal: send failed, dropped")
			continue
		}
		sent++
	}
	log.Debug().Str("module", "app.engine").Str("from", env.From).Int("sent_to", sent).Int("dropped", dropped).Msg("signal relayed")
}

func (e *Engine) send(conn core.SignalConnection, env core.Envelope) {
	frame, err := env.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "app.engine").Msg("send: encode")
		return
	}
	if err := conn.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "app.engine").Str("sid", string(conn.ID())).Msg("send failed")
	}
}
