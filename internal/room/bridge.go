// Package room bridges a real-time media room to the voice pipeline.
package room

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"voice-agent-service/internal/audio"
	"voice-agent-service/internal/models"
	"voice-agent-service/internal/observability/logging"
	"voice-agent-service/internal/observability/metrics"
	"voice-agent-service/internal/session"
)

// Errors for connection misuse.
var (
	ErrAlreadyConnected = errors.New("already connected to a room")
	ErrNotConnected     = errors.New("not connected to a room")
	ErrNotRecording     = errors.New("no utterance in progress")
)

// errStaleResult marks a pipeline result that outlived its connection.
var errStaleResult = errors.New("room connection changed since dispatch")

// State represents the bridge's connection lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// EventType tags transport events delivered to the bridge.
type EventType int

const (
	EventParticipantJoined EventType = iota
	EventParticipantLeft
	EventTrackSubscribed
	EventTrackUnsubscribed
	EventAudioFrame
	EventDisconnected
)

// Event is one transport occurrence. The transport delivers events from
// its own callbacks; the bridge serializes them onto a single loop.
type Event struct {
	Type        EventType
	Participant string
	TrackID     string
	Kind        TrackKind
	Frame       []byte
}

// EventSink receives transport events.
type EventSink interface {
	Deliver(ev Event)
}

// Conn is an established room connection.
type Conn interface {
	// PublishAudio publishes synthesized audio as a new outbound track
	// and returns the track id.
	PublishAudio(ctx context.Context, data []byte) (string, error)

	// ParticipantCount reports remote participants currently in the room.
	ParticipantCount() int

	Close() error
}

// Client joins media rooms.
type Client interface {
	Join(ctx context.Context, roomName, identity string, sink EventSink) (Conn, error)
}

// Processor runs the voice pipeline for finalized utterances.
type Processor interface {
	ProcessUtterance(ctx context.Context, s *session.Session, utt *audio.Utterance) (models.VoiceResult, error)
}

// Status is a snapshot of the bridge for the HTTP surface.
type Status struct {
	Connected        bool   `json:"connected"`
	RoomName         string `json:"room_name,omitempty"`
	ParticipantCount int    `json:"participant_count,omitempty"`
}

// Bridge owns one media-room connection.
//
//	DISCONNECTED → CONNECTING → CONNECTED → DISCONNECTED
//
// All connection state is mutated by a single event loop; transport
// callbacks and API calls feed that loop through queues, so a publish
// can never interleave with a disconnect. Recording is driven by
// explicit StartUtterance/StopUtterance signals, not by track events.
type Bridge struct {
	client    Client
	processor Processor
	log       zerolog.Logger
	metrics   *metrics.Metrics

	mu       sync.Mutex
	state    State
	roomName string
	identity string
	conn     Conn
	sess     *session.Session

	events chan Event
	cmds   chan func()
	done   chan struct{}

	// Loop-owned; never touched outside the event loop.
	buffer *audio.Buffer
	tracks map[string]TrackKind
}

// NewBridge creates a disconnected bridge.
func NewBridge(client Client, processor Processor) *Bridge {
	return &Bridge{
		client:    client,
		processor: processor,
		state:     StateDisconnected,
		log:       logging.WithComponent("room-bridge"),
		metrics:   metrics.DefaultMetrics,
	}
}

// Connect joins the named room and starts the event loop. Fails with
// ErrAlreadyConnected unless the bridge is disconnected.
func (b *Bridge) Connect(ctx context.Context, roomName, identity string) error {
	b.mu.Lock()
	if b.state != StateDisconnected {
		b.mu.Unlock()
		return ErrAlreadyConnected
	}
	b.state = StateConnecting
	b.roomName = roomName
	b.identity = identity
	b.events = make(chan Event, 256)
	b.cmds = make(chan func(), 16)
	b.done = make(chan struct{})
	b.mu.Unlock()

	conn, err := b.client.Join(ctx, roomName, identity, b)
	b.metrics.RecordRoomConnect(err)
	if err != nil {
		b.mu.Lock()
		b.state = StateDisconnected
		b.mu.Unlock()
		return fmt.Errorf("join room %s: %w", roomName, err)
	}

	b.mu.Lock()
	b.conn = conn
	b.sess = session.NewSession()
	b.state = StateConnected
	b.mu.Unlock()

	b.buffer = nil
	b.tracks = make(map[string]TrackKind)
	go b.run(b.events, b.cmds, b.done)

	b.log.Info().Str("room", roomName).Str("identity", identity).Msg("Connected to room")
	return nil
}

// Disconnect leaves the room. Any utterance still accumulating is
// discarded. Safe to call when already disconnected.
func (b *Bridge) Disconnect() error {
	err := b.do(func(done chan struct{}) error {
		b.teardown("disconnect requested", done)
		return nil
	})
	if errors.Is(err, ErrNotConnected) {
		return nil
	}
	return err
}

// StartUtterance begins recording inbound audio frames. An utterance
// already in progress is discarded and restarted.
func (b *Bridge) StartUtterance() error {
	return b.do(func(chan struct{}) error {
		if b.buffer != nil {
			b.log.Warn().Msg("Utterance restarted before stop, discarding buffered audio")
		}
		b.buffer = audio.NewBuffer()
		return nil
	})
}

// StopUtterance finalizes the current recording and hands it to the
// pipeline. Processing runs off-loop; the synthesized answer is
// published back into the room when it arrives.
func (b *Bridge) StopUtterance() error {
	return b.do(func(chan struct{}) error {
		if b.buffer == nil {
			return ErrNotRecording
		}
		utt, err := b.buffer.Finalize()
		b.buffer = nil
		if err != nil {
			return err
		}

		b.mu.Lock()
		sess := b.sess
		conn := b.conn
		b.mu.Unlock()

		go b.process(sess, conn, utt)
		return nil
	})
}

// Status reports the current connection snapshot.
func (b *Bridge) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := Status{Connected: b.state == StateConnected}
	if st.Connected {
		st.RoomName = b.roomName
		if b.conn != nil {
			st.ParticipantCount = b.conn.ParticipantCount()
		}
	}
	return st
}

// State returns the lifecycle state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Deliver implements EventSink. Events are queued for the loop; when the
// queue is full frames are dropped rather than blocking the transport
// callback.
func (b *Bridge) Deliver(ev Event) {
	b.mu.Lock()
	if b.state == StateDisconnected {
		b.mu.Unlock()
		return
	}
	events := b.events
	b.mu.Unlock()

	select {
	case events <- ev:
		b.metrics.RoomEventsQueued.Inc()
	default:
		b.log.Warn().Int("type", int(ev.Type)).Msg("Event queue full, dropping event")
	}
}

// do runs fn on the event loop and waits for its result. fn receives
// the loop's done channel so commands that tear the loop down can close
// the channel the loop is actually selecting on.
func (b *Bridge) do(fn func(done chan struct{}) error) error {
	b.mu.Lock()
	if b.state != StateConnected {
		b.mu.Unlock()
		return ErrNotConnected
	}
	cmds := b.cmds
	done := b.done
	b.mu.Unlock()

	reply := make(chan error, 1)
	select {
	case cmds <- func() { reply <- fn(done) }:
	case <-done:
		return ErrNotConnected
	}

	select {
	case err := <-reply:
		return err
	case <-done:
		return ErrNotConnected
	}
}

// run is the single writer for connection state. The loop works only
// against the channels it was started with and exits solely on its own
// done channel; a reconnect starts a fresh loop on fresh channels, so
// two loops never share the queues or the loop-owned fields.
func (b *Bridge) run(events chan Event, cmds chan func(), done chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		// Drain pending transport events before commands so frames
		// delivered ahead of a start/stop signal keep their order.
		select {
		case ev := <-events:
			b.metrics.RoomEventsQueued.Dec()
			b.handleEvent(ev, done)
		default:
			select {
			case <-done:
				return
			case fn := <-cmds:
				fn()
			case ev := <-events:
				b.metrics.RoomEventsQueued.Dec()
				b.handleEvent(ev, done)
			}
		}
	}
}

func (b *Bridge) handleEvent(ev Event, done chan struct{}) {
	switch ev.Type {
	case EventParticipantJoined:
		b.log.Info().Str("participant", ev.Participant).Msg("Participant joined")
	case EventParticipantLeft:
		b.log.Info().Str("participant", ev.Participant).Msg("Participant left")
	case EventTrackSubscribed:
		b.tracks[ev.TrackID] = ev.Kind
		b.log.Info().Str("trackId", ev.TrackID).Str("kind", ev.Kind.String()).
			Str("participant", ev.Participant).Msg("Track subscribed")
	case EventTrackUnsubscribed:
		delete(b.tracks, ev.TrackID)
		b.log.Info().Str("trackId", ev.TrackID).Msg("Track unsubscribed")
	case EventAudioFrame:
		// Frames only accumulate between explicit start/stop signals.
		if b.buffer == nil {
			return
		}
		b.metrics.RecordAudioReceived(len(ev.Frame))
		if err := b.buffer.Append(ev.Frame); err != nil {
			b.log.Warn().Err(err).Msg("Dropping frame for finalized buffer")
		}
	case EventDisconnected:
		b.teardown("remote disconnect", done)
	}
}

// teardown is loop-only: releases the connection and exits the loop.
// Closing the loop's done channel before the (possibly slow) conn.Close
// lets a new Connect proceed without the old loop ever observing the
// refreshed channels.
func (b *Bridge) teardown(reason string, done chan struct{}) {
	if b.buffer != nil {
		b.log.Info().Str("reason", reason).Msg("Discarding in-progress utterance")
		b.buffer = nil
	}
	b.tracks = nil

	b.mu.Lock()
	conn := b.conn
	b.conn = nil
	b.sess = nil
	b.state = StateDisconnected
	close(done)
	b.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			b.log.Warn().Err(err).Msg("Error closing room connection")
		}
	}
	b.log.Info().Str("reason", reason).Msg("Disconnected from room")
}

// process runs the pipeline for one utterance and publishes the answer
// back into the room it came from. A result arriving after the room was
// left or rejoined is discarded rather than played into the wrong room.
func (b *Bridge) process(sess *session.Session, conn Conn, utt *audio.Utterance) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := b.processor.ProcessUtterance(ctx, sess, utt)
	if err != nil {
		b.log.Warn().Err(err).Str("utteranceId", utt.ID).Msg("Utterance rejected")
		return
	}
	if len(result.ResponseAudio) == 0 {
		b.log.Info().Str("utteranceId", utt.ID).Msg("No response audio to publish")
		return
	}

	// Publishing goes through the loop so it cannot interleave with a
	// disconnect.
	perr := b.do(func(chan struct{}) error {
		b.mu.Lock()
		current := b.conn
		b.mu.Unlock()
		if current != conn {
			return errStaleResult
		}
		trackID, err := conn.PublishAudio(ctx, result.ResponseAudio)
		if err != nil {
			return err
		}
		b.log.Info().Str("trackId", trackID).Str("utteranceId", utt.ID).Msg("Published response audio")
		return nil
	})
	switch {
	case perr == nil:
	case errors.Is(perr, errStaleResult), errors.Is(perr, ErrNotConnected):
		b.log.Info().Str("utteranceId", utt.ID).Msg("Discarding response audio for a room no longer connected")
	default:
		// Degraded outcome: the caller already has the text response.
		b.metrics.RecordRoomPublishFailure()
		b.log.Warn().Err(perr).Str("utteranceId", utt.ID).Msg("Failed to publish response audio, result is text-only")
	}
}
