package room

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	webrtcmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog"

	"voice-agent-service/internal/observability/logging"
)

// LiveKitClient implements Client against a LiveKit server.
type LiveKitClient struct {
	url       string
	apiKey    string
	apiSecret string
	log       zerolog.Logger
}

// NewLiveKitClient stores the connection credentials.
func NewLiveKitClient(url, apiKey, apiSecret string) *LiveKitClient {
	return &LiveKitClient{
		url:       url,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		log:       logging.WithComponent("livekit-client"),
	}
}

// Join connects to the room and translates SDK callbacks into bridge
// events. Subscribed remote audio tracks are pumped into the sink frame
// by frame.
func (c *LiveKitClient) Join(ctx context.Context, roomName, identity string, sink EventSink) (Conn, error) {
	if c.url == "" || c.apiKey == "" || c.apiSecret == "" {
		return nil, errors.New("livekit credentials not configured")
	}

	callback := &lksdk.RoomCallback{
		OnParticipantConnected: func(p *lksdk.RemoteParticipant) {
			sink.Deliver(Event{Type: EventParticipantJoined, Participant: p.Identity()})
		},
		OnParticipantDisconnected: func(p *lksdk.RemoteParticipant) {
			sink.Deliver(Event{Type: EventParticipantLeft, Participant: p.Identity()})
		},
		OnDisconnected: func() {
			sink.Deliver(Event{Type: EventDisconnected})
		},
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: func(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				kind := kindOf(track.Kind())
				sink.Deliver(Event{
					Type:        EventTrackSubscribed,
					TrackID:     pub.SID(),
					Participant: rp.Identity(),
					Kind:        kind,
				})
				if kind == TrackAudio {
					go c.pumpAudio(track, rp.Identity(), sink)
				}
			},
			OnTrackUnsubscribed: func(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				sink.Deliver(Event{
					Type:        EventTrackUnsubscribed,
					TrackID:     pub.SID(),
					Participant: rp.Identity(),
					Kind:        kindOf(track.Kind()),
				})
			},
		},
	}

	rm, err := lksdk.ConnectToRoom(c.url, lksdk.ConnectInfo{
		APIKey:              c.apiKey,
		APISecret:           c.apiSecret,
		RoomName:            roomName,
		ParticipantIdentity: identity,
		ParticipantName:     identity,
	}, callback)
	if err != nil {
		return nil, fmt.Errorf("connect to room: %w", err)
	}

	return &liveKitConn{room: rm, log: c.log}, nil
}

// kindOf translates the transport's codec type into the named track
// kind at the boundary.
func kindOf(k webrtc.RTPCodecType) TrackKind {
	if k == webrtc.RTPCodecTypeAudio {
		return TrackAudio
	}
	return TrackVideo
}

// pumpAudio reads RTP packets from a remote track and delivers the
// payloads as audio-frame events until the track ends.
func (c *LiveKitClient) pumpAudio(track *webrtc.TrackRemote, participant string, sink EventSink) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if err != io.EOF {
				c.log.Warn().Err(err).Str("participant", participant).Msg("Audio track read error")
			}
			return
		}
		if len(pkt.Payload) == 0 {
			continue
		}
		sink.Deliver(Event{
			Type:        EventAudioFrame,
			Participant: participant,
			Kind:        TrackAudio,
			Frame:       pkt.Payload,
		})
	}
}

type liveKitConn struct {
	room *lksdk.Room
	log  zerolog.Logger
}

// frameDuration is the sample pacing used when writing synthesized
// audio to the outbound track.
const frameDuration = 20 * time.Millisecond

// PublishAudio publishes one synthesized response as a local sample
// track sourced as microphone audio.
func (c *liveKitConn) PublishAudio(ctx context.Context, data []byte) (string, error) {
	track, err := lksdk.NewLocalSampleTrack(webrtc.RTPCodecCapability{
		MimeType: webrtc.MimeTypeOpus,
	})
	if err != nil {
		return "", fmt.Errorf("create sample track: %w", err)
	}

	provider := newChunkProvider(data)
	if err := track.StartWrite(provider, func() {
		c.log.Debug().Msg("Response audio write completed")
	}); err != nil {
		return "", fmt.Errorf("start sample writer: %w", err)
	}

	pub, err := c.room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name:   "agent-response",
		Source: livekit.TrackSource_MICROPHONE,
	})
	if err != nil {
		return "", fmt.Errorf("publish track: %w", err)
	}
	return pub.SID(), nil
}

func (c *liveKitConn) ParticipantCount() int {
	return len(c.room.GetRemoteParticipants())
}

func (c *liveKitConn) Close() error {
	c.room.Disconnect()
	return nil
}

// chunkProvider feeds a fixed audio blob to a sample track in paced
// chunks.
type chunkProvider struct {
	chunks chan []byte
}

func newChunkProvider(data []byte) *chunkProvider {
	const chunkSize = 960 // 20ms of 48kHz 16-bit mono

	p := &chunkProvider{chunks: make(chan []byte, len(data)/chunkSize+1)}
	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		p.chunks <- data[off:end]
	}
	close(p.chunks)
	return p
}

// NextSample returns the next paced chunk, then io.EOF.
func (p *chunkProvider) NextSample(ctx context.Context) (webrtcmedia.Sample, error) {
	select {
	case <-ctx.Done():
		return webrtcmedia.Sample{}, ctx.Err()
	case chunk, ok := <-p.chunks:
		if !ok {
			return webrtcmedia.Sample{}, io.EOF
		}
		return webrtcmedia.Sample{Data: chunk, Duration: frameDuration}, nil
	}
}

func (p *chunkProvider) OnBind() error   { return nil }
func (p *chunkProvider) OnUnbind() error { return nil }

func (p *chunkProvider) Close() error { return nil }
