package signaling

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/rudp/internal/util"
)

// peer is the part of transport.Transport a session drives.
type peer interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
}

// session trades SDP and ICE for one peer over one WebSocket. Writes are
// serialized; reads happen only in run.
type session struct {
	pc  peer
	ws  *websocket.Conn
	wmu sync.Mutex
}

func newSession(pc peer, ws *websocket.Conn) *session {
	return &session{pc: pc, ws: ws}
}

func (s *session) write(msg message) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.ws.WriteJSON(msg)
}

// describe creates the local description of type t, applies it and sends it.
func (s *session) describe(t webrtc.SDPType) error {
	create, kind := s.pc.CreateOffer, msgTypeOffer
	if t == webrtc.SDPTypeAnswer {
		create, kind = s.pc.CreateAnswer, msgTypeAnswer
	}

	desc, err := create()
	if err != nil {
		return fmt.Errorf("create %s: %w", t, err)
	}
	if err := s.pc.SetLocalDescription(desc); err != nil {
		return fmt.Errorf("set local %s: %w", t, err)
	}
	return s.write(message{Type: kind, SDP: desc.SDP})
}

func (s *session) offer() error { return s.describe(webrtc.SDPTypeOffer) }

// candidate forwards a local ICE candidate as JSON.
func (s *session) candidate(init webrtc.ICECandidateInit) error {
	data, err := json.Marshal(init)
	if err != nil {
		return err
	}
	return s.write(message{Type: msgTypeCandidate, Candidate: string(data)})
}

// run applies inbound messages until the WebSocket fails or is closed.
// An offer is answered immediately.
func (s *session) run() error {
	for {
		var msg message
		if err := s.ws.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read signaling message: %w", err)
		}
		if err := s.apply(msg); err != nil {
			return err
		}
	}
}

func (s *session) apply(msg message) error {
	switch msg.Type {
	case msgTypeOffer:
		if err := s.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: msg.SDP}); err != nil {
			return fmt.Errorf("apply offer: %w", err)
		}
		return s.describe(webrtc.SDPTypeAnswer)

	case msgTypeAnswer:
		if err := s.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: msg.SDP}); err != nil {
			return fmt.Errorf("apply answer: %w", err)
		}

	case msgTypeCandidate:
		var init webrtc.ICECandidateInit
		if err := json.Unmarshal([]byte(msg.Candidate), &init); err != nil {
			return fmt.Errorf("parse ICE candidate: %w", err)
		}
		if err := s.pc.AddICECandidate(init); err != nil {
			return fmt.Errorf("add ICE candidate: %w", err)
		}

	default:
		util.LogWarning("ignoring signaling message of type %q", msg.Type)
	}
	return nil
}
