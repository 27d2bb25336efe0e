// Package bridge hosts the local WebSocket endpoint the browser
// extension connects to. The extension pushes a full conversation
// snapshot on connect and incremental events afterwards; the bridge
// feeds both into the host registry.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/maniya81/whatsapp-crm-extension/internal/host"
	"github.com/maniya81/whatsapp-crm-extension/internal/log"
)

const protocolVersion = 1

// ErrNotConnected is returned when an outbound command has no peer.
var ErrNotConnected = errors.New("host bridge is not connected")

// Config holds the bridge listener settings.
type Config struct {
	ListenAddr string
	Token      string
	Timeout    time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	out.ListenAddr = strings.TrimSpace(out.ListenAddr)
	out.Token = strings.TrimSpace(out.Token)
	if out.ListenAddr == "" {
		out.ListenAddr = "127.0.0.1:17455"
	}
	if out.Timeout <= 0 {
		out.Timeout = 15 * time.Second
	}
	return out
}

// Bridge accepts one extension connection at a time. A newer connection
// replaces the older one; its snapshot resets the registry so state from
// the dead connection cannot linger.
type Bridge struct {
	cfg      Config
	registry *host.Registry

	mu      sync.RWMutex
	ln      net.Listener
	httpSrv *http.Server
	addr    string
	conn    *websocket.Conn

	writeMu sync.Mutex
}

// New creates a bridge feeding the given registry.
func New(cfg Config, registry *host.Registry) *Bridge {
	return &Bridge{cfg: cfg.withDefaults(), registry: registry}
}

// Addr returns the bound listen address, empty before Start.
func (b *Bridge) Addr() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.addr
}

// Connected reports whether an extension is attached.
func (b *Bridge) Connected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.conn != nil
}

// Start binds the listener and serves in the background. The listen
// address must be loopback; the bridge is not meant to cross machines.
func (b *Bridge) Start() error {
	b.mu.Lock()
	if b.ln != nil {
		b.mu.Unlock()
		return nil
	}
	cfg := b.cfg
	b.mu.Unlock()

	host, _, err := net.SplitHostPort(cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("invalid bridge listen addr %q: %w", cfg.ListenAddr, err)
	}
	if host != "localhost" {
		ip := net.ParseIP(host)
		if ip == nil || !ip.IsLoopback() {
			return fmt.Errorf("bridge listen addr must bind to loopback, got %q", cfg.ListenAddr)
		}
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %q: %w", cfg.ListenAddr, err)
	}
	addr := ln.Addr().String()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", b.handleWS)

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	b.mu.Lock()
	b.ln = ln
	b.httpSrv = httpSrv
	b.addr = addr
	b.mu.Unlock()

	go func() {
		_ = httpSrv.Serve(ln)
	}()

	log.Info(log.CatHost, "bridge listening", "addr", addr)
	return nil
}

// Close drops the current connection and shuts the listener down.
func (b *Bridge) Close(ctx context.Context) error {
	b.mu.Lock()
	srv := b.httpSrv
	conn := b.conn
	b.httpSrv = nil
	b.conn = nil
	b.ln = nil
	b.addr = ""
	b.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if srv == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return srv.Shutdown(ctx)
}

// WaitForConnected polls until an extension attaches or the timeout hits.
func (b *Bridge) WaitForConnected(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = b.cfg.Timeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if b.Connected() {
			return nil
		}
		select {
		case <-waitCtx.Done():
			return waitCtx.Err()
		case <-ticker.C:
		}
	}
}

// FocusConversation asks the extension to open a conversation in the
// host UI. Used when the user activates a row.
func (b *Bridge) FocusConversation(ctx context.Context, conversationID string) error {
	return b.send(outboundMessage{
		Type:           "focus_conversation",
		RequestID:      uuid.NewString(),
		ConversationID: conversationID,
	})
}

// ClaimList asks the extension to hide the native chat list and hand the
// region to the overlay. The takeover controller calls this through its
// Surface.
func (b *Bridge) ClaimList(ctx context.Context) error {
	return b.send(outboundMessage{
		Type:      "claim_list",
		RequestID: uuid.NewString(),
	})
}

// ReleaseList restores the native chat list.
func (b *Bridge) ReleaseList(ctx context.Context) error {
	return b.send(outboundMessage{
		Type:      "release_list",
		RequestID: uuid.NewString(),
	})
}

func (b *Bridge) send(msg outboundMessage) error {
	b.mu.RLock()
	conn := b.conn
	b.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	return b.writeJSON(conn, msg)
}

type helloMessage struct {
	Type    string `json:"type"`
	Token   string `json:"token,omitempty"`
	Client  string `json:"client,omitempty"`
	Version int    `json:"version,omitempty"`
}

type welcomeMessage struct {
	Type    string `json:"type"`
	Version int    `json:"version"`
}

// inboundMessage is the envelope for snapshots and events from the
// extension. Fields are populated per Type.
type inboundMessage struct {
	Type           string                   `json:"type"`
	SelfID         string                   `json:"self_id,omitempty"`
	Conversations  []host.ConversationState `json:"conversations,omitempty"`
	Event          host.EventKind           `json:"event,omitempty"`
	Conversation   *host.ConversationState  `json:"conversation,omitempty"`
	ConversationID string                   `json:"conversation_id,omitempty"`
}

type outboundMessage struct {
	Type           string `json:"type"`
	RequestID      string `json:"request_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

func (b *Bridge) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	if err := b.accept(conn); err != nil {
		log.Warn(log.CatHost, "rejected bridge connection", "error", err.Error())
		_ = conn.Close()
		return
	}
	go b.readLoop(conn)
}

func (b *Bridge) accept(conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	var hello helloMessage
	if err := json.Unmarshal(data, &hello); err != nil {
		return fmt.Errorf("parse hello: %w", err)
	}
	if strings.ToLower(strings.TrimSpace(hello.Type)) != "hello" {
		return fmt.Errorf("expected hello, got %q", hello.Type)
	}
	if b.cfg.Token != "" && hello.Token != b.cfg.Token {
		return errors.New("unauthorized")
	}

	_ = conn.SetReadDeadline(time.Time{})
	if err := b.writeJSON(conn, welcomeMessage{Type: "welcome", Version: protocolVersion}); err != nil {
		return err
	}

	b.mu.Lock()
	if b.conn != nil {
		_ = b.conn.Close()
	}
	b.conn = conn
	b.mu.Unlock()

	log.Info(log.CatHost, "extension connected", "client", hello.Client, "version", hello.Version)
	return nil
}

// readLoop dispatches inbound messages until the connection dies. Only
// the current connection's loop may touch the registry; a superseded
// loop exits without side effects.
func (b *Bridge) readLoop(conn *websocket.Conn) {
	defer func() {
		b.mu.Lock()
		current := b.conn == conn
		if current {
			b.conn = nil
		}
		b.mu.Unlock()
		_ = conn.Close()
		if current {
			log.Warn(log.CatHost, "extension disconnected")
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		b.mu.RLock()
		current := b.conn == conn
		b.mu.RUnlock()
		if !current {
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn(log.CatHost, "dropping malformed bridge message", "error", err.Error())
			continue
		}
		b.dispatch(msg)
	}
}

func (b *Bridge) dispatch(msg inboundMessage) {
	switch msg.Type {
	case "snapshot":
		b.registry.Reset(msg.SelfID, msg.Conversations)
	case "event":
		switch msg.Event {
		case host.EventRemoved:
			b.registry.Remove(msg.ConversationID)
		case host.EventAdded, host.EventMessagesChanged, host.EventUnreadChanged:
			if msg.Conversation == nil {
				log.Warn(log.CatHost, "event without conversation payload", "event", string(msg.Event))
				return
			}
			b.registry.Apply(msg.Event, *msg.Conversation)
		default:
			log.Warn(log.CatHost, "unknown bridge event", "event", string(msg.Event))
		}
	default:
		log.Warn(log.CatHost, "unknown bridge message type", "type", msg.Type)
	}
}

func (b *Bridge) writeJSON(conn *websocket.Conn, v any) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(b.cfg.Timeout))
	return conn.WriteJSON(v)
}
