package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/cardroom/cardroom/internal/game"
	"github.com/cardroom/cardroom/internal/room"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

var ErrConnectionClosed = websocket.ErrCloseSent

// subscription tracks one live room snapshot stream for a connection,
// keyed by the table's subscription id. Explicit subscribes and the
// stream returned by start_game are tracked alike, so closing the
// connection releases every stream it holds.
type subscription struct {
	roomID string
	table  *game.Table
}

// Connection wraps one websocket client. Frames are written by a single
// write pump; room snapshot streams are forwarded into the same send
// channel, so a client sees updates in publish order per room.
type Connection struct {
	conn   *websocket.Conn
	send   chan *Message
	rooms  *room.Manager
	logger *log.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu   sync.Mutex
	subs map[uint64]subscription
}

// NewConnection wraps an upgraded websocket.
func NewConnection(conn *websocket.Conn, rooms *room.Manager, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:   conn,
		send:   make(chan *Message, 256),
		rooms:  rooms,
		logger: logger.WithPrefix("conn").With("remote", conn.RemoteAddr().String()),
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[uint64]subscription),
	}
}

// Start begins the read and write pumps.
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close tears down the connection and every room subscription.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()

		c.mu.Lock()
		for id, sub := range c.subs {
			sub.table.Unsubscribe(id)
			delete(c.subs, id)
		}
		c.mu.Unlock()

		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a frame for the write pump. A full buffer closes
// the connection rather than blocking the table.
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Send channel closed during shutdown.
			c.logger.Debug("send on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			return
		}
		c.handleMessage(&msg)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("write failed", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("received message", "type", msg.Type, "room", msg.RoomID)

	switch msg.Type {
	case MessageTypeCurrentState:
		c.handleCurrentState(msg)
	case MessageTypePlayerView:
		c.handlePlayerView(msg)
	case MessageTypeProcessEvent:
		c.handleProcessEvent(msg)
	case MessageTypeStartGame:
		c.handleStartGame(msg)
	case MessageTypeSubscribe:
		c.handleSubscribe(msg)
	case MessageTypeUnsubscribe:
		c.handleUnsubscribe(msg)
	case MessageTypeListRooms:
		c.handleListRooms(msg)
	default:
		c.sendError(msg, "unknown_message_type", "unknown message type: "+msg.Type.String())
	}
}

func (c *Connection) handleCurrentState(msg *Message) {
	tbl, ok := c.rooms.Lookup(msg.RoomID)
	if !ok {
		c.sendError(msg, "room_not_found", "no such room: "+msg.RoomID)
		return
	}
	c.reply(msg, MessageTypeState, tbl.CurrentState())
}

func (c *Connection) handlePlayerView(msg *Message) {
	var req PlayerViewRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		c.sendError(msg, "invalid_message", "failed to parse player view request")
		return
	}
	tbl, ok := c.rooms.Lookup(msg.RoomID)
	if !ok {
		c.sendError(msg, "room_not_found", "no such room: "+msg.RoomID)
		return
	}
	view, err := tbl.PlayerView(req.PlayerID)
	if err != nil {
		c.sendError(msg, errorCode(err), err.Error())
		return
	}
	c.reply(msg, MessageTypeView, view)
}

// handleProcessEvent applies one event. A join references the room by
// ID and creates it on first use; everything else requires it to exist.
func (c *Connection) handleProcessEvent(msg *Message) {
	var env EventEnvelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		c.sendError(msg, "invalid_message", "failed to parse event payload")
		return
	}
	ev, err := env.Event()
	if err != nil {
		c.sendError(msg, errorCode(err), err.Error())
		return
	}

	var tbl *game.Table
	if _, isJoin := ev.(game.Join); isJoin {
		tbl = c.rooms.Get(msg.RoomID)
	} else {
		var ok bool
		tbl, ok = c.rooms.Lookup(msg.RoomID)
		if !ok {
			c.sendError(msg, "room_not_found", "no such room: "+msg.RoomID)
			return
		}
	}

	state, err := tbl.ProcessEvent(ev)
	if err != nil {
		c.sendError(msg, errorCode(err), err.Error())
		return
	}
	c.reply(msg, MessageTypeState, state)
}

func (c *Connection) handleStartGame(msg *Message) {
	tbl, ok := c.rooms.Lookup(msg.RoomID)
	if !ok {
		c.sendError(msg, "room_not_found", "no such room: "+msg.RoomID)
		return
	}
	id, updates, err := tbl.StartGame()
	if err != nil {
		c.sendError(msg, errorCode(err), err.Error())
		return
	}
	c.track(id, msg.RoomID, tbl)
	go c.forward(msg.RoomID, id, updates)
}

// handleSubscribe attaches to an existing room's snapshot stream. Only a
// join creates rooms; a subscribe to an unknown id is an error, not a
// fresh empty room.
func (c *Connection) handleSubscribe(msg *Message) {
	tbl, ok := c.rooms.Lookup(msg.RoomID)
	if !ok {
		c.sendError(msg, "room_not_found", "no such room: "+msg.RoomID)
		return
	}

	c.mu.Lock()
	for _, sub := range c.subs {
		if sub.roomID == msg.RoomID {
			c.mu.Unlock()
			c.sendError(msg, "already_subscribed", "already subscribed to room: "+msg.RoomID)
			return
		}
	}
	id, updates := tbl.Updates()
	c.subs[id] = subscription{roomID: msg.RoomID, table: tbl}
	c.mu.Unlock()

	// Initial snapshot so the subscriber does not wait for the next event.
	c.reply(msg, MessageTypeState, tbl.CurrentState())
	go c.forward(msg.RoomID, id, updates)
}

func (c *Connection) handleUnsubscribe(msg *Message) {
	c.mu.Lock()
	found := false
	for id, sub := range c.subs {
		if sub.roomID == msg.RoomID {
			delete(c.subs, id)
			sub.table.Unsubscribe(id)
			found = true
		}
	}
	c.mu.Unlock()

	if !found {
		c.sendError(msg, "not_subscribed", "not subscribed to room: "+msg.RoomID)
	}
}

func (c *Connection) track(id uint64, roomID string, tbl *game.Table) {
	c.mu.Lock()
	c.subs[id] = subscription{roomID: roomID, table: tbl}
	c.mu.Unlock()
}

func (c *Connection) handleListRooms(msg *Message) {
	c.reply(msg, MessageTypeRoomList, RoomListData{Rooms: c.rooms.List()})
}

// forward relays one room's snapshot stream to the client until the
// stream closes or the connection dies.
func (c *Connection) forward(roomID string, id uint64, updates <-chan game.TableState) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case state, ok := <-updates:
			if !ok {
				end, err := NewMessage(MessageTypeStreamEnd, nil)
				if err == nil {
					end.RoomID = roomID
					_ = c.SendMessage(end)
				}
				c.mu.Lock()
				delete(c.subs, id)
				c.mu.Unlock()
				return
			}
			frame, err := NewMessage(MessageTypeState, state)
			if err != nil {
				c.logger.Error("failed to encode snapshot", "room", roomID, "error", err)
				continue
			}
			frame.RoomID = roomID
			if err := c.SendMessage(frame); err != nil {
				return
			}
		}
	}
}

func (c *Connection) reply(req *Message, t MessageType, payload any) {
	frame, err := NewMessage(t, payload)
	if err != nil {
		c.logger.Error("failed to create reply", "type", t, "error", err)
		return
	}
	frame.RoomID = req.RoomID
	frame.RequestID = req.RequestID
	_ = c.SendMessage(frame)
}

func (c *Connection) sendError(req *Message, code, message string) {
	frame, err := NewMessage(MessageTypeError, ErrorData{Code: code, Message: message})
	if err != nil {
		c.logger.Error("failed to create error message", "error", err)
		return
	}
	if req != nil {
		frame.RoomID = req.RoomID
		frame.RequestID = req.RequestID
	}
	_ = c.SendMessage(frame)
}
