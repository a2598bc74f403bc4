package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	mu          sync.RWMutex
	instruments map[string]bool // empty = all
}

// clientMsg is what peers send: a new instrument filter or a ping.
type clientMsg struct {
	Type        string   `json:"type"`
	Instruments []string `json:"instruments"`
	Ping        int64    `json:"ping"`
}

// ServeWS upgrades the request and attaches the peer to hub.
//
// Query parameters: instruments=EURUSDb,USDJPYb restricts the feed;
// last_seq=N replays buffered envelopes newer than N.
func ServeWS(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[gateway] ws upgrade error: %v", err)
			return
		}

		c := &Client{conn: conn, send: make(chan []byte, sendBuffer), hub: hub}
		c.setInstruments(splitList(r.URL.Query().Get("instruments")))

		lastSeq := int64(-1)
		if v := r.URL.Query().Get("last_seq"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
				lastSeq = n
			}
		}
		hub.AddClient(c, lastSeq)
		log.Printf("[gateway] ws client connected (%d)", hub.ClientCount())

		go c.writePump()
		go c.readPump()
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Client) setInstruments(list []string) {
	set := make(map[string]bool, len(list))
	for _, s := range list {
		set[s] = true
	}
	c.mu.Lock()
	c.instruments = set
	c.mu.Unlock()
}

func (c *Client) wants(instrument string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.instruments) == 0 || c.instruments[instrument]
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMsg
		if json.Unmarshal(raw, &msg) != nil {
			continue
		}

		switch msg.Type {
		case "SUBSCRIBE":
			c.setInstruments(msg.Instruments)
		default:
			if msg.Ping > 0 {
				pong, _ := json.Marshal(map[string]interface{}{
					"type":      "pong",
					"ping":      msg.Ping,
					"server_ts": time.Now().UnixMilli(),
				})
				c.hub.mu.RLock()
				select {
				case c.send <- pong:
				default:
				}
				c.hub.mu.RUnlock()
			}
		}
	}
}
