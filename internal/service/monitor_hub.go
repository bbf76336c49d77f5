package service

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"sync"
	"time"

	"olimpo_backend/pkg/logger"
	"olimpo_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	shardCount     = 32
	presenceTTL    = 2 * time.Minute

	hubChannel = "monitor_channel"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one live WebSocket connection subscribed to a single topic.
type Client struct {
	Hub     *MonitorHub
	Conn    *websocket.Conn
	Send    chan []byte
	ID      string
	Topic   Topic
	Kind    string // "admin" | "participant"
	Limiter *rate.Limiter

	// OnMessage handles one inbound frame; set by the owning controller
	// before the pumps start.
	OnMessage func(*Client, []byte)

	// EvaluationID/ParticipantID identify the session for presence keys;
	// ParticipantID is zero for admin clients. ActorID is the authenticated
	// user behind the connection.
	EvaluationID  uint
	ParticipantID uint
	ActorID       uint
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.drop(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Error("WebSocket unexpected close", zap.Error(err), zap.String("clientId", c.ID))
			}
			break
		}

		if !c.Limiter.Allow() {
			continue
		}

		if c.OnMessage != nil {
			c.OnMessage(c, message)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if n := len(c.Send); n > 0 {
				for i := 0; i < n; i++ {
					w.Write(<-c.Send)
				}
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Reply sends one message to this client only.
func (c *Client) Reply(msg WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.Send <- payload:
		monitoring.WSMessageCounter.WithLabelValues(msg.Type, "out").Inc()
	default:
		monitoring.WSDroppedBroadcasts.Inc()
	}
}

type shard struct {
	clients map[Topic]map[string]*Client
	mu      sync.RWMutex
}

// MonitorHub fans monitor events out to admin dashboards and participant
// sessions. Cross-instance delivery goes through a redis pub/sub channel;
// with no redis client configured delivery is local only. The hub is not a
// durability layer: reconnecting observers re-fetch a snapshot.
type MonitorHub struct {
	shards     [shardCount]*shard
	register   chan *Client
	unregister chan *Client
	Redis      *redis.Client
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewMonitorHub(rdb *redis.Client) *MonitorHub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &MonitorHub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		Redis:      rdb,
		ctx:        ctx,
		cancel:     cancel,
	}
	for i := 0; i < shardCount; i++ {
		h.shards[i] = &shard{
			clients: make(map[Topic]map[string]*Client),
		}
	}
	return h
}

// drop hands a dying connection back to the hub loop. After Stop the loop
// no longer drains unregister, so give up once the context is cancelled
// instead of blocking the pump goroutine forever.
func (h *MonitorHub) drop(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

func (h *MonitorHub) getShard(topic Topic) *shard {
	f := fnv.New32a()
	f.Write([]byte(topic))
	return h.shards[f.Sum32()%shardCount]
}

// PubSubMessage is the cross-instance envelope.
type PubSubMessage struct {
	Topics  []Topic         `json:"topics"`
	Payload json.RawMessage `json:"payload"`
}

func (h *MonitorHub) Run() {
	if h.Redis != nil {
		pubsub := h.Redis.Subscribe(h.ctx, hubChannel)
		go func() {
			ch := pubsub.Channel()
			for msg := range ch {
				var psMsg PubSubMessage
				if err := json.Unmarshal([]byte(msg.Payload), &psMsg); err != nil {
					logger.Log.Error("PubSub unmarshal error", zap.Error(err))
					continue
				}
				h.deliverLocal(psMsg.Topics, psMsg.Payload)
			}
		}()
	}

	presenceTicker := time.NewTicker(1 * time.Minute)
	defer presenceTicker.Stop()

	for {
		select {
		case client := <-h.register:
			s := h.getShard(client.Topic)
			s.mu.Lock()
			if s.clients[client.Topic] == nil {
				s.clients[client.Topic] = make(map[string]*Client)
			}
			s.clients[client.Topic][client.ID] = client
			s.mu.Unlock()
			monitoring.WSConnectedClients.WithLabelValues(client.Kind).Inc()
			h.setPresence(client, true)

		case client := <-h.unregister:
			s := h.getShard(client.Topic)
			s.mu.Lock()
			if topicClients, ok := s.clients[client.Topic]; ok {
				if _, ok := topicClients[client.ID]; ok {
					delete(topicClients, client.ID)
					close(client.Send)
					monitoring.WSConnectedClients.WithLabelValues(client.Kind).Dec()
				}
				if len(topicClients) == 0 {
					delete(s.clients, client.Topic)
				}
			}
			s.mu.Unlock()
			h.setPresence(client, false)

		case <-presenceTicker.C:
			h.refreshPresence()

		case <-h.ctx.Done():
			return
		}
	}
}

func (h *MonitorHub) presenceKey(c *Client) string {
	return fmt.Sprintf("monitor:online:%d:%d", c.EvaluationID, c.ParticipantID)
}

func (h *MonitorHub) setPresence(c *Client, online bool) {
	if h.Redis == nil || c.ParticipantID == 0 {
		return
	}
	if online {
		h.Redis.Set(h.ctx, h.presenceKey(c), "true", presenceTTL)
	} else {
		h.Redis.Del(h.ctx, h.presenceKey(c))
	}
}

// refreshPresence re-arms the TTL of every locally connected participant.
func (h *MonitorHub) refreshPresence() {
	if h.Redis == nil {
		return
	}
	pipe := h.Redis.Pipeline()
	count := 0
	for i := 0; i < shardCount; i++ {
		s := h.shards[i]
		s.mu.RLock()
		for _, topicClients := range s.clients {
			for _, c := range topicClients {
				if c.ParticipantID != 0 {
					pipe.Expire(h.ctx, h.presenceKey(c), presenceTTL)
					count++
				}
			}
		}
		s.mu.RUnlock()
	}
	if count > 0 {
		pipe.Exec(h.ctx)
		logger.Log.Debug("Refreshed participant presence", zap.Int("count", count))
	}
}

// IsParticipantOnline consults local shards first, then redis for other
// instances.
func (h *MonitorHub) IsParticipantOnline(evaluationID, participantID uint) bool {
	topic := ParticipantTopic(evaluationID, participantID)
	s := h.getShard(topic)
	s.mu.RLock()
	_, ok := s.clients[topic]
	s.mu.RUnlock()
	if ok {
		return true
	}

	if h.Redis == nil {
		return false
	}
	val, err := h.Redis.Get(h.ctx, fmt.Sprintf("monitor:online:%d:%d", evaluationID, participantID)).Result()
	return err == nil && val == "true"
}

// Broadcast publishes one message to every subscriber of the given topics.
// Delivery is at most once per observer; a full client buffer means the
// frame is dropped, never that the fan-out blocks.
func (h *MonitorHub) Broadcast(msg WSMessage, topics ...Topic) {
	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Log.Error("Broadcast marshal error", zap.Error(err))
		return
	}
	monitoring.WSMessageCounter.WithLabelValues(msg.Type, "out").Inc()

	if h.Redis != nil {
		psMsg := PubSubMessage{Topics: topics, Payload: payload}
		body, _ := json.Marshal(psMsg)
		if err := h.Redis.Publish(h.ctx, hubChannel, body).Err(); err != nil {
			// The state mutation already happened; a lost broadcast is
			// recovered by the next forced-refresh sweep.
			logger.Log.Error("Broadcast publish error", zap.Error(err))
			h.deliverLocal(topics, payload)
		}
		return
	}
	h.deliverLocal(topics, payload)
}

func (h *MonitorHub) deliverLocal(topics []Topic, payload []byte) {
	for _, topic := range topics {
		s := h.getShard(topic)
		s.mu.RLock()
		for _, client := range s.clients[topic] {
			select {
			case client.Send <- payload:
			default:
				monitoring.WSDroppedBroadcasts.Inc()
			}
		}
		s.mu.RUnlock()
	}
}

// Subscribe upgrades the request and starts the client pumps.
func (h *MonitorHub) Subscribe(w http.ResponseWriter, r *http.Request, topic Topic, kind string, evaluationID, participantID, actorID uint, onMessage func(*Client, []byte)) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	client := &Client{
		Hub:           h,
		Conn:          conn,
		Send:          make(chan []byte, 256),
		ID:            uuid.NewString(),
		Topic:         topic,
		Kind:          kind,
		Limiter:       rate.NewLimiter(rate.Limit(30), 50),
		OnMessage:     onMessage,
		EvaluationID:  evaluationID,
		ParticipantID: participantID,
		ActorID:       actorID,
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
	return client, nil
}

// Stop closes every connection and clears presence keys.
func (h *MonitorHub) Stop() {
	logger.Log.Info("MonitorHub stopping: closing connections...")

	var participantKeys []string
	for i := 0; i < shardCount; i++ {
		s := h.shards[i]
		s.mu.Lock()
		for topic, topicClients := range s.clients {
			for id, client := range topicClients {
				if client.ParticipantID != 0 {
					participantKeys = append(participantKeys, h.presenceKey(client))
				}
				close(client.Send)
				delete(topicClients, id)
			}
			delete(s.clients, topic)
		}
		s.mu.Unlock()
	}

	if h.Redis != nil && len(participantKeys) > 0 {
		pipe := h.Redis.Pipeline()
		for _, key := range participantKeys {
			pipe.Del(h.ctx, key)
		}
		pipe.Exec(h.ctx)
	}

	monitoring.WSConnectedClients.Reset()
	h.cancel()
	logger.Log.Info("MonitorHub stopped")
}
