package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"market-data-hub/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// snapshot lookups for symbols nothing was streamed for yet
const snapshotTimeout = 5 * time.Second

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *APIServer) handleWebsockets() {
	for {
		select {
		case <-s.done:
			for client := range s.clients {
				delete(s.clients, client)
				client.close()
			}
			s.setClientCount(0)
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.setClientCount(len(s.clients))

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				client.close()
				s.setClientCount(len(s.clients))
			}

		case quote := <-s.broadcast:
			now := time.Now().UnixMilli()
			s.stateMutex.Lock()
			s.latest[quote.Symbol] = quote
			s.latestAt = now
			s.stateMutex.Unlock()

			message := models.MStreamMessage{
				Type:      models.StreamTypeQuote,
				Quotes:    map[string]models.MQuote{quote.Symbol: quote},
				Timestamp: now,
			}
			for client := range s.clients {
				if !client.wants(quote.Symbol) {
					continue
				}
				if !client.push(message) {
					// Client too slow, disconnect to prevent Hub blocking
					s.Logger.Warning("Dropping slow websocket client %s", client.ID)
					delete(s.clients, client)
					client.close()
					s.setClientCount(len(s.clients))
				}
			}
		}
	}
}

func (s *APIServer) setClientCount(n int) {
	s.stateMutex.Lock()
	s.clientCount = n
	s.stateMutex.Unlock()
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// Broadcast queues a streamed quote for subscribed clients. A full queue
// drops the quote rather than stalling the stream.
func (s *APIServer) Broadcast(quote models.MQuote) {
	if quote.Symbol == "" {
		return
	}
	select {
	case <-s.done:
	case s.broadcast <- quote:
	default:
		s.Logger.Warning("Broadcast queue full, dropping quote of %s", quote.Symbol)
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *APIServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := newClient(s, conn)
	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}
	s.Logger.Debug("Client %s connected from %s", client.ID, c.ClientIP())

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (s *APIServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MSubscribeCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client %s", err, client.ID)
		client.conn.Close()
		return
	}

	symbols := make([]string, 0, len(cmd.Symbols))
	for _, sym := range cmd.Symbols {
		if sym != "" && !contains(symbols, sym) {
			symbols = append(symbols, sym)
		}
	}

	switch cmd.Command {
	case "subscribe":
		client.subscribe(symbols)
		client.push(s.snapshot(symbols))
	case "unsubscribe":
		client.unsubscribe(symbols)
	default:
		client.push(models.MStreamMessage{
			Type:      models.StreamTypeError,
			Message:   "unknown command " + cmd.Command,
			Timestamp: time.Now().UnixMilli(),
		})
	}
}

// -----------------------------------------------------------------------------
// Snapshots
// -----------------------------------------------------------------------------

// snapshot returns the latest streamed quote of each symbol, every streamed
// symbol when symbols is empty. Symbols never streamed are looked up through
// the service, which serves them from cache when it can.
func (s *APIServer) snapshot(symbols []string) models.MStreamMessage {
	quotes := make(map[string]models.MQuote)
	var missing []string

	s.stateMutex.RLock()
	if len(symbols) == 0 {
		for sym, q := range s.latest {
			quotes[sym] = q
		}
	}
	for _, sym := range symbols {
		if q, ok := s.latest[sym]; ok {
			quotes[sym] = q
		} else {
			missing = append(missing, sym)
		}
	}
	s.stateMutex.RUnlock()

	if len(missing) > 0 && s.Service != nil {
		ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
		fetched, err := s.Service.GetQuotes(ctx, missing, "", false)
		cancel()
		if err != nil {
			s.Logger.Warning("Snapshot lookup of %d symbols failed: %v", len(missing), err)
		}
		for sym, q := range fetched {
			quotes[sym] = q
		}
	}

	return models.MStreamMessage{
		Type:      models.StreamTypeSnapshot,
		Quotes:    quotes,
		Timestamp: time.Now().UnixMilli(),
	}
}
