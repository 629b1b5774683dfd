package gateway

import (
	"sync"
	"time"
)

// idleThreshold marks a client idle in status reports after this much
// inactivity.
const idleThreshold = 5 * time.Minute

// ClientRegistry tracks the WebSocket clients currently connected to the
// gateway. The broadcaster fans events out to the authenticated subset,
// and memory.status reports the full set.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewClientRegistry creates an empty registry
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
	}
}

// Add registers a client under its id
func (r *ClientRegistry) Add(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients[client.ID] = client
}

// Remove drops a client from the registry
func (r *ClientRegistry) Remove(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.clients, clientID)
}

// GetAll returns every connected client
func (r *ClientRegistry) GetAll() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	return clients
}

// GetAuthenticatedClients returns only the clients that passed the HMAC
// challenge; lifecycle events go to these.
func (r *ClientRegistry) GetAuthenticatedClients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0)
	for _, client := range r.clients {
		if client.Authenticated {
			clients = append(clients, client)
		}
	}
	return clients
}

// Count returns the number of connected clients
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.clients)
}

// GetConnectedClients snapshots connection details for status reporting
func (r *ClientRegistry) GetConnectedClients() []ClientInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	infos := make([]ClientInfo, 0, len(r.clients))

	for _, client := range r.clients {
		infos = append(infos, ClientInfo{
			ID:            client.ID,
			Authenticated: client.Authenticated,
			ConnectedAt:   client.ConnectedAt,
			LastActivity:  client.LastActivity,
			IPAddress:     client.IPAddress,
			Idle:          now.Sub(client.LastActivity) > idleThreshold,
		})
	}

	return infos
}

// UpdateActivity refreshes a client's last activity time
func (r *ClientRegistry) UpdateActivity(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, exists := r.clients[clientID]; exists {
		client.LastActivity = time.Now()
	}
}
