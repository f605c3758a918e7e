package relay

import "sync"

// Registry maps logical identities to their currently active channel.
// At most one channel per identity; binding again replaces the previous
// association without notifying the displaced channel.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*Client),
	}
}

// Bind associates identity with client. Last registration wins.
func (r *Registry) Bind(identity string, client *Client) {
	r.mu.Lock()
	r.clients[identity] = client
	r.mu.Unlock()
}

// Resolve looks up the channel bound to identity.
func (r *Registry) Resolve(identity string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[identity]
	return client, ok
}

// Unbind removes the association for identity, if any.
func (r *Registry) Unbind(identity string) {
	r.mu.Lock()
	delete(r.clients, identity)
	r.mu.Unlock()
}

// UnbindHandle removes the association only if identity is still bound to
// client. A client that reconnected rebinds its identity to the new
// channel; when the old channel then closes, its stale unbind must not
// evict the live binding.
func (r *Registry) UnbindHandle(identity string, client *Client) {
	if identity == "" {
		return
	}
	r.mu.Lock()
	if current, ok := r.clients[identity]; ok && current == client {
		delete(r.clients, identity)
	}
	r.mu.Unlock()
}

// Count reports how many identities are currently bound.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
