package cache

import (
	"maps"
	"net/url"
	"sync"

	"golang.org/x/net/idna"
)

// Account describes the remote the cache mirrors. The cache treats it as
// opaque and only reads it to build a label.
type Account struct {
	Username string            `json:"username" mapstructure:"username"`
	URL      string            `json:"url" mapstructure:"url"`
	Extra    map[string]string `json:"extra,omitempty" mapstructure:"extra"`
}

func (a Account) clone() Account {
	a.Extra = maps.Clone(a.Extra)
	return a
}

// AccountStore holds the account descriptor.
type AccountStore interface {
	GetData() Account
	SetData(Account)
}

// MemoryAccount is an AccountStore kept in memory. Values are copied on the
// way in and out.
type MemoryAccount struct {
	mu   sync.Mutex
	data Account
}

// NewMemoryAccount returns a store holding a copy of a.
func NewMemoryAccount(a Account) *MemoryAccount {
	return &MemoryAccount{data: a.clone()}
}

// GetData implements AccountStore.
func (m *MemoryAccount) GetData() Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.clone()
}

// SetData implements AccountStore.
func (m *MemoryAccount) SetData(a Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = a.clone()
}

// label formats "{username}@{hostname}". Punycode host labels are shown in
// their Unicode form; an unparseable URL yields an empty host.
func label(a Account) string {
	var host string
	if u, err := url.Parse(a.URL); err == nil {
		host = u.Hostname()
		if display, err := idna.Display.ToUnicode(host); err == nil {
			host = display
		}
	}
	return a.Username + "@" + host
}
