package identity

import "sync"

type User struct {
	UID string
}

// Provider tracks the signed-in user and notifies subscribers on login and
// logout. Subscribers run outside the provider's lock.
type Provider struct {
	mu      sync.Mutex
	current *User
	subs    map[int]func(*User)
	nextID  int
}

func NewProvider() *Provider {
	return &Provider{subs: make(map[int]func(*User))}
}

// LoggedIn returns a provider already signed in as uid.
func LoggedIn(uid string) *Provider {
	p := NewProvider()
	p.current = &User{UID: uid}
	return p
}

func (p *Provider) CurrentUser() *User {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	u := *p.current
	return &u
}

func (p *Provider) Login(uid string) {
	p.mu.Lock()
	if p.current != nil && p.current.UID == uid {
		p.mu.Unlock()
		return
	}
	p.current = &User{UID: uid}
	subs := p.snapshot()
	p.mu.Unlock()

	notify(subs, &User{UID: uid})
}

func (p *Provider) Logout() {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return
	}
	p.current = nil
	subs := p.snapshot()
	p.mu.Unlock()

	notify(subs, nil)
}

// Subscribe registers fn for login/logout transitions and returns the
// matching unsubscribe.
func (p *Provider) Subscribe(fn func(*User)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}
}

func (p *Provider) snapshot() []func(*User) {
	out := make([]func(*User), 0, len(p.subs))
	for _, fn := range p.subs {
		out = append(out, fn)
	}
	return out
}

func notify(subs []func(*User), u *User) {
	for _, fn := range subs {
		var arg *User
		if u != nil {
			c := *u
			arg = &c
		}
		fn(arg)
	}
}
