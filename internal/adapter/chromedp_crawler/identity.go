package chromedp_crawler

import (
	"math/rand/v2"
	"sync"
)

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
}

// IdentityRotator picks the proxy and user agent of each new session.
type IdentityRotator struct {
	proxies    []string
	userAgents []string
	mu         sync.Mutex
	proxyIndex int
}

// NewIdentityRotator uses the built-in user agents when none are given. No
// proxies means direct connections.
func NewIdentityRotator(proxies, userAgents []string) *IdentityRotator {
	if len(userAgents) == 0 {
		userAgents = defaultUserAgents
	}
	return &IdentityRotator{proxies: proxies, userAgents: userAgents}
}

// Next returns a proxy, rotating sequentially, and a random user agent.
func (r *IdentityRotator) Next() (proxy, userAgent string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.proxies) > 0 {
		proxy = r.proxies[r.proxyIndex]
		r.proxyIndex = (r.proxyIndex + 1) % len(r.proxies)
	}
	return proxy, r.userAgents[rand.IntN(len(r.userAgents))]
}
