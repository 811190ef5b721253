package crawler

import (
	"math/rand"
	"sync"
)

// fallbackAgents is used when the configuration provides no user agent
// pool. Rotating identities keeps a long crawl from looking like a single
// hammering client.
var fallbackAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:126.0) Gecko/20100101 Firefox/126.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:126.0) Gecko/20100101 Firefox/126.0",
}

// agentPool hands out user agent strings at random.
type agentPool struct {
	mu     sync.Mutex
	agents []string
}

func newAgentPool(agents []string) *agentPool {
	if len(agents) == 0 {
		agents = fallbackAgents
	}
	return &agentPool{agents: agents}
}

func (p *agentPool) pick() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.agents[rand.Intn(len(p.agents))]
}
