// Package platform holds the boundary to the chat platform. The real client lives in a
// separate connector process; this package only knows how to ask it for member counts.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// MemberCounter reports the live member count of a guild.
type MemberCounter interface {
	MemberCount(ctx context.Context, guildID string) (int64, error)
}

// HTTPConnector pulls member counts from the connector sidecar:
// GET {base}/guilds/{id}/member-count -> {"member_count": n}.
type HTTPConnector struct {
	baseURL string
	client  *http.Client
}

func NewHTTPConnector(baseURL string, timeout time.Duration) *HTTPConnector {
	return &HTTPConnector{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type memberCountResponse struct {
	MemberCount *int64 `json:"member_count"`
}

func (c *HTTPConnector) MemberCount(ctx context.Context, guildID string) (int64, error) {
	endpoint := fmt.Sprintf("%s/guilds/%s/member-count", c.baseURL, url.PathEscape(guildID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("member count request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("member count request: unexpected status %d", resp.StatusCode)
	}

	var body memberCountResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("member count response: %w", err)
	}
	if body.MemberCount == nil || *body.MemberCount < 0 {
		return 0, fmt.Errorf("member count response: missing or negative member_count")
	}
	return *body.MemberCount, nil
}

// RandomConnector is a synthetic platform: every guild starts with a random membership
// that drifts by a few members per read.
type RandomConnector struct {
	mu     sync.Mutex
	rng    *rand.Rand
	guilds []string
	counts map[string]int64
}

func NewRandomConnector(seed int64, guildIDs ...string) *RandomConnector {
	rng := rand.New(rand.NewSource(seed))
	counts := make(map[string]int64, len(guildIDs))
	for _, id := range guildIDs {
		counts[id] = 50 + rng.Int63n(5000)
	}
	return &RandomConnector{rng: rng, guilds: guildIDs, counts: counts}
}

func (c *RandomConnector) Guilds() []string {
	return append([]string(nil), c.guilds...)
}

func (c *RandomConnector) MemberCount(ctx context.Context, guildID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.counts[guildID]
	if !ok {
		return 0, fmt.Errorf("unknown guild %s", guildID)
	}
	n += c.rng.Int63n(11) - 4
	if n < 0 {
		n = 0
	}
	c.counts[guildID] = n
	return n, nil
}

// PickGuild returns the guild the next synthetic message is posted in.
func (c *RandomConnector) PickGuild() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.guilds[c.rng.Intn(len(c.guilds))]
}
