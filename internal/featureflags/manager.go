// Package featureflags switches optional surfaces of the blog on and off.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Known flags.
const (
	// OpenRegistration exposes /user/register to anonymous visitors.
	OpenRegistration = "open_registration"
	// APITokens exposes the /api surface and bearer-token login.
	APITokens = "api_tokens"
)

// Defaults apply to known flags that FEATURE_FLAGS leaves unset.
var Defaults = map[string]string{
	OpenRegistration: "on",
	APITokens:        "on",
}

// Manager evaluates flags given as a key=value list, for example
// "open_registration=off,api_tokens=25%".
type Manager struct {
	flags map[string]string
}

// NewManager parses raw on top of Defaults. Malformed pairs are skipped.
func NewManager(raw string) *Manager {
	out := make(map[string]string, len(Defaults))
	for k, v := range Defaults {
		out[k] = v
	}

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}

	return &Manager{flags: out}
}

// Enabled reports whether name is on for userID. Values are on/true/1,
// off/false/0, or N% for a stable per-user rollout. Anonymous callers
// (userID 0) are only in a rollout at 100%.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}

	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pctRaw, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return false
	}
	pct, err := strconv.Atoi(pctRaw)
	if err != nil || pct <= 0 {
		return false
	}
	if pct >= 100 {
		return true
	}
	if userID == 0 {
		return false
	}
	return rolloutBucket(name, userID) < pct
}

// Names lists the configured flags in order.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.flags))
	for k := range m.flags {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Raw returns a copy of configured flags.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.flags))
	for k, v := range m.flags {
		out[k] = v
	}
	return out
}

// Snapshot returns evaluated flag status for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

// Require hides a route group behind a flag: when the flag is off for the
// caller the route answers 404 as if it did not exist. userID extracts the
// caller, and may return 0.
func (m *Manager) Require(name string, userID func(*fiber.Ctx) uint) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var uid uint
		if userID != nil {
			uid = userID(c)
		}
		if !m.Enabled(name, uid) {
			return fiber.ErrNotFound
		}
		return c.Next()
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%d", normalize(name), userID)))
	return int(h.Sum32() % 100)
}
