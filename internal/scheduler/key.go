package scheduler

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/clipfetch/clipfetch/pkg/models"
)

// Query parameters that carry tracking or UI state, never content identity.
// Requests differing only in these must coalesce onto the same job.
var ignoredParams = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"igshid":  true,
	"feature": true,
	"ref":     true,
	"ref_src": true,
	"si":      true,
	"spm":     true,
}

// NormalizeKey derives the deduplication key for (url, profile) plus the
// source host used for per-host admission. The key is deterministic: equal
// logical targets always produce equal keys.
func NormalizeKey(rawURL string, profile models.Profile) (key, host string, err error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("url has no host")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Host = strings.TrimPrefix(u.Host, "www.")
	u.Fragment = ""

	q := u.Query()
	for name := range q {
		if ignoredParams[name] || strings.HasPrefix(name, "utm_") {
			q.Del(name)
		}
	}
	u.RawQuery = canonicalQuery(q)

	canonical := u.String() + "|" + profile.String()
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:]), u.Host, nil
}

// canonicalQuery renders remaining parameters in sorted order so map
// iteration cannot perturb the key.
func canonicalQuery(q url.Values) string {
	names := make([]string, 0, len(q))
	for name := range q {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		vals := q[name]
		sort.Strings(vals)
		for _, v := range vals {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(name))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}
