package event

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"sort"
	"strings"
)

var errUnsupportedScheme = errors.New("only http and https links are supported")

// NormalizeURL returns the canonical form of an event link so the same page
// imported twice by the upstream sync compares equal:
//   - Lower-case the scheme and host
//   - Clean the path and drop a trailing slash, keeping "/" for the root
//   - Drop default ports (http:80, https:443)
//   - Sort query parameters by key and value
//
// Fragments are kept because registration forms often rely on them. Links
// must be absolute http or https URLs.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("could not parse URL: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errUnsupportedScheme
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL %q has no host", raw)
	}

	cleaned := "/"
	if u.Path != "" {
		cleaned = path.Clean("/" + u.Path)
	}
	u.Path = cleaned
	u.RawPath = ""

	host := strings.ToLower(u.Host)
	if h, port, err := net.SplitHostPort(host); err == nil {
		if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
			host = h
			if strings.Contains(h, ":") {
				host = "[" + h + "]"
			}
		}
	}
	u.Host = host

	if u.RawQuery != "" {
		q := u.Query()
		for k := range q {
			sort.Strings(q[k])
		}
		// Encode sorts keys
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}
