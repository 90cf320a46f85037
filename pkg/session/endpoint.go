package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const (
	browserStackEndpoint = "wss://cdp.browserstack.com/playwright"
	lambdaTestEndpoint   = "wss://cdp.lambdatest.com/playwright"
)

var browserStackBrowsers = map[string]string{
	"chrome":   "chrome",
	"chromium": "playwright-chromium",
	"edge":     "edge",
	"firefox":  "playwright-firefox",
	"webkit":   "playwright-webkit",
}

var lambdaTestBrowsers = map[string]string{
	"chrome":   "Chrome",
	"chromium": "pw-chromium",
	"edge":     "MicrosoftEdge",
	"firefox":  "pw-firefox",
	"webkit":   "pw-webkit",
}

// capabilities returns the provider's capability bag for t.
func capabilities(t Target) (map[string]any, error) {
	c := t.Capabilities
	switch t.Kind {
	case KindBrowserStack:
		return map[string]any{
			"browser":                  browserStackBrowsers[t.Browser],
			"browser_version":          c.BrowserVersion,
			"os":                       c.OS,
			"os_version":               c.OSVersion,
			"project":                  c.Project,
			"build":                    c.Build,
			"name":                     c.SessionName,
			"browserstack.username":    t.Credentials.Username,
			"browserstack.accessKey":   t.Credentials.AccessKey,
			"browserstack.debug":       strconv.FormatBool(c.Debug),
			"browserstack.networkLogs": strconv.FormatBool(c.NetworkLogs),
			"browserstack.console":     c.ConsoleLogs,
			"browserstack.video":       strconv.FormatBool(c.Video),
			"client.playwrightVersion": playwrightVersion,
		}, nil
	case KindLambdaTest:
		return map[string]any{
			"browserName":    lambdaTestBrowsers[t.Browser],
			"browserVersion": c.BrowserVersion,
			"LT:Options": map[string]any{
				"platform":  c.Platform,
				"build":     c.Build,
				"name":      c.SessionName,
				"project":   c.Project,
				"user":      t.Credentials.Username,
				"accessKey": t.Credentials.AccessKey,
				"visual":    c.Debug,
				"network":   c.NetworkLogs,
				"console":   c.ConsoleLogs != "",
				"video":     c.Video,
			},
		}, nil
	default:
		return nil, fmt.Errorf("no remote endpoint for %q", t.Kind)
	}
}

// Endpoint returns the playwright websocket URL for a remote target with
// its capability bag JSON-encoded into the query string.
func Endpoint(t Target) (string, error) {
	caps, err := capabilities(t)
	if err != nil {
		return "", err
	}
	encoded, err := json.Marshal(caps)
	if err != nil {
		return "", fmt.Errorf("failed to encode capabilities: %w", err)
	}

	var base, param string
	switch t.Kind {
	case KindBrowserStack:
		base, param = browserStackEndpoint, "caps"
	case KindLambdaTest:
		base, param = lambdaTestEndpoint, "capabilities"
	}
	return base + "?" + param + "=" + url.QueryEscape(string(encoded)), nil
}

const redacted = "<redacted>"

var endpointQuery = regexp.MustCompile(`(` + regexp.QuoteMeta(browserStackEndpoint) + `|` + regexp.QuoteMeta(lambdaTestEndpoint) + `)\?\S*`)

// redactEndpoint returns err with the dialed endpoint's query string and
// every form of accessKey replaced. The driver quotes the endpoint it dialed
// in its errors, and the endpoint carries the access key. The result does
// not wrap err.
func redactEndpoint(err error, endpoint, accessKey string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if base, _, ok := strings.Cut(endpoint, "?"); ok {
		forms := []string{endpoint}
		if raw, uerr := url.QueryUnescape(endpoint); uerr == nil {
			forms = append(forms, raw)
		}
		for _, form := range forms {
			msg = strings.ReplaceAll(msg, form, base+"?"+redacted)
		}
	}
	msg = endpointQuery.ReplaceAllString(msg, "$1?"+redacted)
	if accessKey != "" {
		for _, form := range []string{accessKey, url.QueryEscape(accessKey), url.PathEscape(accessKey)} {
			msg = strings.ReplaceAll(msg, form, redacted)
		}
	}
	return errors.New(msg)
}
