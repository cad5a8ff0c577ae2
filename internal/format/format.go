// Package format adapts the generic event envelope to destination-specific
// body shapes. Destinations are classified by an ordered list of
// (predicate, formatter) rules; the first match wins and the generic
// pass-through is the default.
//
// The signature is always computed over the generic envelope, even when a
// chat formatter rewrites the transmitted body. Chat-webhook endpoints do not
// check the signature header, so signature semantics stay uniform across all
// subscribers.
package format

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/papermark/webhook-engine/internal/domain"
)

// FormatFunc produces the transmitted body for one destination class.
// canonical is the serialized generic envelope; the generic formatter returns
// it unchanged so that the signed and transmitted bytes are identical.
type FormatFunc func(env *domain.Envelope, canonical []byte) []byte

type rule struct {
	match  func(u *url.URL) bool
	format FormatFunc
}

// Rules are evaluated in order; Body falls back to the generic envelope when
// none match or the destination does not parse.
var rules = []rule{
	{match: isSlackHost, format: slackText},
}

// Body returns the bytes to transmit to destination for this envelope.
func Body(destination string, env *domain.Envelope, canonical []byte) []byte {
	u, err := url.Parse(destination)
	if err != nil {
		return canonical
	}
	for _, r := range rules {
		if r.match(u) {
			return r.format(env, canonical)
		}
	}
	return canonical
}

func isSlackHost(u *url.URL) bool {
	host := u.Hostname()
	return host == "slack.com" || strings.HasSuffix(host, ".slack.com")
}

type slackMessage struct {
	Text string `json:"text"`
}

// slackText rewrites the envelope into Slack's incoming-webhook plain-text
// schema with a per-event template. Unrecognized events fall back to a
// minimal message rather than failing.
func slackText(env *domain.Envelope, _ []byte) []byte {
	var text string

	switch env.Event {
	case domain.TriggerLinkViewed:
		linkName := "Document"
		linkURL := ""
		if env.Data.Link != nil {
			if env.Data.Link.Name != nil && *env.Data.Link.Name != "" {
				linkName = *env.Data.Link.Name
			}
			linkURL = env.Data.Link.URL
		}
		viewer := "Someone"
		viewedAt := ""
		if env.Data.View != nil {
			if env.Data.View.Email != nil && *env.Data.View.Email != "" {
				viewer = *env.Data.View.Email
			}
			viewedAt = localTime(env.Data.View.ViewedAt)
		}
		text = fmt.Sprintf("📄 Document viewed!\n*Document:* %s\n*Viewer:* %s\n*Time:* %s\n*URL:* %s",
			linkName, viewer, viewedAt, linkURL)

	case domain.TriggerLinkCreated:
		linkName := "Document"
		linkURL := ""
		if env.Data.Link != nil {
			if env.Data.Link.Name != nil && *env.Data.Link.Name != "" {
				linkName = *env.Data.Link.Name
			}
			linkURL = env.Data.Link.URL
		}
		text = fmt.Sprintf("🔗 New link created!\n*Document:* %s\n*URL:* %s", linkName, linkURL)

	case domain.TriggerDocumentCreated:
		name := "Untitled"
		if env.Data.Document != nil && env.Data.Document.Name != "" {
			name = env.Data.Document.Name
		}
		text = fmt.Sprintf("📑 New document uploaded!\n*Name:* %s", name)

	case domain.TriggerDataroomCreated:
		name := "Untitled"
		if env.Data.Dataroom != nil && env.Data.Dataroom.Name != "" {
			name = env.Data.Dataroom.Name
		}
		text = fmt.Sprintf("🗂️ New dataroom created!\n*Name:* %s", name)

	default:
		text = fmt.Sprintf("Event: %s", env.Event)
	}

	body, _ := json.Marshal(slackMessage{Text: text})
	return body
}

// localTime renders an ISO-8601 timestamp in a readable form, falling back to
// the raw string if it does not parse.
func localTime(iso string) string {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return iso
	}
	return t.Format("Jan 2, 2006 3:04 PM MST")
}
