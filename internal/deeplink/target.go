// Package deeplink resolves URLs and notification payloads into navigation
// targets and drives the app's navigator on cold start and while running.
package deeplink

import (
	"net/url"
	"strings"
)

const (
	DefaultPrefix = "app://"

	// NavigationRooms is the navigationId payload value meaning "room list".
	NavigationRooms = "chatRooms"
)

type Kind int

const (
	KindUnresolved Kind = iota
	KindRoom
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindRoom:
		return "room"
	case KindList:
		return "list"
	default:
		return "unresolved"
	}
}

// Target is where a link or notification leads. RoomID is set only for
// KindRoom.
type Target struct {
	Kind   Kind
	RoomID string
}

func Room(id string) Target { return Target{Kind: KindRoom, RoomID: id} }

func List() Target { return Target{Kind: KindList} }

// ParseURL resolves prefix+"chat/{roomId}" and prefix+"rooms". Anything else
// is unresolved.
func ParseURL(prefix, raw string) Target {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	rest, ok := strings.CutPrefix(raw, prefix)
	if !ok {
		return Target{}
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.Trim(rest, "/")

	if rest == "rooms" {
		return List()
	}
	id, ok := strings.CutPrefix(rest, "chat/")
	if !ok || id == "" || strings.Contains(id, "/") {
		return Target{}
	}
	if unescaped, err := url.PathUnescape(id); err == nil {
		id = unescaped
	}
	return Room(id)
}

// FromPayload resolves notification data. A room id wins over a navigation
// id.
func FromPayload(data map[string]string) Target {
	if id := data["roomId"]; id != "" {
		return Room(id)
	}
	if data["navigationId"] == NavigationRooms {
		return List()
	}
	return Target{}
}

// URL renders the target under prefix; unresolved targets render empty.
func (t Target) URL(prefix string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	switch t.Kind {
	case KindRoom:
		return prefix + "chat/" + url.PathEscape(t.RoomID)
	case KindList:
		return prefix + "rooms"
	default:
		return ""
	}
}
