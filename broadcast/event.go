package broadcast

import (
	"encoding/json"
	"fmt"
)

// Kind enumerates the events relayed to board sockets.
type Kind uint8

const (
	KindSessionConnected Kind = iota + 1
	KindSessionDisconnected
	KindBoardPreferencesChanged
	KindBoardUpdated
	KindTopicCreated
	KindTopicUpdated
	KindTopicDeleted
	KindPostCreated
	KindPostUpdated
	KindPostDeleted
	KindReactionUpdated
)

var kindNames = map[Kind]string{
	KindSessionConnected:        "session_connected",
	KindSessionDisconnected:     "session_disconnected",
	KindBoardPreferencesChanged: "board_preferences_changed",
	KindBoardUpdated:            "board_updated",
	KindTopicCreated:            "topic_created",
	KindTopicUpdated:            "topic_updated",
	KindTopicDeleted:            "topic_deleted",
	KindPostCreated:             "post_created",
	KindPostUpdated:             "post_updated",
	KindPostDeleted:             "post_deleted",
	KindReactionUpdated:         "reaction_updated",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Kinds returns every event kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindNames))
	for k := KindSessionConnected; k <= KindReactionUpdated; k++ {
		out = append(out, k)
	}
	return out
}

// Event is one outbound notification. Only the fields belonging to Kind
// are meaningful; payloads carry identifiers, never entity bodies.
type Event struct {
	Kind     Kind
	Sessions int64
	TopicPK  int64
	PostPK   int64
}

func SessionConnected(sessions int64) Event {
	return Event{Kind: KindSessionConnected, Sessions: sessions}
}

func SessionDisconnected(sessions int64) Event {
	return Event{Kind: KindSessionDisconnected, Sessions: sessions}
}

func BoardPreferencesChanged() Event { return Event{Kind: KindBoardPreferencesChanged} }
func BoardUpdated() Event            { return Event{Kind: KindBoardUpdated} }

func TopicCreated(topicPK int64) Event { return Event{Kind: KindTopicCreated, TopicPK: topicPK} }
func TopicUpdated(topicPK int64) Event { return Event{Kind: KindTopicUpdated, TopicPK: topicPK} }
func TopicDeleted(topicPK int64) Event { return Event{Kind: KindTopicDeleted, TopicPK: topicPK} }

func PostCreated(topicPK, postPK int64) Event {
	return Event{Kind: KindPostCreated, TopicPK: topicPK, PostPK: postPK}
}

func PostUpdated(topicPK, postPK int64) Event {
	return Event{Kind: KindPostUpdated, TopicPK: topicPK, PostPK: postPK}
}

func PostDeleted(topicPK, postPK int64) Event {
	return Event{Kind: KindPostDeleted, TopicPK: topicPK, PostPK: postPK}
}

func ReactionUpdated(postPK int64) Event { return Event{Kind: KindReactionUpdated, PostPK: postPK} }

type sessionsPayload struct {
	Type     string `json:"type"`
	Sessions int64  `json:"sessions"`
}

type topicPayload struct {
	Type    string `json:"type"`
	TopicPK int64  `json:"topic_pk"`
}

type postPayload struct {
	Type    string `json:"type"`
	TopicPK int64  `json:"topic_pk"`
	PostPK  int64  `json:"post_pk"`
}

type reactionPayload struct {
	Type   string `json:"type"`
	PostPK int64  `json:"post_pk"`
}

type bare struct {
	Type string `json:"type"`
}

// MarshalJSON writes the wire form: "type" plus the fields of that kind.
func (e Event) MarshalJSON() ([]byte, error) {
	name, ok := kindNames[e.Kind]
	if !ok {
		return nil, fmt.Errorf("broadcast: cannot encode unknown event kind %d", e.Kind)
	}
	switch e.Kind {
	case KindSessionConnected, KindSessionDisconnected:
		return json.Marshal(sessionsPayload{name, e.Sessions})
	case KindTopicCreated, KindTopicUpdated, KindTopicDeleted:
		return json.Marshal(topicPayload{name, e.TopicPK})
	case KindPostCreated, KindPostUpdated, KindPostDeleted:
		return json.Marshal(postPayload{name, e.TopicPK, e.PostPK})
	case KindReactionUpdated:
		return json.Marshal(reactionPayload{name, e.PostPK})
	default:
		return json.Marshal(bare{name})
	}
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type     string `json:"type"`
		Sessions int64  `json:"sessions"`
		TopicPK  int64  `json:"topic_pk"`
		PostPK   int64  `json:"post_pk"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	kind, ok := kindsByName[raw.Type]
	if !ok {
		return fmt.Errorf("broadcast: unknown event type %q", raw.Type)
	}
	*e = Event{Kind: kind}
	switch kind {
	case KindSessionConnected, KindSessionDisconnected:
		e.Sessions = raw.Sessions
	case KindTopicCreated, KindTopicUpdated, KindTopicDeleted:
		e.TopicPK = raw.TopicPK
	case KindPostCreated, KindPostUpdated, KindPostDeleted:
		e.TopicPK, e.PostPK = raw.TopicPK, raw.PostPK
	case KindReactionUpdated:
		e.PostPK = raw.PostPK
	}
	return nil
}
