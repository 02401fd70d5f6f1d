// Package datasync reconciles three freshness modes over the same entity
// classes: one-shot snapshot fetches, lazy once-per-view fetches, and live
// subscriptions that re-deliver the full collection on every change.
//
// While a live subscription is active for a topic its pushes are
// authoritative and fetch results for that topic are ignored; otherwise the
// most recent fetch wins.
package datasync

import (
	"fmt"
	"strings"

	id "campusreg/pkg/domain"
	dErrors "campusreg/pkg/domain-errors"
)

// Topic names an entity class.
type Topic string

const TopicEvents Topic = "events"

func EventMembersTopic(eventID id.EventID) Topic {
	return Topic(fmt.Sprintf("event:%s:members", eventID))
}

func UserEventsTopic(userID id.UserID) Topic {
	return Topic(fmt.Sprintf("user:%s:events", userID))
}

// RegistrationTopics lists the topics affected by a membership change.
func RegistrationTopics(userID id.UserID, eventID id.EventID) []Topic {
	return []Topic{EventMembersTopic(eventID), UserEventsTopic(userID)}
}

type topicKind int

const (
	kindEvents topicKind = iota
	kindEventMembers
	kindUserEvents
)

// parsedTopic is the decoded form used by fetchers.
type parsedTopic struct {
	kind    topicKind
	eventID id.EventID
	userID  id.UserID
}

// ParseTopic validates a topic string received from a client.
func ParseTopic(raw string) (Topic, error) {
	if _, err := parse(Topic(raw)); err != nil {
		return "", err
	}
	return Topic(raw), nil
}

func parse(t Topic) (parsedTopic, error) {
	if t == TopicEvents {
		return parsedTopic{kind: kindEvents}, nil
	}
	parts := strings.Split(string(t), ":")
	if len(parts) != 3 {
		return parsedTopic{}, dErrors.New(dErrors.CodeBadRequest, "unknown topic")
	}
	switch {
	case parts[0] == "event" && parts[2] == "members":
		eventID, err := id.ParseEventID(parts[1])
		if err != nil {
			return parsedTopic{}, err
		}
		return parsedTopic{kind: kindEventMembers, eventID: eventID}, nil
	case parts[0] == "user" && parts[2] == "events":
		userID, err := id.ParseUserID(parts[1])
		if err != nil {
			return parsedTopic{}, err
		}
		return parsedTopic{kind: kindUserEvents, userID: userID}, nil
	}
	return parsedTopic{}, dErrors.New(dErrors.CodeBadRequest, "unknown topic")
}

// UserScoped reports the user a per-user topic belongs to.
func (t Topic) UserScoped() (id.UserID, bool) {
	p, err := parse(t)
	if err != nil || p.kind != kindUserEvents {
		return id.UserID{}, false
	}
	return p.userID, true
}
