package models

import (
	"sort"
	"time"
)

// MessageType is the kind of chat message
type MessageType string

const (
	MessageTypeText       MessageType = "text"
	MessageTypeImage      MessageType = "image"
	MessageTypePing       MessageType = "ping"
	MessageTypeEventShare MessageType = "event_share"
	MessageTypeTaskShare  MessageType = "task_share"
)

// PingType is one of the fixed quick-status signals
type PingType string

const (
	PingOnMyWay     PingType = "on_my_way"
	PingRunningLate PingType = "running_late"
	PingNeedHelp    PingType = "need_help"
	PingCallMe      PingType = "call_me"
)

// Ping describes how a ping type is labelled and rendered
type Ping struct {
	Type   PingType `json:"type"`
	Label  string   `json:"label"`
	Emoji  string   `json:"emoji"`
	Accent string   `json:"accent"`
}

// Pings is the closed ping vocabulary, in display order
var Pings = []Ping{
	{Type: PingOnMyWay, Label: "On my way", Emoji: "🚗", Accent: "blue"},
	{Type: PingRunningLate, Label: "Running late", Emoji: "⏰", Accent: "yellow"},
	{Type: PingNeedHelp, Label: "Need help", Emoji: "🆘", Accent: "red"},
	{Type: PingCallMe, Label: "Call me", Emoji: "📞", Accent: "green"},
}

// LookupPing returns the vocabulary entry for t
func LookupPing(t PingType) (Ping, bool) {
	for _, p := range Pings {
		if p.Type == t {
			return p, true
		}
	}
	return Ping{}, false
}

// Message is an append-only chat entry scoped to a family
type Message struct {
	ID        string      `json:"id"`
	FamilyID  string      `json:"family_id"`
	SenderID  string      `json:"sender_id"`
	Content   *string     `json:"content,omitempty"`
	Type      MessageType `json:"type"`
	PingType  *PingType   `json:"ping_type,omitempty"`
	EventID   *string     `json:"event_id,omitempty"`
	TaskID    *string     `json:"task_id,omitempty"`
	ImageURL  *string     `json:"image_url,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// MessageWithSender is a message joined with its sender's display identity
type MessageWithSender struct {
	Message
	Sender MemberSummary `json:"sender"`
}

// MessageDay is one calendar day of chat history
type MessageDay struct {
	Date     string              `json:"date"`
	Messages []MessageWithSender `json:"messages"`
}

// GroupMessagesByDay groups ascending messages into ascending days in loc
func GroupMessagesByDay(messages []MessageWithSender, loc *time.Location) []MessageDay {
	buckets := GroupByDay(messages, func(m MessageWithSender) time.Time { return m.CreatedAt }, loc)

	days := make([]MessageDay, 0, len(buckets))
	for date, msgs := range buckets {
		days = append(days, MessageDay{Date: date, Messages: msgs})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days
}
