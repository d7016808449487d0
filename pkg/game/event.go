package game

import "encoding/json"

type EventKind string

const (
	EventText         EventKind = "TEXT"
	EventImageBytes   EventKind = "IMAGE_BYTES"
	EventLocation     EventKind = "LOCATION"
	EventPostback     EventKind = "POSTBACK"
	EventFollow       EventKind = "FOLLOW"
	EventPassiveEvent EventKind = "PASSIVE_EVENT"
)

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// PassiveEvent is a sensor observation such as a smart home state change.
type PassiveEvent struct {
	EventType  string            `json:"event_type"`
	EntityID   string            `json:"entity_id,omitempty"`
	State      string            `json:"state,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// InboundEvent is the messaging adapter's view of one user interaction.
// Only the payload field matching Kind is populated.
type InboundEvent struct {
	PlayerID     string          `json:"player_id"`
	DisplayName  string          `json:"display_name,omitempty"`
	Kind         EventKind       `json:"kind"`
	Text         string          `json:"text,omitempty"`
	Image        []byte          `json:"image,omitempty"`
	ImageMIME    string          `json:"image_mime,omitempty"`
	Postback     string          `json:"postback,omitempty"`
	Location     *Location       `json:"location,omitempty"`
	Passive      *PassiveEvent   `json:"passive,omitempty"`
	ReplyContext json.RawMessage `json:"reply_context,omitempty"`
}
