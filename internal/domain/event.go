package domain

import (
	"encoding/json"
	"fmt"
)

// EventType names a message on the board socket.
type EventType string

// Client -> server events.
const (
	EventDrawLine         EventType = "draw-line"
	EventNewShape         EventType = "new-shape"
	EventNewObject        EventType = "new-object"
	EventUpdateText       EventType = "update-text"
	EventUpdateStyle      EventType = "update-style"
	EventUpdateTransform  EventType = "update-transform"
	EventDeleteObject     EventType = "delete-object"
	EventClearBoard       EventType = "clear-board"
	EventCreateBoard      EventType = "create-board"
	EventJoinBoard        EventType = "join-board"
	EventRequestBoardList EventType = "request-board-list"
	EventCursorMove       EventType = "cursor-move"
)

// Server -> client events. Mutation events are rebroadcast under their
// inbound name.
const (
	EventBoardList    EventType = "board-list"
	EventInitState    EventType = "init-state"
	EventBoardCreated EventType = "board-created"
)

// InboundEvents lists every event type a client may send.
func InboundEvents() []EventType {
	return []EventType{
		EventDrawLine,
		EventNewShape,
		EventNewObject,
		EventUpdateText,
		EventUpdateStyle,
		EventUpdateTransform,
		EventDeleteObject,
		EventClearBoard,
		EventCreateBoard,
		EventJoinBoard,
		EventRequestBoardList,
		EventCursorMove,
	}
}

// Envelope is the frame exchanged over the socket.
type Envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// DecodeEnvelope parses one inbound frame.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("domain.DecodeEnvelope: %w: %v", ErrMalformedEvent, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("domain.DecodeEnvelope: missing type: %w", ErrMalformedEvent)
	}
	return env, nil
}

// EncodeMessage builds an outbound frame.
func EncodeMessage(t EventType, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("domain.EncodeMessage: %s: %w", t, err)
	}
	out, err := json.Marshal(Envelope{Type: t, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("domain.EncodeMessage: %s: %w", t, err)
	}
	return out, nil
}

// DecodePayload unmarshals an envelope's data into T. Missing data decodes as
// the zero value.
func DecodePayload[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("domain.DecodePayload: %w: %v", ErrMalformedEvent, err)
	}
	return v, nil
}

// ElementRef targets an element by id (delete-object).
type ElementRef struct {
	ID string `json:"id"`
}

// TargetID returns the referenced element id.
func (r ElementRef) TargetID() string { return r.ID }

// Validate requires an element id.
func (r ElementRef) Validate() error { return requireID(r.ID) }

func requireID(id string) error {
	if id == "" {
		return fmt.Errorf("element id required: %w", ErrMalformedEvent)
	}
	return nil
}

// TextUpdate is the update-text payload.
type TextUpdate struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func (u TextUpdate) TargetID() string { return u.ID }
func (u TextUpdate) Validate() error   { return requireID(u.ID) }

// Patch converts the update into an ElementPatch.
func (u TextUpdate) Patch() ElementPatch {
	text := u.Text
	return ElementPatch{Text: &text}
}

// StyleUpdate is the update-style payload.
type StyleUpdate struct {
	ID    string `json:"id"`
	Color string `json:"color"`
}

func (u StyleUpdate) TargetID() string { return u.ID }

// Validate requires an element id and a color.
func (u StyleUpdate) Validate() error {
	if err := requireID(u.ID); err != nil {
		return err
	}
	if u.Color == "" {
		return fmt.Errorf("color required: %w", ErrMalformedEvent)
	}
	return nil
}

// Patch converts the update into an ElementPatch.
func (u StyleUpdate) Patch() ElementPatch {
	color := u.Color
	return ElementPatch{Color: &color}
}

// TransformUpdate is the update-transform payload. Only the fields present
// are changed.
type TransformUpdate struct {
	ID       string   `json:"id"`
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Width    *float64 `json:"width,omitempty"`
	Height   *float64 `json:"height,omitempty"`
	Radius   *float64 `json:"radius,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`
}

func (u TransformUpdate) TargetID() string { return u.ID }
func (u TransformUpdate) Validate() error   { return requireID(u.ID) }

// Patch converts the update into an ElementPatch.
func (u TransformUpdate) Patch() ElementPatch {
	return ElementPatch{
		X:        u.X,
		Y:        u.Y,
		Width:    u.Width,
		Height:   u.Height,
		Radius:   u.Radius,
		Rotation: u.Rotation,
	}
}

// CreateBoardRequest is the create-board payload.
type CreateBoardRequest struct {
	Name string `json:"name"`
}

// JoinBoardRequest is the join-board payload.
type JoinBoardRequest struct {
	BoardID string `json:"boardId"`
}

// Cursor is an ephemeral pointer position. It is relayed, never stored.
type Cursor struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	UserID string  `json:"userId"`
	Color  string  `json:"color,omitempty"`
}

// InitState is the full element snapshot of a board.
type InitState struct {
	BoardID  string    `json:"boardId"`
	Elements []Element `json:"elements"`
}

// BoardCleared is the clear-board broadcast.
type BoardCleared struct {
	BoardID string `json:"boardId"`
}
