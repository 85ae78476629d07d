package domain

import (
	"encoding/json"
	"fmt"
)

// ElementKind tags the variant carried by an Element.
type ElementKind string

const (
	ElementLine   ElementKind = "line"
	ElementShape  ElementKind = "shape"
	ElementSticky ElementKind = "sticky"
)

// ShapeKind is the geometry of a Shape element.
type ShapeKind string

const (
	ShapeRectangle ShapeKind = "rectangle"
	ShapeCircle    ShapeKind = "circle"
)

// Defaults applied when a client omits the field.
const (
	DefaultLineStroke = "#6366f1"
	DefaultStickyText = "Idea..."
)

// Line is a freehand stroke. Points holds flattened x,y pairs.
type Line struct {
	Points      []float64 `json:"points"`
	Stroke      string    `json:"stroke"`
	StrokeWidth float64   `json:"strokeWidth,omitempty"`
	UserID      string    `json:"userId,omitempty"`
	X           float64   `json:"x,omitempty"`
	Y           float64   `json:"y,omitempty"`
	Rotation    float64   `json:"rotation,omitempty"`
}

// Shape is a rectangle (Width/Height) or circle (Radius) anchored at X,Y.
type Shape struct {
	Kind        ShapeKind `json:"kind"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	Width       float64   `json:"width,omitempty"`
	Height      float64   `json:"height,omitempty"`
	Radius      float64   `json:"radius,omitempty"`
	Fill        string    `json:"fill,omitempty"`
	Stroke      string    `json:"stroke,omitempty"`
	StrokeWidth float64   `json:"strokeWidth,omitempty"`
	Rotation    float64   `json:"rotation,omitempty"`
}

// Sticky is a text note anchored at X,Y.
type Sticky struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width,omitempty"`
	Height   float64 `json:"height,omitempty"`
	Text     string  `json:"text"`
	Color    string  `json:"color,omitempty"`
	UserID   string  `json:"userId,omitempty"`
	Rotation float64 `json:"rotation,omitempty"`
}

// Element is one drawable unit on a board. Exactly one of Line, Shape or
// Sticky is set, matching Kind. On the wire it is a flat object:
// {"id": ..., "type": "line", "points": [...], ...}.
type Element struct {
	ID     string      `json:"id"`
	Kind   ElementKind `json:"type"`
	Line   *Line       `json:"-"`
	Shape  *Shape      `json:"-"`
	Sticky *Sticky     `json:"-"`
}

type elementHeader struct {
	ID   string      `json:"id"`
	Kind ElementKind `json:"type"`
}

// NewLine wraps l as a line element.
func NewLine(id string, l Line) Element {
	return Element{ID: id, Kind: ElementLine, Line: &l}
}

// NewShape wraps s as a shape element.
func NewShape(id string, s Shape) Element {
	return Element{ID: id, Kind: ElementShape, Shape: &s}
}

// NewSticky wraps s as a sticky element.
func NewSticky(id string, s Sticky) Element {
	return Element{ID: id, Kind: ElementSticky, Sticky: &s}
}

// DecodeElement parses a flat element object as the given kind, ignoring any
// "type" field in the payload, and validates it. Defaults are filled in for
// omitted stroke and sticky text. The returned id may be empty.
func DecodeElement(kind ElementKind, data []byte) (Element, error) {
	var h elementHeader
	if err := json.Unmarshal(data, &h); err != nil {
		return Element{}, fmt.Errorf("domain.DecodeElement: %w: %v", ErrMalformedEvent, err)
	}

	var el Element
	switch kind {
	case ElementLine:
		var l Line
		if err := json.Unmarshal(data, &l); err != nil {
			return Element{}, fmt.Errorf("domain.DecodeElement: line: %w: %v", ErrMalformedEvent, err)
		}
		el = NewLine(h.ID, l)
	case ElementShape:
		var s Shape
		if err := json.Unmarshal(data, &s); err != nil {
			return Element{}, fmt.Errorf("domain.DecodeElement: shape: %w: %v", ErrMalformedEvent, err)
		}
		el = NewShape(h.ID, s)
	case ElementSticky:
		var s Sticky
		if err := json.Unmarshal(data, &s); err != nil {
			return Element{}, fmt.Errorf("domain.DecodeElement: sticky: %w: %v", ErrMalformedEvent, err)
		}
		el = NewSticky(h.ID, s)
	default:
		return Element{}, fmt.Errorf("domain.DecodeElement: kind %q: %w", kind, ErrMalformedEvent)
	}

	if err := el.normalize(); err != nil {
		return Element{}, fmt.Errorf("domain.DecodeElement: %w", err)
	}
	return el, nil
}

// normalize validates variant fields and fills in defaults.
func (e *Element) normalize() error {
	switch e.Kind {
	case ElementLine:
		if e.Line == nil {
			return fmt.Errorf("line body missing: %w", ErrMalformedEvent)
		}
		if len(e.Line.Points) < 2 || len(e.Line.Points)%2 != 0 {
			return fmt.Errorf("line needs x,y point pairs, got %d values: %w", len(e.Line.Points), ErrMalformedEvent)
		}
		if e.Line.Stroke == "" {
			e.Line.Stroke = DefaultLineStroke
		}
	case ElementShape:
		if e.Shape == nil {
			return fmt.Errorf("shape body missing: %w", ErrMalformedEvent)
		}
		switch e.Shape.Kind {
		case ShapeRectangle, ShapeCircle:
		case "rect":
			e.Shape.Kind = ShapeRectangle
		default:
			return fmt.Errorf("shape kind %q: %w", e.Shape.Kind, ErrMalformedEvent)
		}
	case ElementSticky:
		if e.Sticky == nil {
			return fmt.Errorf("sticky body missing: %w", ErrMalformedEvent)
		}
		if e.Sticky.Text == "" {
			e.Sticky.Text = DefaultStickyText
		}
	default:
		return fmt.Errorf("element type %q: %w", e.Kind, ErrMalformedEvent)
	}
	return nil
}

// MarshalJSON flattens the variant into the element object.
func (e Element) MarshalJSON() ([]byte, error) {
	h := elementHeader{ID: e.ID, Kind: e.Kind}
	switch e.Kind {
	case ElementLine:
		return json.Marshal(struct {
			elementHeader
			*Line
		}{h, e.Line})
	case ElementShape:
		return json.Marshal(struct {
			elementHeader
			*Shape
		}{h, e.Shape})
	case ElementSticky:
		return json.Marshal(struct {
			elementHeader
			*Sticky
		}{h, e.Sticky})
	default:
		return nil, fmt.Errorf("domain.Element.MarshalJSON: type %q: %w", e.Kind, ErrMalformedEvent)
	}
}

// UnmarshalJSON reads a flat element object, dispatching on its "type".
func (e *Element) UnmarshalJSON(data []byte) error {
	var h elementHeader
	if err := json.Unmarshal(data, &h); err != nil {
		return fmt.Errorf("domain.Element.UnmarshalJSON: %w: %v", ErrMalformedEvent, err)
	}
	el, err := DecodeElement(h.Kind, data)
	if err != nil {
		return err
	}
	*e = el
	return nil
}

// Clone returns a deep copy that shares no memory with e.
func (e Element) Clone() Element {
	out := Element{ID: e.ID, Kind: e.Kind}
	if e.Line != nil {
		l := *e.Line
		l.Points = append([]float64(nil), e.Line.Points...)
		out.Line = &l
	}
	if e.Shape != nil {
		s := *e.Shape
		out.Shape = &s
	}
	if e.Sticky != nil {
		s := *e.Sticky
		out.Sticky = &s
	}
	return out
}

// Color reports the element's primary color: the stroke of a line, the fill
// of a shape, the background of a sticky.
func (e Element) Color() string {
	switch {
	case e.Line != nil:
		return e.Line.Stroke
	case e.Shape != nil:
		return e.Shape.Fill
	case e.Sticky != nil:
		return e.Sticky.Color
	}
	return ""
}

// ElementPatch is a partial field update. Nil fields are left untouched and
// fields that do not exist on the target variant are ignored.
type ElementPatch struct {
	Text     *string
	Color    *string
	X        *float64
	Y        *float64
	Width    *float64
	Height   *float64
	Radius   *float64
	Rotation *float64
}

// Apply writes the patch into e in place.
func (e *Element) Apply(p ElementPatch) {
	switch e.Kind {
	case ElementLine:
		l := e.Line
		if l == nil {
			return
		}
		setString(&l.Stroke, p.Color)
		setFloat(&l.X, p.X)
		setFloat(&l.Y, p.Y)
		setFloat(&l.Rotation, p.Rotation)
	case ElementShape:
		s := e.Shape
		if s == nil {
			return
		}
		setString(&s.Fill, p.Color)
		setFloat(&s.X, p.X)
		setFloat(&s.Y, p.Y)
		setFloat(&s.Width, p.Width)
		setFloat(&s.Height, p.Height)
		setFloat(&s.Radius, p.Radius)
		setFloat(&s.Rotation, p.Rotation)
	case ElementSticky:
		s := e.Sticky
		if s == nil {
			return
		}
		setString(&s.Text, p.Text)
		setString(&s.Color, p.Color)
		setFloat(&s.X, p.X)
		setFloat(&s.Y, p.Y)
		setFloat(&s.Width, p.Width)
		setFloat(&s.Height, p.Height)
		setFloat(&s.Rotation, p.Rotation)
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
