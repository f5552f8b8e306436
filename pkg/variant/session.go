package variant

import (
	"errors"
	"fmt"

	"github.com/Checker-Finance/storefront/pkg/model"
)

var (
	// ErrUnknownProperty is returned when a selection names no existing group.
	ErrUnknownProperty = errors.New("variant: unknown property")
	// ErrUnknownOption is returned when a value is not offered by its group.
	ErrUnknownOption = errors.New("variant: unknown option")
)

// State is the resolver state of a product view.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateResolved
	StateUnresolved
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateResolved:
		return "resolved"
	case StateUnresolved:
		return "unresolved"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is the selection state of one product view. It is not safe for
// concurrent use; the owning controller serializes access.
type Session struct {
	index       Index
	selection   model.Selection
	initialized bool
	state       State
	last        *model.VariantResolved
}

// NewSession returns an uninitialized session.
func NewSession() *Session {
	return &Session{selection: model.Selection{}}
}

// Initialize selects the first option of every group. It runs once per
// session; later calls, even with a rebuilt but equal index, return false and
// leave the user's selection untouched.
func (s *Session) Initialize(idx Index) bool {
	if s.initialized {
		return false
	}
	s.index = idx
	for _, g := range idx.groups {
		if len(g.Options) == 0 {
			continue
		}
		s.selection[g.PropertyID] = g.Options[0].ValueID
	}
	s.initialized = true
	s.state = StateInitialized
	return true
}

// Initialized reports whether Initialize has run.
func (s *Session) Initialized() bool { return s.initialized }

// State returns the current resolver state.
func (s *Session) State() State { return s.state }

// Selection returns a copy of the current selection.
func (s *Session) Selection() model.Selection { return s.selection.Clone() }

// Last returns the most recent resolution, if any.
func (s *Session) Last() (model.VariantResolved, bool) {
	if s.last == nil {
		return model.VariantResolved{}, false
	}
	ev := *s.last
	ev.Selection = ev.Selection.Clone()
	return ev, true
}

// Select sets one axis of the selection. Other axes are preserved and no
// cross-axis pruning happens. Values not offered by the group are rejected.
func (s *Session) Select(propertyID, valueID string) error {
	propertyKnown, valueKnown := s.index.hasOption(propertyID, valueID)
	if !propertyKnown {
		return fmt.Errorf("%w: %q", ErrUnknownProperty, propertyID)
	}
	if !valueKnown {
		return fmt.Errorf("%w: %q for property %q", ErrUnknownOption, valueID, propertyID)
	}
	s.selection[propertyID] = valueID
	return nil
}

// Resolve matches the current selection against variants. On a match the
// session becomes Resolved and the new event is returned with ok=true. On a
// miss it becomes Unresolved and returns the previous event (if any) with
// ok=false; nothing new should be emitted.
func (s *Session) Resolve(variants []model.ConcreteVariant, attrs []model.Attribute) (model.VariantResolved, bool) {
	v, ok := Resolve(s.selection, variants)
	if !ok {
		s.state = StateUnresolved
		prev, _ := s.Last()
		return prev, false
	}

	ev := model.VariantResolved{
		VariantID:    v.ID,
		Price:        v.Price,
		Quantity:     v.Quantity,
		Selection:    s.selection.Clone(),
		VariantImage: VariantImage(s.selection, attrs),
	}
	stored := ev
	stored.Selection = ev.Selection.Clone()
	s.last = &stored
	s.state = StateResolved
	return ev, true
}
