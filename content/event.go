package content

// Event is what a rendering surface reports to its host. The set is closed:
// ChoiceSelected, ButtonPressed, Dismissed and Cancelled.
type Event interface {
	isEvent()
}

// ChoiceSelected reports a selection in the alert's choice list. Checked is
// only meaningful for ChoiceMulti.
type ChoiceSelected struct {
	Mode    ChoiceMode
	Which   int
	Checked bool
}

// ButtonPressed reports activation of one of the alert buttons.
type ButtonPressed struct {
	Button Button
}

// Dismissed reports that the surface went away, by any path. Surfaces emit
// it exactly once per Show.
type Dismissed struct{}

// Cancelled reports a back or outside-tap gesture on the surface.
type Cancelled struct{}

func (ChoiceSelected) isEvent() {}
func (ButtonPressed) isEvent()  {}
func (Dismissed) isEvent()      {}
func (Cancelled) isEvent()      {}
