package content

// Button identifies one of the three alert buttons. The values double as the
// "which" reported for button results.
type Button int

const (
	ButtonPositive Button = -1
	ButtonNegative Button = -2
	ButtonNeutral  Button = -3
)

func (b Button) String() string {
	switch b {
	case ButtonPositive:
		return "positive"
	case ButtonNegative:
		return "negative"
	case ButtonNeutral:
		return "neutral"
	}
	return "unknown"
}

// ChoiceMode selects how a choice list behaves.
type ChoiceMode int

const (
	// ChoicePlain lists items; selecting one closes the surface.
	ChoicePlain ChoiceMode = iota + 1
	// ChoiceSingle is a radio list; selecting records but keeps the surface open.
	ChoiceSingle
	// ChoiceMulti is a checkbox list; toggling records but keeps the surface open.
	ChoiceMulti
)

func (m ChoiceMode) String() string {
	switch m {
	case ChoicePlain:
		return "plain"
	case ChoiceSingle:
		return "single"
	case ChoiceMulti:
		return "multi"
	}
	return "none"
}

// ButtonSpec declares one alert button.
type ButtonSpec struct {
	Text string
	// Override keeps the surface open after a press; the handler decides
	// when to dismiss through its Control.
	Override bool
	Handler  func(ctrl Control)
}

// ChoiceList declares the alert's choice items. Only one list per alert.
type ChoiceList struct {
	Mode  ChoiceMode
	Items []string
	// Selected is the initially selected index for ChoiceSingle, -1 for none.
	Selected int
	// Checked is the initial state for ChoiceMulti.
	Checked []bool
	Handler func(which int, checked bool)
}

// Declaration is the complete, read-only description of an alert surface.
type Declaration struct {
	Title    string
	Message  string
	Positive *ButtonSpec
	Negative *ButtonSpec
	Neutral  *ButtonSpec
	Choices  *ChoiceList
	// OnDismiss runs once when the session ends through the surface.
	OnDismiss func()
}

// Button returns the spec for b, or nil when the alert does not declare it.
func (d Declaration) Button(b Button) *ButtonSpec {
	switch b {
	case ButtonPositive:
		return d.Positive
	case ButtonNegative:
		return d.Negative
	case ButtonNeutral:
		return d.Neutral
	}
	return nil
}

// AlertBuilder collects an alert declaration.
type AlertBuilder struct {
	decl Declaration
}

// NewAlertBuilder returns an empty builder.
func NewAlertBuilder() *AlertBuilder { return &AlertBuilder{} }

func (b *AlertBuilder) SetTitle(title string) *AlertBuilder {
	b.decl.Title = title
	return b
}

func (b *AlertBuilder) SetMessage(msg string) *AlertBuilder {
	b.decl.Message = msg
	return b
}

// SetPositiveButton declares a positive button that closes the surface.
// fn may be nil.
func (b *AlertBuilder) SetPositiveButton(text string, fn func()) *AlertBuilder {
	b.decl.Positive = plainButton(text, fn)
	return b
}

func (b *AlertBuilder) SetNegativeButton(text string, fn func()) *AlertBuilder {
	b.decl.Negative = plainButton(text, fn)
	return b
}

func (b *AlertBuilder) SetNeutralButton(text string, fn func()) *AlertBuilder {
	b.decl.Neutral = plainButton(text, fn)
	return b
}

// OverridePositiveButton declares a positive button that keeps the surface
// open; fn must call ctrl.Dismiss to close it.
func (b *AlertBuilder) OverridePositiveButton(text string, fn func(ctrl Control)) *AlertBuilder {
	b.decl.Positive = &ButtonSpec{Text: text, Override: true, Handler: fn}
	return b
}

func (b *AlertBuilder) OverrideNegativeButton(text string, fn func(ctrl Control)) *AlertBuilder {
	b.decl.Negative = &ButtonSpec{Text: text, Override: true, Handler: fn}
	return b
}

func (b *AlertBuilder) OverrideNeutralButton(text string, fn func(ctrl Control)) *AlertBuilder {
	b.decl.Neutral = &ButtonSpec{Text: text, Override: true, Handler: fn}
	return b
}

// SetItems declares a plain choice list. Replaces any other list.
func (b *AlertBuilder) SetItems(items []string, fn func(which int)) *AlertBuilder {
	b.decl.Choices = &ChoiceList{Mode: ChoicePlain, Items: cloneStrings(items), Selected: -1}
	if fn != nil {
		b.decl.Choices.Handler = func(which int, _ bool) { fn(which) }
	}
	return b
}

// SetSingleChoiceItems declares a radio list. Replaces any other list.
func (b *AlertBuilder) SetSingleChoiceItems(items []string, selected int, fn func(which int)) *AlertBuilder {
	b.decl.Choices = &ChoiceList{Mode: ChoiceSingle, Items: cloneStrings(items), Selected: selected}
	if fn != nil {
		b.decl.Choices.Handler = func(which int, _ bool) { fn(which) }
	}
	return b
}

// SetMultiChoiceItems declares a checkbox list. Replaces any other list.
func (b *AlertBuilder) SetMultiChoiceItems(items []string, checked []bool, fn func(which int, checked bool)) *AlertBuilder {
	c := make([]bool, len(items))
	copy(c, checked)
	b.decl.Choices = &ChoiceList{Mode: ChoiceMulti, Items: cloneStrings(items), Selected: -1, Checked: c, Handler: fn}
	return b
}

func (b *AlertBuilder) SetOnDismiss(fn func()) *AlertBuilder {
	b.decl.OnDismiss = fn
	return b
}

// Declaration returns what has been declared so far.
func (b *AlertBuilder) Declaration() Declaration { return b.decl }

func plainButton(text string, fn func()) *ButtonSpec {
	spec := &ButtonSpec{Text: text}
	if fn != nil {
		spec.Handler = func(Control) { fn() }
	}
	return spec
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
