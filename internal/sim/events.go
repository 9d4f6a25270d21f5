package sim

// ActionKind identifies a contextual action the character can take right
// now, surfaced so a UI collaborator can prompt for it. The simulation only
// emits these events; it never reaches into presentation state.
type ActionKind uint8

const (
	ActionClimb ActionKind = iota
	ActionDrop
)

func (k ActionKind) String() string {
	switch k {
	case ActionClimb:
		return "climb"
	case ActionDrop:
		return "drop"
	}
	return "unknown"
}

// Events receives contextual-action notifications from the controller.
type Events interface {
	ActionAvailable(kind ActionKind)
	ActionCleared()
}

// NopEvents discards all notifications.
type NopEvents struct{}

func (NopEvents) ActionAvailable(ActionKind) {}
func (NopEvents) ActionCleared()             {}
