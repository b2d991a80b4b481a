package domain

// Action represents the type of trading action proposed by the trigger engine.
type Action int

const (
	ActionBuy Action = iota
	ActionSell
)

const (
	actionStringBuy  = "buy"
	actionStringSell = "sell"
)

// String returns the string representation of the action.
func (a Action) String() string {
	switch a {
	case ActionBuy:
		return actionStringBuy
	case ActionSell:
		return actionStringSell
	default:
		return "unknown"
	}
}
