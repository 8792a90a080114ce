package ir

// Event names the trigger carried by an External or Internal transition.
// Completion transitions carry no Event at all: their Transition.Event
// is nil rather than an Event with an empty Name.
type Event struct {
	Name string
	// Params is the opaque parameter-list text following the event name,
	// if the source declared one (e.g. "insertCoin(amount)"). Never
	// inspected by the core.
	Params string
}
