package chat

// UpdateKind names a change to a Session.
type UpdateKind string

const (
	UpdateMessageAdded      UpdateKind = "message.added"
	UpdateFragment          UpdateKind = "message.fragment"
	UpdateMessageRemoved    UpdateKind = "message.removed"
	UpdateCleared           UpdateKind = "session.cleared"
	UpdateExchangeCompleted UpdateKind = "exchange.completed"
	UpdateExchangeFailed    UpdateKind = "exchange.failed"
)

// Update is delivered to the Session observer after each change.
// Message is a copy; Fragment is set for UpdateFragment and Err for
// UpdateExchangeFailed.
type Update struct {
	Kind     UpdateKind
	Message  Message
	Fragment string
	Err      error
}
