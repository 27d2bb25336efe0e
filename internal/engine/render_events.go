package engine

// RenderKind tells the renderer how much work an event demands.
type RenderKind string

const (
	// RenderRow re-synthesizes one row in place, keeping its position.
	RenderRow RenderKind = "row"
	// RenderWindow re-renders the visible window; a row's position
	// within the active bucket may have changed.
	RenderWindow RenderKind = "window"
	// RenderFull means the bucket set was replaced wholesale.
	RenderFull RenderKind = "full"
)

// RenderEvent is a row-level invalidation published to the renderer.
type RenderEvent struct {
	Kind           RenderKind
	ConversationID string
}
