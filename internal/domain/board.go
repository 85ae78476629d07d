package domain

// DefaultBoardID identifies the board every new connection starts on.
// It is created at process start and, like every board, never deleted.
const DefaultBoardID = "default"

// DefaultBoardName is used for boards created without a name.
const DefaultBoardName = "Untitled Board"

// Board is a named canvas with its ordered element list.
type Board struct {
	ID       string
	Name     string
	Elements []Element
}

// BoardSummary is the board-list entry sent to clients.
type BoardSummary struct {
	ID   string `json:"id" doc:"Board ID"`
	Name string `json:"name" doc:"Board name"`
}

// Summary returns the id/name pair of the board.
func (b *Board) Summary() BoardSummary {
	return BoardSummary{ID: b.ID, Name: b.Name}
}
