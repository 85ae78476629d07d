package v1

import (
	"github.com/gosuda/zenboard/internal/domain"
)

// BoardService abstracts board operations for handler testing.
// *router.Router satisfies this interface.
type BoardService interface {
	ListBoards() []domain.BoardSummary
	CreateBoard(name string) domain.BoardSummary
	Elements(boardID string) ([]domain.Element, error)
}
