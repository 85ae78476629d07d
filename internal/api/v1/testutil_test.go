package v1_test

import (
	"github.com/gosuda/zenboard/internal/domain"
)

// ---------------------------------------------------------------------------
// Mock BoardService
// ---------------------------------------------------------------------------

type mockBoardService struct {
	listBoardsFunc  func() []domain.BoardSummary
	createBoardFunc func(name string) domain.BoardSummary
	elementsFunc    func(boardID string) ([]domain.Element, error)
}

func (m *mockBoardService) ListBoards() []domain.BoardSummary {
	return m.listBoardsFunc()
}

func (m *mockBoardService) CreateBoard(name string) domain.BoardSummary {
	return m.createBoardFunc(name)
}

func (m *mockBoardService) Elements(boardID string) ([]domain.Element, error) {
	return m.elementsFunc(boardID)
}
