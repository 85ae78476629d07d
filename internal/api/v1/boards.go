package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/zenboard/internal/domain"
)

type ListBoardsInput struct{}

type ListBoardsOutput struct {
	Body []domain.BoardSummary
}

type CreateBoardInput struct {
	Body struct {
		Name string `json:"name,omitempty" maxLength:"255" doc:"Board name; empty falls back to the default name"`
	}
}

type CreateBoardOutput struct {
	Body domain.BoardSummary
}

type ListElementsInput struct {
	BoardID string `path:"boardID" doc:"Board ID"`
}

type ListElementsOutput struct {
	Body []domain.Element
}

// RegisterBoardRoutes mounts the board endpoints. Boards created here are
// announced to connected clients exactly like a create-board event.
func RegisterBoardRoutes(api huma.API, boards BoardService) {
	huma.Register(api, huma.Operation{
		OperationID: "list-boards",
		Method:      http.MethodGet,
		Path:        "/boards",
		Summary:     "List boards in creation order",
		Tags:        []string{"Boards"},
	}, func(_ context.Context, _ *ListBoardsInput) (*ListBoardsOutput, error) {
		return &ListBoardsOutput{Body: boards.ListBoards()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-board",
		Method:        http.MethodPost,
		Path:          "/boards",
		Summary:       "Create a board",
		Tags:          []string{"Boards"},
		DefaultStatus: http.StatusCreated,
	}, func(_ context.Context, input *CreateBoardInput) (*CreateBoardOutput, error) {
		return &CreateBoardOutput{Body: boards.CreateBoard(input.Body.Name)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-board-elements",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}/elements",
		Summary:     "Get a snapshot of a board's elements",
		Tags:        []string{"Boards"},
	}, func(_ context.Context, input *ListElementsInput) (*ListElementsOutput, error) {
		els, err := boards.Elements(input.BoardID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("board not found")
			}
			return nil, huma.Error500InternalServerError("failed to list elements", err)
		}
		if els == nil {
			els = []domain.Element{}
		}
		return &ListElementsOutput{Body: els}, nil
	})
}
