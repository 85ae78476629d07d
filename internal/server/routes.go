package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/zenboard/internal/api/v1"
	"github.com/gosuda/zenboard/internal/api/ws"
)

func registerAPIRoutes(api huma.API, boards v1.BoardService) {
	v1.RegisterBoardRoutes(api, boards)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/", hub.ServeBoard)
	if hub.Observable() {
		r.Get("/boards/{boardID}/observe", hub.ServeObserve)
	}
}
