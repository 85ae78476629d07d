package router

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/zenboard/internal/domain"
	"github.com/gosuda/zenboard/internal/metrics"
	"github.com/gosuda/zenboard/internal/session"
	"github.com/gosuda/zenboard/internal/store/memory"
)

// elementUpdate is a payload that patches one element by id.
type elementUpdate interface {
	TargetID() string
	Validate() error
	Patch() domain.ElementPatch
}

// appendElement handles draw-line, new-shape and new-object: append to the
// sender's board, rebroadcast to the rest of that board.
func (r *Router) appendElement(et domain.EventType, kind domain.ElementKind) handlerFunc {
	return func(s *session.Session, data json.RawMessage) (string, error) {
		el, err := domain.DecodeElement(kind, data)
		if err != nil {
			return "", err
		}
		if el.ID == "" {
			el.ID = uuid.NewString()
		}

		msg, err := domain.EncodeMessage(et, el)
		if err != nil {
			return "", err
		}

		return r.onBoard(s, func(tx *memory.Tx) string {
			tx.Append(el)
			r.fanOut(tx.ID(), s.ID(), msg)
			r.mirrorBoard(tx.ID(), msg)
			return metrics.ResultApplied
		})
	}
}

// updateElement handles the update-* events. A missing target changes
// nothing and is not rebroadcast.
func updateElement[T elementUpdate](r *Router, et domain.EventType) handlerFunc {
	return func(s *session.Session, data json.RawMessage) (string, error) {
		update, err := domain.DecodePayload[T](data)
		if err != nil {
			return "", err
		}
		if err := update.Validate(); err != nil {
			return "", err
		}

		msg, err := domain.EncodeMessage(et, update)
		if err != nil {
			return "", err
		}

		return r.onBoard(s, func(tx *memory.Tx) string {
			if !tx.Update(update.TargetID(), update.Patch()) {
				return metrics.ResultNoop
			}
			r.fanOut(tx.ID(), s.ID(), msg)
			r.mirrorBoard(tx.ID(), msg)
			return metrics.ResultApplied
		})
	}
}

func (r *Router) deleteObject(s *session.Session, data json.RawMessage) (string, error) {
	ref, err := domain.DecodePayload[domain.ElementRef](data)
	if err != nil {
		return "", err
	}
	if err := ref.Validate(); err != nil {
		return "", err
	}

	msg, err := domain.EncodeMessage(domain.EventDeleteObject, ref)
	if err != nil {
		return "", err
	}

	return r.onBoard(s, func(tx *memory.Tx) string {
		if tx.Remove(ref.TargetID()) == 0 {
			return metrics.ResultNoop
		}
		r.fanOut(tx.ID(), s.ID(), msg)
		r.mirrorBoard(tx.ID(), msg)
		return metrics.ResultApplied
	})
}

// clearBoard empties the sender's board and tells every session in the
// process, the sender included. The payload names the board so clients on
// other boards can ignore it.
func (r *Router) clearBoard(s *session.Session, _ json.RawMessage) (string, error) {
	return r.onBoard(s, func(tx *memory.Tx) string {
		tx.Clear()

		msg, err := domain.EncodeMessage(domain.EventClearBoard, domain.BoardCleared{BoardID: tx.ID()})
		if err != nil {
			log.Error().Err(err).Msg("encode clear board")
			return metrics.ResultApplied
		}
		r.broadcastAll(msg)
		r.mirrorBoard(tx.ID(), msg)
		return metrics.ResultApplied
	})
}

func (r *Router) createBoard(s *session.Session, data json.RawMessage) (string, error) {
	req, err := domain.DecodePayload[domain.CreateBoardRequest](data)
	if err != nil {
		return "", err
	}
	r.addBoard(req.Name, s)
	return metrics.ResultApplied, nil
}

// addBoard creates a board, acknowledges to creator when there is one, then
// sends every session the new board list.
func (r *Router) addBoard(name string, creator *session.Session) domain.BoardSummary {
	summary := r.store.CreateBoard(strings.TrimSpace(name))
	r.metrics.SetBoards(r.store.Len())

	event := log.Info().Str("board_id", summary.ID).Str("name", summary.Name)
	if creator != nil {
		event = event.Str("conn_id", creator.ID())
		ack, err := domain.EncodeMessage(domain.EventBoardCreated, summary)
		if err != nil {
			log.Error().Err(err).Msg("encode board created")
		} else {
			r.send(creator, ack)
		}
	}

	list := r.boardListMessage()
	r.broadcastAll(list)
	if r.mirror != nil && list != nil {
		r.mirror.Boards(list)
	}

	event.Msg("board created")
	return summary
}

// joinBoard moves the sender and sends it the target's snapshot. An unknown
// board leaves the membership unchanged and sends nothing.
func (r *Router) joinBoard(s *session.Session, data json.RawMessage) (string, error) {
	req, err := domain.DecodePayload[domain.JoinBoardRequest](data)
	if err != nil {
		return "", err
	}

	err = r.store.Do(req.BoardID, func(tx *memory.Tx) {
		s.MoveTo(tx.ID())
		r.send(s, initStateMessage(tx))
	})
	if errors.Is(err, domain.ErrNotFound) {
		log.Debug().Str("conn_id", s.ID()).Str("board_id", req.BoardID).Msg("join unknown board ignored")
		return metrics.ResultNoop, nil
	}
	if err != nil {
		return "", err
	}
	return metrics.ResultApplied, nil
}

func (r *Router) requestBoardList(s *session.Session, _ json.RawMessage) (string, error) {
	r.send(s, r.boardListMessage())
	return metrics.ResultApplied, nil
}

// cursorMove relays a pointer position to the sender's board. Cursors never
// touch the store and are not mirrored.
func (r *Router) cursorMove(s *session.Session, data json.RawMessage) (string, error) {
	cursor, err := domain.DecodePayload[domain.Cursor](data)
	if err != nil {
		return "", err
	}
	if cursor.UserID == "" {
		cursor.UserID = s.ID()
	}

	msg, err := domain.EncodeMessage(domain.EventCursorMove, cursor)
	if err != nil {
		return "", err
	}
	r.fanOut(s.BoardID(), s.ID(), msg)
	return metrics.ResultApplied, nil
}

// onBoard runs fn under the lock of the sender's current board.
func (r *Router) onBoard(s *session.Session, fn func(tx *memory.Tx) string) (string, error) {
	var result string
	err := r.store.Do(s.BoardID(), func(tx *memory.Tx) {
		result = fn(tx)
	})
	if err != nil {
		return "", err
	}
	return result, nil
}
