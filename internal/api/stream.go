package api

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const streamOutbox = 32

var errSlowSubscriber = errors.New("subscriber outbox full")

// streamSubscriber buffers events for one SSE connection. A full outbox
// fails the write and closes done, which ends the connection.
type streamSubscriber struct {
	userID int64
	outbox chan []byte
	done   chan struct{}
	once   sync.Once
}

func newStreamSubscriber(userID int64) *streamSubscriber {
	return &streamSubscriber{
		userID: userID,
		outbox: make(chan []byte, streamOutbox),
		done:   make(chan struct{}),
	}
}

func (s *streamSubscriber) UserID() int64 { return s.userID }

func (s *streamSubscriber) Send(event []byte) error {
	select {
	case <-s.done:
		return errSlowSubscriber
	default:
	}
	select {
	case s.outbox <- event:
		return nil
	default:
		s.once.Do(func() { close(s.done) })
		return errSlowSubscriber
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	circleID, err := pathID(r, "circleID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid circle id")
		return
	}
	userID := currentUser(r)
	if !s.svc.IsMember(circleID, userID) {
		s.respondError(w, http.StatusForbidden, "not a member of this circle")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := newStreamSubscriber(userID)
	id := s.hub.Subscribe(circleID, sub)
	defer s.hub.Unsubscribe(circleID, id)

	log := s.logger.WithFields(logrus.Fields{"circle_id": circleID, "user_id": userID, "subscriber_id": id})
	log.Info("Live stream opened")
	defer log.Info("Live stream closed")

	keepAlive := time.NewTicker(s.streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.done:
			return
		case <-sub.done:
			log.Warn("Live stream too slow, disconnecting")
			return
		case event := <-sub.outbox:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", event); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
