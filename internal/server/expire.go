package server

import (
	"time"

	"github.com/landbridge/landbridge/internal/collection"
	"github.com/landbridge/landbridge/internal/log"
	"github.com/landbridge/landbridge/internal/object"
)

const bgExpireDelay = time.Second / 10

// backgroundExpiring watches for when items that have expired must be purged
// from the database. It's executes 10 times a seconds.
func (s *Server) backgroundExpiring() {
	for {
		if s.stopServer.on() {
			return
		}
		func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			now := time.Now()
			s.backgroundExpireObjects(now)
		}()
		time.Sleep(bgExpireDelay)
	}
}

func (s *Server) backgroundExpireObjects(now time.Time) {
	nano := now.UnixNano()
	var msgs []*Message
	s.cols.Scan(func(key string, col *collection.Collection) bool {
		col.ScanExpired(nano, func(o *object.Object) bool {
			msgs = append(msgs, &Message{
				Args: []string{"del", key, o.ID()},
			})
			return true
		})
		return true
	})
	for _, msg := range msgs {
		_, d, err := s.cmdDel(msg)
		if err != nil {
			log.Fatal(err)
		}
		if err := s.writeAOF(msg.Args, &d); err != nil {
			log.Fatal(err)
		}
	}
	if len(msgs) > 0 {
		s.statsExpired.add(len(msgs))
		log.Debugf("Expired %d objects\n", len(msgs))
	}
}
