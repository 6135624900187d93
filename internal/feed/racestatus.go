package feed

import (
	"context"
	"fmt"
	"log"

	"github.com/nhle/runalert/internal/model"
	"github.com/nhle/runalert/internal/remote"
)

// SubscribeToRaceStatus delivers the latest status for editionID, or nil
// when none has been published.
func (s *Service) SubscribeToRaceStatus(ctx context.Context, editionID string, fn func(*model.RaceStatus)) (func(), error) {
	q := remote.Query{
		Collection: s.collections.RaceStatus,
		OrderBy:    "updatedAt",
		Desc:       true,
		Limit:      1,
	}.Where("eventEditionId", editionID)

	unsubscribe, err := s.d.Remote.Subscribe(ctx, q, func(docs []remote.Document, err error) {
		if err != nil {
			log.Printf("feed: race status subscription: %v", err)
			return
		}
		if len(docs) == 0 {
			fn(nil)
			return
		}
		rs := model.RaceStatusFromFields(docs[0].Fields, s.now())
		fn(&rs)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to race status: %w", err)
	}
	return unsubscribe, nil
}
