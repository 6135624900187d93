package feed

import (
	"fmt"
	"log"

	"github.com/nhle/runalert/internal/model"
	"github.com/nhle/runalert/internal/store"
)

// Filters returns the current user's saved filter options.
func (s *Service) Filters() model.FilterOptions {
	var opts model.FilterOptions
	store.LoadJSON(s.d.Cache, store.FilterOptionsKey(s.uid()), &opts)
	return opts
}

// ToggleFilter flips the named filter and persists the result.
func (s *Service) ToggleFilter(name string) (model.FilterOptions, error) {
	opts := s.Filters()
	if !opts.Toggle(name) {
		return opts, fmt.Errorf("unknown filter %q", name)
	}
	if err := store.SaveJSON(s.d.Cache, store.FilterOptionsKey(s.uid()), opts); err != nil {
		log.Printf("feed: saving filters: %v", err)
	}
	return opts, nil
}

func (s *Service) uid() string {
	if u := s.d.Session.CurrentUser(); u != nil {
		return u.UID
	}
	return ""
}

// Visible applies opts to items. Dismissed items are hidden unless
// ShowDismissed is set; openID is always kept so the open message does not
// vanish when it is marked read.
func Visible(items []model.FeedItem, opts model.FilterOptions, openID string) []model.FeedItem {
	out := make([]model.FeedItem, 0, len(items))
	for _, it := range items {
		if it.Dismissed && !opts.ShowDismissed {
			continue
		}
		if it.ID == openID && openID != "" {
			out = append(out, it)
			continue
		}
		if opts.OnlyImportant && !it.Priority.IsImportant() {
			continue
		}
		if opts.HideRead && it.Read && it.Priority.IsInformational() {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Unread counts unread, undismissed items.
func Unread(items []model.FeedItem) int {
	n := 0
	for _, it := range items {
		if !it.Read && !it.Dismissed {
			n++
		}
	}
	return n
}
