// Package records is the hosted data API the wizard and the box-office flow
// talk to.  Records are created once, read back by id and only ever have
// their film_screenings section replaced.
package records

import (
	"context"
	"fmt"
	"slices"

	"github.com/iliyamo/screening-license/internal/model"
	"github.com/iliyamo/screening-license/internal/repository"
)

// Client is the records API.  Create is not idempotent: two calls create
// two records.
type Client interface {
	Create(ctx context.Context, kind model.RecordKind, s model.Submission) (model.Record, error)
	Get(ctx context.Context, kind model.RecordKind, id string) (model.Record, error)
	UpdateFilmScreenings(ctx context.Context, kind model.RecordKind, id string, fs model.FilmScreenings) (model.Record, error)
}

// checkLocks rejects a film_screenings replacement that unlocks a locked
// screening or alters the tickets of one.
func checkLocks(old, next model.FilmScreenings) error {
	byGUID := make(map[string]model.Screening)
	for _, f := range next.ScreeningsList {
		for _, sc := range f.Screenings {
			if sc.ScreeningGUID != "" {
				byGUID[sc.ScreeningGUID] = sc
			}
		}
	}
	for _, f := range old.ScreeningsList {
		for _, sc := range f.Screenings {
			if !sc.BoxOfficeReturn {
				continue
			}
			n, ok := byGUID[sc.ScreeningGUID]
			if !ok || !n.BoxOfficeReturn {
				return fmt.Errorf("%w: screening %s is locked", repository.ErrConflict, sc.ScreeningGUID)
			}
			if !slices.Equal(sc.TicketInfo, n.TicketInfo) {
				return fmt.Errorf("%w: tickets of screening %s are locked", repository.ErrConflict, sc.ScreeningGUID)
			}
		}
	}
	return nil
}
