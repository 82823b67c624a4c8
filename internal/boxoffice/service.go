package boxoffice

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/screening-license/internal/metrics"
	"github.com/iliyamo/screening-license/internal/model"
	"github.com/iliyamo/screening-license/internal/queue"
	"github.com/iliyamo/screening-license/internal/records"
	"github.com/iliyamo/screening-license/pkg/logger"
)

var (
	ErrAlreadyLocked     = errors.New("box-office return already locked")
	ErrScreeningNotFound = errors.New("screening not found")
	ErrInvalidSold       = errors.New("invalid tickets sold")
)

// MaxTicketsSold bounds a single reported sales figure.
const MaxTicketsSold = 1_000_000

// Publisher receives lock events.
type Publisher interface {
	PublishBoxOfficeLocked(ctx context.Context, ev queue.BoxOfficeLockedEvent) error
}

// Option is one screening of a record the user can report sales for.
type Option struct {
	FilmTitle     string `json:"film_title"`
	ScreeningDate string `json:"screening_date"`
	ScreeningGUID string `json:"screening_guid"`
	Format        string `json:"format"`
	Locked        bool   `json:"locked"`
}

// View is a single screening with its current fee summary.
type View struct {
	SubmissionID  string             `json:"submission_id"`
	Kind          model.RecordKind   `json:"kind"`
	FilmTitle     string             `json:"film_title"`
	ScreeningDate string             `json:"screening_date"`
	ScreeningGUID string             `json:"screening_guid"`
	Format        string             `json:"format"`
	Locked        bool               `json:"locked"`
	Tickets       []model.TicketInfo `json:"tickets"`
	Summary       Summary            `json:"summary"`
}

// Service runs the box-office flow against the records API.
type Service struct {
	records   records.Client
	publisher Publisher
	log       logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewService(rc records.Client, pub Publisher, log logger.Logger, m *metrics.Metrics) *Service {
	if rc == nil || log == nil {
		panic("boxoffice.NewService: nil dependency")
	}
	return &Service{records: rc, publisher: pub, log: log, metrics: m, now: time.Now}
}

// Options lists the screenings of titled films that carry both a guid and
// a date.
func (s *Service) Options(ctx context.Context, kind model.RecordKind, id string) ([]Option, error) {
	rec, err := s.records.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	out := []Option{}
	for _, f := range rec.FilmScreenings.ScreeningsList {
		if strings.TrimSpace(f.Title) == "" {
			continue
		}
		for _, sc := range f.Screenings {
			if sc.ScreeningGUID == "" || sc.ScreeningDate == "" {
				continue
			}
			out = append(out, Option{
				FilmTitle:     f.Title,
				ScreeningDate: sc.ScreeningDate,
				ScreeningGUID: sc.ScreeningGUID,
				Format:        sc.Format,
				Locked:        sc.BoxOfficeReturn,
			})
		}
	}
	return out, nil
}

// Screening returns one screening.  sold, when non-nil, is applied to a
// copy of the tickets so the summary previews the figures being typed.
// Locked screenings ignore sold.
func (s *Service) Screening(ctx context.Context, kind model.RecordKind, id, guid string, sold map[int]int64) (View, error) {
	rec, err := s.records.Get(ctx, kind, id)
	if err != nil {
		return View{}, err
	}
	fi, si, ok := locate(rec.FilmScreenings, guid)
	if !ok {
		return View{}, ErrScreeningNotFound
	}
	film := rec.FilmScreenings.ScreeningsList[fi]
	sc := film.Screenings[si]
	tickets := sc.TicketInfo
	if !sc.BoxOfficeReturn && sold != nil {
		if tickets, err = applySold(tickets, sold); err != nil {
			return View{}, err
		}
	}
	return newView(rec, film, sc, tickets), nil
}

// Preview prices tickets with sold applied, without touching anything.
func Preview(tickets []model.TicketInfo, sold map[int]int64) (Summary, error) {
	next, err := applySold(tickets, sold)
	if err != nil {
		return Summary{}, err
	}
	return Compute(next), nil
}

// Save records the sales of one screening and locks it.  The whole
// film_screenings section is written back in a single update.
func (s *Service) Save(ctx context.Context, kind model.RecordKind, id, guid string, sold map[int]int64) (View, error) {
	rec, err := s.records.Get(ctx, kind, id)
	if err != nil {
		return View{}, err
	}
	fi, si, ok := locate(rec.FilmScreenings, guid)
	if !ok {
		return View{}, ErrScreeningNotFound
	}
	fs := cloneScreenings(rec.FilmScreenings)
	sc := &fs.ScreeningsList[fi].Screenings[si]
	if sc.BoxOfficeReturn {
		return View{}, ErrAlreadyLocked
	}
	tickets, err := applySold(sc.TicketInfo, sold)
	if err != nil {
		return View{}, err
	}
	sc.TicketInfo = tickets
	sc.BoxOfficeReturn = true

	updated, err := s.records.UpdateFilmScreenings(ctx, kind, id, fs)
	if err != nil {
		s.log.Error("box office save failed", "submission_id", id, "screening_guid", guid, "error", err)
		return View{}, fmt.Errorf("update film screenings: %w", err)
	}
	s.metrics.BoxOfficeLocked()

	film := updated.FilmScreenings.ScreeningsList[fi]
	view := newView(updated, film, film.Screenings[si], film.Screenings[si].TicketInfo)
	s.log.Info("box office return locked", "submission_id", id, "screening_guid", guid, "total_fee", view.Summary.TotalFee)
	s.publish(ctx, view)
	return view, nil
}

func (s *Service) publish(ctx context.Context, v View) {
	if s.publisher == nil {
		return
	}
	var sold int64
	for _, t := range v.Tickets {
		sold += t.TicketsSold
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err := s.publisher.PublishBoxOfficeLocked(pctx, queue.BoxOfficeLockedEvent{
		SubmissionID:   v.SubmissionID,
		Kind:           string(v.Kind),
		ScreeningGUID:  v.ScreeningGUID,
		FilmTitle:      v.FilmTitle,
		ScreeningDate:  v.ScreeningDate,
		TicketsSold:    sold,
		TotalRevenue:   v.Summary.TotalRevenue,
		TotalFee:       v.Summary.TotalFee,
		MinimumApplied: v.Summary.MinimumApplied,
		LockedAt:       s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.log.Warn("box office event not published", "submission_id", v.SubmissionID, "error", err)
	}
}

// ParseSold reads "0:12,1:4" into ticket index -> sold.  An empty string
// is an empty map.
func ParseSold(raw string) (map[int]int64, error) {
	out := map[int]int64{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out, nil
	}
	for _, part := range strings.Split(raw, ",") {
		idx, n, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSold, part)
		}
		i, err := strconv.Atoi(idx)
		if err != nil || i < 0 {
			return nil, fmt.Errorf("%w: index %q", ErrInvalidSold, idx)
		}
		v, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: value %q", ErrInvalidSold, n)
		}
		out[i] = v
	}
	return out, nil
}

// applySold returns a copy of tickets with the reported figures.  Indexes
// not in sold keep their stored value.
func applySold(tickets []model.TicketInfo, sold map[int]int64) ([]model.TicketInfo, error) {
	out := append([]model.TicketInfo(nil), tickets...)
	for i, n := range sold {
		if i < 0 || i >= len(out) {
			return nil, fmt.Errorf("%w: no ticket %d", ErrInvalidSold, i)
		}
		if n < 0 || n > MaxTicketsSold {
			return nil, fmt.Errorf("%w: %d", ErrInvalidSold, n)
		}
		out[i].TicketsSold = n
	}
	return out, nil
}

func locate(fs model.FilmScreenings, guid string) (int, int, bool) {
	if guid == "" {
		return 0, 0, false
	}
	for fi, f := range fs.ScreeningsList {
		for si, sc := range f.Screenings {
			if sc.ScreeningGUID == guid {
				return fi, si, true
			}
		}
	}
	return 0, 0, false
}

func cloneScreenings(fs model.FilmScreenings) model.FilmScreenings {
	out := fs
	out.ScreeningsList = make([]model.Film, len(fs.ScreeningsList))
	for i, f := range fs.ScreeningsList {
		f.Studios = append([]string(nil), f.Studios...)
		scs := make([]model.Screening, len(f.Screenings))
		for j, sc := range f.Screenings {
			sc.TicketInfo = append([]model.TicketInfo(nil), sc.TicketInfo...)
			scs[j] = sc
		}
		f.Screenings = scs
		out.ScreeningsList[i] = f
	}
	return out
}

func newView(rec model.Record, f model.Film, sc model.Screening, tickets []model.TicketInfo) View {
	return View{
		SubmissionID:  rec.ID,
		Kind:          rec.Kind,
		FilmTitle:     f.Title,
		ScreeningDate: sc.ScreeningDate,
		ScreeningGUID: sc.ScreeningGUID,
		Format:        sc.Format,
		Locked:        sc.BoxOfficeReturn,
		Tickets:       tickets,
		Summary:       Compute(tickets),
	}
}
