package analyticssvc

import (
	"context"

	analyticsrepo "unilib/repository/analytics"
)

// Dashboard bundles everything the staff analytics page shows.
type Dashboard struct {
	Stats       analyticsrepo.Stats        `json:"stats"`
	PerMonth    []analyticsrepo.MonthCount `json:"borrows_per_month"`
	TopBorrowed []analyticsrepo.TopBook    `json:"top_borrowed"`
}

type Service interface {
	Dashboard(ctx context.Context) (*Dashboard, error)
}

type service struct{ r analyticsrepo.Repo }

func New(r analyticsrepo.Repo) Service { return &service{r: r} }

func (s *service) Dashboard(ctx context.Context) (*Dashboard, error) {
	stats, err := s.r.Stats(ctx)
	if err != nil {
		return nil, err
	}
	perMonth, err := s.r.BorrowsPerMonth(ctx, 6)
	if err != nil {
		return nil, err
	}
	top, err := s.r.TopBorrowed(ctx, 5)
	if err != nil {
		return nil, err
	}
	return &Dashboard{Stats: *stats, PerMonth: perMonth, TopBorrowed: top}, nil
}
