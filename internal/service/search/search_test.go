package search

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carwave/carpool/internal/domain/review"
	"github.com/carwave/carpool/internal/domain/ride"
	"github.com/carwave/carpool/internal/domain/user"
	"github.com/carwave/carpool/internal/geo"
	"github.com/carwave/carpool/internal/store/memory"
	"github.com/carwave/carpool/internal/store/storetest"
	apperrors "github.com/carwave/carpool/pkg/errors"
)

type fakeGeocoder struct {
	places map[string]geo.Point
	calls  int
}

func (g *fakeGeocoder) Resolve(_ context.Context, place string) (geo.Point, error) {
	g.calls++
	if p, ok := g.places[place]; ok {
		return p, nil
	}
	return geo.Point{}, errors.New("upstream timeout")
}

func (g *fakeGeocoder) Reverse(context.Context, geo.Point) (string, error) {
	return "", errors.New("not used")
}

type fakeReputation struct {
	summaries map[uuid.UUID]review.Summary
	calls     int
}

func (r *fakeReputation) Summary(_ context.Context, id uuid.UUID, role review.Role) (review.Summary, error) {
	r.calls++
	s, ok := r.summaries[id]
	if !ok {
		return review.Summary{UserID: id, Role: role}, nil
	}
	return s, nil
}

func ptr[T any](v T) *T { return &v }

func rated(avg float64, tags ...string) review.Summary {
	return review.Summary{Role: review.RoleDriver, Average: &avg, Count: 1, TopTags: tags}
}

type fixture struct {
	st   *memory.Store
	geo  *fakeGeocoder
	rep  *fakeReputation
	svc  *Service
	base time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		st:   memory.New(),
		geo:  &fakeGeocoder{places: map[string]geo.Point{"Berlin": storetest.Berlin}},
		rep:  &fakeReputation{summaries: map[uuid.UUID]review.Summary{}},
		base: storetest.Base,
	}
	f.svc = NewService(f.st, f.geo, f.rep, nil, nil, DefaultConfig)
	f.svc.now = func() time.Time { return f.base.Add(-48 * time.Hour) }
	return f
}

func (f *fixture) ride(t *testing.T, driver *user.User, to geo.Point, arrive time.Time, created time.Duration) *ride.Ride {
	t.Helper()
	return storetest.MustRide(t, f.st, storetest.RideParams{
		Driver:    driver.ID,
		To:        to,
		ArriveAt:  arrive,
		CreatedAt: f.base.Add(-72*time.Hour + created),
	})
}

func ids(rides []*ride.Ride) []uuid.UUID {
	out := make([]uuid.UUID, len(rides))
	for i, r := range rides {
		out[i] = r.ID
	}
	return out
}

func TestSearchArrivalScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driver := storetest.MustUser(t, f.st, nil, nil)

	for i := 0; i < 7; i++ {
		f.ride(t, driver, storetest.Berlin, f.base.Add(time.Duration(i*5-15)*time.Minute), time.Duration(i)*time.Minute)
	}
	f.ride(t, driver, storetest.Potsdam, f.base, time.Hour)
	f.ride(t, driver, storetest.Berlin, f.base.Add(31*time.Minute), time.Hour)

	radius := 5000.0
	tolerance := 30 * time.Minute
	res, err := f.svc.Search(ctx, nil, Criteria{
		To:              Place{Point: &storetest.Berlin, RadiusMeters: &radius},
		ArriveBy:        &f.base,
		ArriveTolerance: &tolerance,
		Limit:           5,
	})
	require.NoError(t, err)
	require.Len(t, res.Rides, 5)
	for _, r := range res.Rides {
		assert.LessOrEqual(t, geo.DistanceMeters(r.Arrival, storetest.Berlin), radius)
		assert.LessOrEqual(t, r.ArrivalAt.Sub(f.base).Abs(), tolerance)
	}
	assert.Empty(t, res.Unresolved)
}

func TestSearchDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driver := storetest.MustUser(t, f.st, nil, nil)
	for i := 0; i < 8; i++ {
		f.ride(t, driver, storetest.Berlin, f.base, time.Duration(i)*time.Minute)
	}
	outside := f.ride(t, driver, storetest.Berlin, f.base.Add(40*time.Minute), time.Hour)

	// no radius or tolerance given: 5000 m and 30 minutes apply
	res, err := f.svc.Search(ctx, nil, Criteria{To: Place{Point: &storetest.Berlin}, ArriveBy: &f.base})
	require.NoError(t, err)
	assert.Len(t, res.Rides, 5)
	assert.NotContains(t, ids(res.Rides), outside.ID)

	// empty criteria never fail
	res, err = f.svc.Search(ctx, nil, Criteria{})
	require.NoError(t, err)
	assert.Len(t, res.Rides, 5)
}

func TestSearchLimitClamp(t *testing.T) {
	f := newFixture(t)
	driver := storetest.MustUser(t, f.st, nil, nil)
	for i := 0; i < 60; i++ {
		f.ride(t, driver, storetest.Berlin, f.base, time.Duration(i)*time.Second)
	}

	tests := []struct {
		limit int
		want  int
	}{
		{0, 5},
		{-3, 1},
		{7, 7},
		{1000, 50},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.limit), func(t *testing.T) {
			res, err := f.svc.Search(context.Background(), nil, Criteria{Limit: tt.limit})
			require.NoError(t, err)
			assert.Len(t, res.Rides, tt.want)
		})
	}
}

func TestNewServiceFillsZeroConfig(t *testing.T) {
	svc := NewService(memory.New(), nil, nil, nil, nil, Config{})
	assert.Equal(t, DefaultConfig.DefaultLimit, svc.clampLimit(0))
	assert.Equal(t, DefaultConfig.MaxLimit, svc.clampLimit(1000))
	assert.Equal(t, DefaultConfig.MinLimit, svc.clampLimit(-1))
}

func TestSearchAgeBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	at20 := f.ride(t, storetest.MustUser(t, f.st, ptr(20), nil), storetest.Berlin, f.base, 1*time.Minute)
	at19 := f.ride(t, storetest.MustUser(t, f.st, ptr(19), nil), storetest.Berlin, f.base, 2*time.Minute)
	at30 := f.ride(t, storetest.MustUser(t, f.st, ptr(30), nil), storetest.Berlin, f.base, 3*time.Minute)
	at31 := f.ride(t, storetest.MustUser(t, f.st, ptr(31), nil), storetest.Berlin, f.base, 4*time.Minute)
	f.ride(t, storetest.MustUser(t, f.st, nil, nil), storetest.Berlin, f.base, 5*time.Minute)

	res, err := f.svc.Search(ctx, nil, Criteria{Age: geo.Between(20, 30), Limit: 10})
	require.NoError(t, err)
	got := ids(res.Rides)
	assert.Equal(t, []uuid.UUID{at20.ID, at30.ID}, got)
	assert.NotContains(t, got, at19.ID)
	assert.NotContains(t, got, at31.ID)
}

func TestSearchSex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	female := f.ride(t, storetest.MustUser(t, f.st, nil, ptr(user.SexFemale)), storetest.Berlin, f.base, time.Minute)
	f.ride(t, storetest.MustUser(t, f.st, nil, ptr(user.SexMale)), storetest.Berlin, f.base, 2*time.Minute)
	f.ride(t, storetest.MustUser(t, f.st, nil, nil), storetest.Berlin, f.base, 3*time.Minute)

	res, err := f.svc.Search(ctx, nil, Criteria{Sex: "F"})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{female.ID}, ids(res.Rides))

	_, err = f.svc.Search(ctx, nil, Criteria{Sex: "robot"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Equal(t, "sex", apperrors.GetAppError(err).Field)
}

func TestSearchConjunction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	young := storetest.MustUser(t, f.st, ptr(22), ptr(user.SexFemale))
	old := storetest.MustUser(t, f.st, ptr(50), ptr(user.SexMale))
	f.rep.summaries[young.ID] = rated(4.8, "punctual")
	f.rep.summaries[old.ID] = rated(3.0, "chatty")

	var created time.Duration
	for _, d := range []*user.User{young, old} {
		for _, to := range []geo.Point{storetest.Berlin, storetest.Munich} {
			for _, at := range []time.Time{f.base, f.base.Add(2 * time.Hour)} {
				created += time.Minute
				f.ride(t, d, to, at, created)
			}
		}
	}

	criteria := []Criteria{
		{To: Place{Point: &storetest.Berlin}},
		{ArriveBy: &f.base},
		{Sex: "F"},
		{Age: geo.AtLeast(30)},
		{Rating: geo.AtLeast(4.0)},
		{Tags: []string{"chatty"}},
	}
	merge := func(a, b Criteria) Criteria {
		c := a
		if b.To.isSet() {
			c.To = b.To
		}
		if b.ArriveBy != nil {
			c.ArriveBy = b.ArriveBy
		}
		if b.Sex != "" {
			c.Sex = b.Sex
		}
		if b.Age.Active() {
			c.Age = b.Age
		}
		if b.Rating.Active() {
			c.Rating = b.Rating
		}
		if len(b.Tags) > 0 {
			c.Tags = b.Tags
		}
		c.Limit = 50
		return c
	}
	run := func(c Criteria) map[uuid.UUID]bool {
		c.Limit = 50
		res, err := f.svc.Search(ctx, nil, c)
		require.NoError(t, err)
		set := make(map[uuid.UUID]bool)
		for _, r := range res.Rides {
			set[r.ID] = true
		}
		return set
	}

	for i, c1 := range criteria {
		for j, c2 := range criteria {
			if i >= j {
				continue
			}
			both := run(merge(c1, c2))
			left, right := run(c1), run(c2)
			for id := range both {
				assert.True(t, left[id] && right[id], "criteria %d and %d", i, j)
			}
		}
	}
}

func TestSearchReputationFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	good := storetest.MustUser(t, f.st, nil, nil)
	poor := storetest.MustUser(t, f.st, nil, nil)
	unrated := storetest.MustUser(t, f.st, nil, nil)
	f.rep.summaries[good.ID] = rated(4.5, "punctual", "quiet")
	f.rep.summaries[poor.ID] = rated(2.0, "punctual")

	g1 := f.ride(t, good, storetest.Berlin, f.base, 1*time.Minute)
	p1 := f.ride(t, poor, storetest.Berlin, f.base, 2*time.Minute)
	f.ride(t, unrated, storetest.Berlin, f.base, 3*time.Minute)
	g2 := f.ride(t, good, storetest.Berlin, f.base, 4*time.Minute)

	res, err := f.svc.Search(ctx, nil, Criteria{Rating: geo.Between(4.0, 5.0)})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{g1.ID, g2.ID}, ids(res.Rides))
	// one reputation lookup per driver
	assert.Equal(t, 3, f.rep.calls)

	res, err = f.svc.Search(ctx, nil, Criteria{Rating: geo.AtMost(4.5)})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{g1.ID, p1.ID, g2.ID}, ids(res.Rides))

	res, err = f.svc.Search(ctx, nil, Criteria{Tags: []string{"punctual"}})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{g1.ID, p1.ID, g2.ID}, ids(res.Rides))

	res, err = f.svc.Search(ctx, nil, Criteria{Tags: []string{" quiet ", "punctual"}})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{g1.ID, g2.ID}, ids(res.Rides))

	res, err = f.svc.Search(ctx, nil, Criteria{Tags: []string{"quiet"}, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{g1.ID}, ids(res.Rides))
}

func TestSearchReputationPagesPastCandidateCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	poor := storetest.MustUser(t, f.st, nil, nil)
	good := storetest.MustUser(t, f.st, nil, nil)
	f.rep.summaries[poor.ID] = rated(1.0, "late")
	f.rep.summaries[good.ID] = rated(5.0, "punctual")

	for i := 0; i < DefaultConfig.CandidateCap+100; i++ {
		f.ride(t, poor, storetest.Berlin, f.base, time.Duration(i)*time.Second)
	}
	match := f.ride(t, good, storetest.Berlin, f.base, time.Hour)

	res, err := f.svc.Search(ctx, nil, Criteria{Rating: geo.AtLeast(4.0)})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{match.ID}, ids(res.Rides))

	res, err = f.svc.Search(ctx, nil, Criteria{Tags: []string{"punctual"}})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{match.ID}, ids(res.Rides))
}

func TestSearchReputationPageBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		poor    int
		good    int
		limit   int
		matches int
	}{
		{"match on the first page", 1, 1, 5, 1},
		{"page exactly full", 3, 0, 5, 0},
		{"match right after a full page", 3, 1, 5, 1},
		{"matches spread over pages", 7, 4, 5, 4},
		{"limit reached mid page", 2, 6, 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			cfg := DefaultConfig
			cfg.CandidateCap = 3
			f.svc = NewService(f.st, f.geo, f.rep, nil, nil, cfg)

			poor := storetest.MustUser(t, f.st, nil, nil)
			good := storetest.MustUser(t, f.st, nil, nil)
			f.rep.summaries[poor.ID] = rated(1.0)
			f.rep.summaries[good.ID] = rated(5.0)

			var want []uuid.UUID
			for i := 0; i < tt.poor; i++ {
				f.ride(t, poor, storetest.Berlin, f.base, time.Duration(i)*time.Second)
			}
			for i := 0; i < tt.good; i++ {
				r := f.ride(t, good, storetest.Berlin, f.base, time.Hour+time.Duration(i)*time.Second)
				if len(want) < tt.limit {
					want = append(want, r.ID)
				}
			}

			res, err := f.svc.Search(context.Background(), nil, Criteria{Rating: geo.AtLeast(4.0), Limit: tt.limit})
			require.NoError(t, err)
			assert.Len(t, res.Rides, tt.matches)
			if tt.matches > 0 {
				assert.Equal(t, want, ids(res.Rides))
			}
			// reputation is fetched once per driver however many pages are read
			assert.LessOrEqual(t, f.rep.calls, 2)
		})
	}
}

func TestSearchGeocoding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driver := storetest.MustUser(t, f.st, nil, nil)
	berlin := f.ride(t, driver, storetest.Berlin, f.base, time.Minute)
	munich := f.ride(t, driver, storetest.Munich, f.base, 2*time.Minute)

	res, err := f.svc.Search(ctx, nil, Criteria{To: Place{Text: "Berlin"}})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{berlin.ID}, ids(res.Rides))

	_, err = f.svc.Search(ctx, nil, Criteria{To: Place{Text: "Atlantis"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrGeocoding)

	res, err = f.svc.Search(ctx, nil, Criteria{To: Place{Text: "Atlantis"}, SkipUnresolved: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"to"}, res.Unresolved)
	assert.Equal(t, []uuid.UUID{berlin.ID, munich.ID}, ids(res.Rides))

	// coordinates take precedence over text
	calls := f.geo.calls
	res, err = f.svc.Search(ctx, nil, Criteria{To: Place{Text: "Atlantis", Point: &storetest.Munich}})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{munich.ID}, ids(res.Rides))
	assert.Equal(t, calls, f.geo.calls)
}

func TestSearchExcludesActorAndPast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	me := storetest.MustUser(t, f.st, nil, nil)
	other := storetest.MustUser(t, f.st, nil, nil)

	f.ride(t, me, storetest.Berlin, f.base, time.Minute)
	past := f.ride(t, other, storetest.Berlin, f.base.Add(-72*time.Hour), 2*time.Minute)
	future := f.ride(t, other, storetest.Berlin, f.base, 3*time.Minute)

	res, err := f.svc.Search(ctx, &me.ID, Criteria{})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{past.ID, future.ID}, ids(res.Rides))

	res, err = f.svc.Search(ctx, &me.ID, Criteria{ExcludePast: true})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{future.ID}, ids(res.Rides))
}

func TestSearchTimeZoneNormalization(t *testing.T) {
	f := newFixture(t)
	driver := storetest.MustUser(t, f.st, nil, nil)
	r := f.ride(t, driver, storetest.Berlin, f.base, time.Minute)

	// the same instant expressed with a +02:00 offset
	offset := f.base.In(time.FixedZone("CEST", 2*60*60))
	zero := time.Duration(0)
	res, err := f.svc.Search(context.Background(), nil, Criteria{ArriveBy: &offset, ArriveTolerance: &zero})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{r.ID}, ids(res.Rides))
}
