package analytics

import (
	"context"
	"iter"
	"log"
	"sort"
	"time"

	"backend-groupride/internal/history"
	"backend-groupride/internal/ride"
	"backend-groupride/internal/shared/clock"
	"backend-groupride/internal/shared/units"

	"gonum.org/v1/gonum/stat"
)

// Source is the read side of ride history.
type Source interface {
	List(ctx context.Context) ([]ride.Record, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]ride.Record, error)
}

type Config struct {
	QualifyingDistanceM float64
	DailyGoalM          float64
	WeekStart           time.Weekday
	Location            *time.Location
}

func DefaultConfig() Config {
	return Config{
		QualifyingDistanceM: units.MetersPerMile,
		DailyGoalM:          5000,
		WeekStart:           time.Monday,
		Location:            time.Local,
	}
}

// Engine derives summaries, streaks and trends from ride history. Results are
// a pure function of the stored records; the cache only saves recomputation.
type Engine struct {
	source Source
	cache  *Cache
	clock  clock.Clock
	cfg    Config
	cal    calendar
}

func NewEngine(source Source, cache *Cache, clk clock.Clock, cfg Config) *Engine {
	if clk == nil {
		clk = clock.Real{}
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Engine{
		source: source,
		cache:  cache,
		clock:  clk,
		cfg:    cfg,
		cal:    calendar{loc: cfg.Location, weekStart: cfg.WeekStart},
	}
}

// Watch drops cached views whenever history changes. It returns when ctx is
// done or changes is closed.
func (e *Engine) Watch(ctx context.Context, changes <-chan history.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			if err := e.cache.Invalidate(ctx); err != nil {
				log.Printf("analytics: invalidate after %s %s: %v", c.Kind, c.RecordID, err)
			}
		}
	}
}

// Invalidating wraps store so that Save and Enrich drop cached views before
// they return, giving the writer read-your-writes on every view.
func (e *Engine) Invalidating(store history.Store) history.Store {
	return &invalidatingStore{Store: store, cache: e.cache}
}

type invalidatingStore struct {
	history.Store
	cache *Cache
}

func (s *invalidatingStore) Save(ctx context.Context, rec ride.Record) error {
	if err := s.Store.Save(ctx, rec); err != nil {
		return err
	}
	s.invalidate(ctx, rec.ID)
	return nil
}

func (s *invalidatingStore) Enrich(ctx context.Context, id string, en history.Enrichment) (ride.Record, error) {
	rec, err := s.Store.Enrich(ctx, id, en)
	if err != nil {
		return rec, err
	}
	s.invalidate(ctx, id)
	return rec, nil
}

func (s *invalidatingStore) invalidate(ctx context.Context, id string) {
	if err := s.cache.Invalidate(ctx); err != nil {
		log.Printf("analytics: invalidate after write of %s: %v", id, err)
	}
}

// Summary returns the rides on date's calendar day, or nil when there are none.
func (e *Engine) Summary(ctx context.Context, date time.Time) (*DaySummary, error) {
	key := e.cal.dayKey(date)
	var cached *DaySummary
	slot := e.cache.entry(ctx, "day", key)
	if slot.get(ctx, &cached) {
		return cached, nil
	}

	from := e.cal.startOfDay(date)
	records, err := e.source.ListBetween(ctx, from, from.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	var out *DaySummary
	if len(records) > 0 {
		out = &DaySummary{Date: key, Rides: records}
		for _, r := range records {
			out.TotalDistanceMeters += r.DistanceMeters
			out.TotalDurationSeconds += r.DurationSeconds
		}
	}
	slot.set(ctx, out)
	return out, nil
}

// WeekSummary aggregates the configured week containing date.
func (e *Engine) WeekSummary(ctx context.Context, date time.Time) (WeekSummary, error) {
	start := e.cal.startOfWeek(date)
	key := start.Format(dayLayout)
	var out WeekSummary
	slot := e.cache.entry(ctx, "week", key)
	if slot.get(ctx, &out) {
		return out, nil
	}

	records, err := e.source.ListBetween(ctx, start, start.AddDate(0, 0, 7))
	if err != nil {
		return WeekSummary{}, err
	}

	out = WeekSummary{WeekStart: key, TotalRides: len(records)}
	for _, r := range records {
		out.TotalDistanceMeters += r.DistanceMeters
		out.TotalDurationSeconds += r.DurationSeconds
	}
	slot.set(ctx, out)
	return out, nil
}

// MonthSummary aggregates the calendar month containing month.
func (e *Engine) MonthSummary(ctx context.Context, month time.Time) (MonthSummary, error) {
	start := e.cal.startOfMonth(month)
	key := start.Format(monthLayout)
	var out MonthSummary
	slot := e.cache.entry(ctx, "month", key)
	if slot.get(ctx, &out) {
		return out, nil
	}

	records, err := e.source.ListBetween(ctx, start, start.AddDate(0, 1, 0))
	if err != nil {
		return MonthSummary{}, err
	}

	out = MonthSummary{Month: key, TotalRides: len(records)}
	speeds := make([]float64, 0, len(records))
	perDay := make(map[string]float64)
	for _, r := range records {
		out.TotalDistanceMeters += r.DistanceMeters
		out.TotalDurationSeconds += r.DurationSeconds
		speeds = append(speeds, r.AverageSpeedMps)
		perDay[e.cal.dayKey(r.Date)] += r.DistanceMeters
	}
	if out.TotalRides > 0 {
		out.AverageDistanceMeters = out.TotalDistanceMeters / float64(out.TotalRides)
		out.AverageSpeedMps = stat.Mean(speeds, nil)
	}
	out.CompletedGoals = e.completedGoals(perDay)

	slot.set(ctx, out)
	return out, nil
}

func (e *Engine) completedGoals(perDay map[string]float64) int {
	if e.cfg.DailyGoalM <= 0 {
		return 0
	}
	n := 0
	for _, d := range perDay {
		if d >= e.cfg.DailyGoalM {
			n++
		}
	}
	return n
}

// Streak walks back from asOf for the current run and scans all history for
// the best one. A day counts when it has at least one qualifying ride.
func (e *Engine) Streak(ctx context.Context, asOf time.Time) (StreakState, error) {
	key := e.cal.dayKey(asOf)
	var out StreakState
	slot := e.cache.entry(ctx, "streak", key)
	if slot.get(ctx, &out) {
		return out, nil
	}

	days, err := e.qualifyingDays(ctx)
	if err != nil {
		return StreakState{}, err
	}

	out = StreakState{
		CurrentDays: e.currentRun(days, asOf),
		BestDays:    e.bestRun(days),
	}
	slot.set(ctx, out)
	return out, nil
}

func (e *Engine) CurrentStreakDays(ctx context.Context, asOf time.Time) (int, error) {
	s, err := e.Streak(ctx, asOf)
	return s.CurrentDays, err
}

func (e *Engine) BestStreakDays(ctx context.Context) (int, error) {
	s, err := e.Streak(ctx, e.clock.Now())
	return s.BestDays, err
}

func (e *Engine) qualifyingDays(ctx context.Context) (map[string]time.Time, error) {
	records, err := e.source.List(ctx)
	if err != nil {
		return nil, err
	}
	days := make(map[string]time.Time)
	for _, r := range records {
		if r.DistanceMeters >= e.cfg.QualifyingDistanceM {
			days[e.cal.dayKey(r.Date)] = e.cal.startOfDay(r.Date)
		}
	}
	return days, nil
}

func (e *Engine) currentRun(days map[string]time.Time, asOf time.Time) int {
	n := 0
	for d := e.cal.startOfDay(asOf); ; d = d.AddDate(0, 0, -1) {
		if _, ok := days[d.Format(dayLayout)]; !ok {
			return n
		}
		n++
	}
}

func (e *Engine) bestRun(days map[string]time.Time) int {
	sorted := make([]time.Time, 0, len(days))
	for _, d := range days {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	best, run := 0, 0
	for i, d := range sorted {
		if i > 0 && sorted[i-1].AddDate(0, 0, 1).Equal(d) {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return best
}

type dayTotals struct {
	distanceM float64
	durationS float64
}

// RecentDailyTrend yields the last n days ending today, oldest first, with
// empty days included. Records are read once per call; ranging over the
// sequence again replays the same points.
func (e *Engine) RecentDailyTrend(ctx context.Context, n int) (iter.Seq[TrendPoint], error) {
	if n <= 0 {
		return func(func(TrendPoint) bool) {}, nil
	}

	today := e.cal.startOfDay(e.clock.Now())
	first := today.AddDate(0, 0, -(n - 1))
	records, err := e.source.ListBetween(ctx, first, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	totals := make(map[string]dayTotals)
	for _, r := range records {
		k := e.cal.dayKey(r.Date)
		t := totals[k]
		t.distanceM += r.DistanceMeters
		t.durationS += r.DurationSeconds
		totals[k] = t
	}

	return func(yield func(TrendPoint) bool) {
		for i := 0; i < n; i++ {
			day := first.AddDate(0, 0, i)
			t := totals[day.Format(dayLayout)]
			p := TrendPoint{
				Date:                 day,
				TotalDistanceMiles:   units.MetersToMiles(t.distanceM),
				TotalDurationSeconds: t.durationS,
			}
			if t.durationS > 0 {
				p.AverageSpeedMph = units.MpsToMph(t.distanceM / t.durationS)
			}
			if !yield(p) {
				return
			}
		}
	}, nil
}

// WeeklySummary compares this week's distance with last week's, in miles.
func (e *Engine) WeeklySummary(ctx context.Context) (WeeklyComparison, error) {
	thisStart := e.cal.startOfWeek(e.clock.Now())
	key := thisStart.Format(dayLayout)
	var out WeeklyComparison
	slot := e.cache.entry(ctx, "weekly", key)
	if slot.get(ctx, &out) {
		return out, nil
	}

	lastStart := thisStart.AddDate(0, 0, -7)
	records, err := e.source.ListBetween(ctx, lastStart, thisStart.AddDate(0, 0, 7))
	if err != nil {
		return WeeklyComparison{}, err
	}

	var thisM, lastM float64
	for _, r := range records {
		if e.cal.startOfWeek(r.Date).Equal(thisStart) {
			thisM += r.DistanceMeters
		} else {
			lastM += r.DistanceMeters
		}
	}
	out = WeeklyComparison{
		ThisWeekMiles: units.MetersToMiles(thisM),
		LastWeekMiles: units.MetersToMiles(lastM),
	}
	slot.set(ctx, out)
	return out, nil
}

func (e *Engine) GoalProgress(ctx context.Context, date time.Time) (GoalProgress, error) {
	out := GoalProgress{Date: e.cal.dayKey(date), GoalMeters: e.cfg.DailyGoalM}
	day, err := e.Summary(ctx, date)
	if err != nil {
		return GoalProgress{}, err
	}
	if day != nil {
		out.DistanceMeters = day.TotalDistanceMeters
	}
	out.Completed = out.GoalMeters > 0 && out.DistanceMeters >= out.GoalMeters
	return out, nil
}
