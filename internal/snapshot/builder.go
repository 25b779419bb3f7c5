// Package snapshot fetches the membership data once, runs the metric
// derivations over it and keeps the result cached for the HTTP layer.
package snapshot

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/PortNumber53/membership-metrics/internal/metrics"
	"github.com/PortNumber53/membership-metrics/internal/models"
)

// Source produces raw member and activity records page by page.
type Source interface {
	FetchMembers(ctx context.Context, fn func([]models.RawMember) error) error
	FetchActivities(ctx context.Context, start, end time.Time, fn func([]models.RawActivity) error) error
}

// Dashboard is an immutable snapshot of the derived tables. Every metric the
// API serves is computed from one Dashboard.
type Dashboard struct {
	ID        uuid.UUID
	FetchedAt time.Time

	RawMembers    []models.RawMember
	Members       []models.Member
	Subscriptions []models.Subscription
	Activities    []models.Activity

	// ActivitiesAvailable is false when the activity log could not be
	// fetched; growth metrics then fall back to subscription data.
	ActivitiesAvailable bool
	ActivityError       string
	ActivityWindowStart time.Time

	SkippedSubscriptions []metrics.SkippedRecord
	SkippedActivities    []metrics.SkippedRecord
}

// Builder assembles a Dashboard from a Source.
type Builder struct {
	source         Source
	classify       metrics.ActivityClassifier
	activityMonths int
}

// NewBuilder returns a Builder that loads activityMonths months of activity
// history and classifies education activities with classify.
func NewBuilder(source Source, classify metrics.ActivityClassifier, activityMonths int) *Builder {
	if activityMonths <= 0 {
		activityMonths = 12
	}
	if classify == nil {
		classify = metrics.IsEducationActivity
	}
	return &Builder{source: source, classify: classify, activityMonths: activityMonths}
}

// ActivityWindowStart returns the first instant of activity history loaded
// for a snapshot taken at now: the start of the month activityMonths-1
// months before now's month.
func (b *Builder) ActivityWindowStart(now time.Time) time.Time {
	return models.MonthOf(now).Start().AddDate(0, -(b.activityMonths - 1), 0)
}

// Build fetches members and activities concurrently and derives the tables.
// A member fetch failure fails the build; an activity fetch failure is
// recorded on the Dashboard and the build continues without the log.
func (b *Builder) Build(ctx context.Context, now time.Time) (*Dashboard, error) {
	now = now.UTC()
	windowStart := b.ActivityWindowStart(now)

	var (
		rawMembers    []models.RawMember
		rawActivities []models.RawActivity
		activityErr   error
		mu            sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.source.FetchMembers(gctx, func(page []models.RawMember) error {
			mu.Lock()
			defer mu.Unlock()
			rawMembers = append(rawMembers, page...)
			return nil
		})
	})
	g.Go(func() error {
		err := b.source.FetchActivities(gctx, windowStart, now, func(page []models.RawActivity) error {
			mu.Lock()
			defer mu.Unlock()
			rawActivities = append(rawActivities, page...)
			return nil
		})
		if err != nil && gctx.Err() == nil {
			log.Printf("[snapshot] Activity log unavailable, continuing without it: %v", err)
			activityErr = err
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build snapshot: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("build snapshot: %w", err)
	}

	flat := metrics.Flatten(rawMembers)
	dash := &Dashboard{
		ID:                   uuid.New(),
		FetchedAt:            now,
		RawMembers:           rawMembers,
		Members:              flat.Members,
		Subscriptions:        flat.Subscriptions,
		ActivityWindowStart:  windowStart,
		SkippedSubscriptions: flat.Skipped,
	}

	if activityErr != nil {
		dash.ActivityError = activityErr.Error()
		dash.Activities = []models.Activity{}
	} else {
		acts := metrics.NormalizeActivities(rawActivities, b.classify)
		dash.Activities = acts.Activities
		dash.SkippedActivities = acts.Skipped
		dash.ActivitiesAvailable = true
	}

	log.Printf("[snapshot] Built %s: %d members, %d subscriptions (%d skipped), %d activities (%d skipped)",
		dash.ID, len(dash.Members), len(dash.Subscriptions), len(dash.SkippedSubscriptions),
		len(dash.Activities), len(dash.SkippedActivities))
	return dash, nil
}
