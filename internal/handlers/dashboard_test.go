package handlers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PortNumber53/membership-metrics/internal/models"
	"github.com/PortNumber53/membership-metrics/internal/snapshot"
)

var testNow = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	dash      *snapshot.Dashboard
	err       error
	gets      int
	refreshes int
}

func (f *fakeSource) Get(ctx context.Context) (*snapshot.Dashboard, error) {
	f.gets++
	return f.dash, f.err
}

func (f *fakeSource) Refresh(ctx context.Context) (*snapshot.Dashboard, error) {
	f.refreshes++
	return f.dash, f.err
}

func (f *fakeSource) Peek() *snapshot.Dashboard {
	if f.err != nil {
		return nil
	}
	return f.dash
}

type fakeBaselines struct {
	amount decimal.Decimal
	asked  []models.Month
}

func (f *fakeBaselines) Resolve(ctx context.Context, month models.Month) (decimal.Decimal, string) {
	f.asked = append(f.asked, month)
	return f.amount, "config"
}

type fakeStats struct{ stats snapshot.Stats }

func (f fakeStats) Stats() snapshot.Stats { return f.stats }

func at(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 9, 0, 0, 0, time.UTC)
}

func subscription(id, member, plan string, createdAt, expiresAt time.Time, autoRenew, education bool) models.Subscription {
	return models.Subscription{
		SubscriptionID: id,
		MemberID:       member,
		MemberName:     "Member " + member,
		Active:         true,
		AutoRenew:      autoRenew,
		Plan:           plan,
		PriceCents:     1000,
		IntervalUnit:   "month",
		IntervalCount:  1,
		CreatedAt:      createdAt,
		ExpiresAt:      &expiresAt,
		IsEducation:    models.Some(education),
		MonthlyValue:   decimal.NewFromInt(1000),
	}
}

func activity(id, activityType string, category models.Category, createdAt time.Time, impactCents int64) models.Activity {
	subID := "s-" + id
	return models.Activity{
		ID:             id,
		Type:           activityType,
		Category:       category,
		CreatedAt:      createdAt,
		MemberID:       "m-" + id,
		SubscriptionID: &subID,
		IsEducation:    models.Some(false),
		MonthlyValue:   decimal.NewFromInt(1000),
		MRRImpactCents: decimal.NewFromInt(impactCents),
	}
}

func fixtureDashboard() *snapshot.Dashboard {
	return &snapshot.Dashboard{
		ID:        uuid.MustParse("0b7f3c8e-4a52-4a52-9d7c-1f2e3d4c5b6a"),
		FetchedAt: testNow,
		RawMembers: []models.RawMember{{
			ID: "m1",
			Orders: []models.RawOrder{
				{TotalCents: 1000, Status: "completed", CreatedAt: models.Epoch(at(2025, time.March, 10))},
				{TotalCents: 5000, Status: "refunded", CreatedAt: models.Epoch(at(2025, time.March, 11))},
			},
		}},
		Members: []models.Member{
			{ID: "m1", Email: "ada@example.com", Name: "Ada", TotalSpendCents: 1000, IsEducation: models.Some(false)},
			{ID: "m2", Email: "ben@example.com", Name: "Ben", TotalSpendCents: 12000, IsEducation: models.Some(false)},
			{ID: "m3", Email: "cy@school.edu", Name: "Cy", TotalSpendCents: 0, IsEducation: models.Some(true)},
			{ID: "m4", Email: "dee@example.com", Name: "Dee"},
		},
		Subscriptions: []models.Subscription{
			subscription("s1", "m1", "Monthly", at(2025, time.March, 10), at(2025, time.April, 10), true, false),
			subscription("s2", "m2", "Annual", at(2024, time.June, 1), at(2025, time.March, 25), false, false),
			subscription("s3", "m3", "Monthly", at(2025, time.January, 5), at(2025, time.April, 5), true, true),
		},
		Activities: []models.Activity{
			activity("a1", models.ActivityNewSubscription, models.CategoryNewMembers, at(2025, time.February, 10), 1000),
			activity("a2", models.ActivitySubscriptionDeactivate, models.CategoryCancellations, at(2025, time.March, 1), -500),
			activity("a3", models.ActivityRenewal, models.CategoryRenewals, at(2025, time.March, 5), 0),
		},
		ActivitiesAvailable: true,
		ActivityWindowStart: time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newTestRouter(source DashboardSource, baselines BaselineResolver, stats RefreshStats) http.Handler {
	h := NewDashboardHandler(source, baselines, stats).WithClock(func() time.Time { return testNow })
	router := chi.NewRouter()
	h.RegisterRoutes(router)
	return router
}

func serve(t *testing.T, handler http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func assertDecimalJSON(t *testing.T, want string, got any) {
	t.Helper()
	s, ok := got.(string)
	require.Truef(t, ok, "expected decimal encoded as string, got %T", got)
	assert.Truef(t, decimal.RequireFromString(want).Equal(decimal.RequireFromString(s)), "want %s, got %s", want, s)
}

func TestSummary(t *testing.T) {
	router := newTestRouter(&fakeSource{dash: fixtureDashboard()}, &fakeBaselines{}, nil)

	rr := serve(t, router, http.MethodGet, "/summary")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	body := decodeBody(t, rr)
	mrr := body["mrr"].(map[string]any)
	assertDecimalJSON(t, "20", mrr["current_mrr"])
	assert.EqualValues(t, 2, mrr["paying_members"])
	assert.EqualValues(t, 3, mrr["active_members"])
	assert.EqualValues(t, 1, mrr["education_members"])
	assertDecimalJSON(t, "10", body["recent_orders_total"])

	autoRenew := body["auto_renew"].(map[string]any)
	assert.EqualValues(t, 2, autoRenew["on"])
	assert.EqualValues(t, 1, autoRenew["off"])
}

func TestSnapshotFailureReturnsBadGateway(t *testing.T) {
	source := &fakeSource{err: errors.New("memberful: 503")}
	router := newTestRouter(source, &fakeBaselines{}, nil)

	for _, target := range []string{"/summary", "/members", "/mrr/waterfall", "/growth", "/export/members.csv"} {
		rr := serve(t, router, http.MethodGet, target)
		assert.Equalf(t, http.StatusBadGateway, rr.Code, "target %s", target)
	}
}

func TestBadParametersRejectedBeforeFetch(t *testing.T) {
	source := &fakeSource{dash: fixtureDashboard()}
	router := newTestRouter(source, &fakeBaselines{}, nil)

	for _, target := range []string{
		"/summary?days=0",
		"/members/new?days=abc",
		"/members/expiring?days=-3",
		"/activities?limit=5000",
		"/mrr/waterfall?start=2025-13",
		"/mrr/waterfall?start=2025-03&end=2025-01",
		"/growth?since=last-year",
	} {
		rr := serve(t, router, http.MethodGet, target)
		assert.Equalf(t, http.StatusBadRequest, rr.Code, "target %s", target)
	}
	assert.Zero(t, source.gets)
}

func TestMembers(t *testing.T) {
	router := newTestRouter(&fakeSource{dash: fixtureDashboard()}, &fakeBaselines{}, nil)

	rr := serve(t, router, http.MethodGet, "/members")
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.EqualValues(t, 4, body["total"])
	members := body["members"].([]any)
	last := members[3].(map[string]any)
	assert.Equal(t, "m4", last["id"])
	assert.Nil(t, last["subscription_id"])
}

func TestExpiringMembers(t *testing.T) {
	router := newTestRouter(&fakeSource{dash: fixtureDashboard()}, &fakeBaselines{}, nil)

	rr := serve(t, router, http.MethodGet, "/members/expiring?days=15")
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.EqualValues(t, 1, body["total"])
	subs := body["subscriptions"].([]any)
	assert.Equal(t, "s2", subs[0].(map[string]any)["subscription_id"])
}

func TestNewMembersAndAutoRenewOff(t *testing.T) {
	router := newTestRouter(&fakeSource{dash: fixtureDashboard()}, &fakeBaselines{}, nil)

	rr := serve(t, router, http.MethodGet, "/members/new?days=7")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 1, decodeBody(t, rr)["total"])

	rr = serve(t, router, http.MethodGet, "/members/auto-renew-off")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.EqualValues(t, 1, body["total"])
	assert.Equal(t, "s2", body["subscriptions"].([]any)[0].(map[string]any)["subscription_id"])
}

func TestActivitiesNewestFirst(t *testing.T) {
	router := newTestRouter(&fakeSource{dash: fixtureDashboard()}, &fakeBaselines{}, nil)

	rr := serve(t, router, http.MethodGet, "/activities?limit=2")
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.EqualValues(t, 3, body["total"])
	items := body["activities"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "a3", first["id"])
	assert.Equal(t, "Subscription renewed", first["label"])
	second := items[1].(map[string]any)
	assertDecimalJSON(t, "-5", second["mrr_impact"])
}

func TestWaterfall(t *testing.T) {
	baselines := &fakeBaselines{amount: decimal.NewFromInt(100)}
	router := newTestRouter(&fakeSource{dash: fixtureDashboard()}, baselines, nil)

	rr := serve(t, router, http.MethodGet, "/mrr/waterfall?start=2025-02&end=2025-03")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, []models.Month{{Year: 2025, Month: time.February}}, baselines.asked)

	body := decodeBody(t, rr)
	months := body["months"].([]any)
	require.Len(t, months, 2)
	feb := months[0].(map[string]any)
	mar := months[1].(map[string]any)
	assertDecimalJSON(t, "100", feb["starting"])
	assertDecimalJSON(t, "110", feb["ending"])
	assertDecimalJSON(t, "110", mar["starting"])
	assertDecimalJSON(t, "105", mar["ending"])

	rows := body["rows"].([]any)
	assert.Len(t, rows, 2*(len(models.WaterfallCategories)+2))
	assert.Equal(t, string(models.CategoryStartingMRR), rows[0].(map[string]any)["category"])

	trend := body["trend"].(map[string]any)
	assertDecimalJSON(t, "105", trend["latest"])
	assertDecimalJSON(t, "110", trend["previous"])
	assertDecimalJSON(t, "-5", trend["growth_amount"])
	assertDecimalJSON(t, "1260", trend["annual_run_rate"])

	baseline := body["baseline"].(map[string]any)
	assert.Equal(t, "config", baseline["source"])
}

func TestWaterfallDefaultsToActivityWindow(t *testing.T) {
	router := newTestRouter(&fakeSource{dash: fixtureDashboard()}, &fakeBaselines{amount: decimal.Zero}, nil)

	rr := serve(t, router, http.MethodGet, "/mrr/waterfall")
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, "2024-04", body["start"])
	assert.Equal(t, "2025-03", body["end"])
	assert.Len(t, body["months"].([]any), 12)
}

func TestWaterfallRejectsLongRange(t *testing.T) {
	router := newTestRouter(&fakeSource{dash: fixtureDashboard()}, &fakeBaselines{}, nil)

	rr := serve(t, router, http.MethodGet, "/mrr/waterfall?start=2000-01&end=2025-03")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBreakdown(t *testing.T) {
	router := newTestRouter(&fakeSource{dash: fixtureDashboard()}, &fakeBaselines{}, nil)

	rr := serve(t, router, http.MethodGet, "/mrr/breakdown")
	require.Equal(t, http.StatusOK, rr.Code)

	rows := decodeBody(t, rr)["rows"].([]any)
	require.Len(t, rows, 2)
	assert.Equal(t, string(models.CategoryNewMembers), rows[0].(map[string]any)["category"])
	assertDecimalJSON(t, "-5", rows[1].(map[string]any)["amount"])
}

func TestGrowth(t *testing.T) {
	router := newTestRouter(&fakeSource{dash: fixtureDashboard()}, &fakeBaselines{}, nil)

	rr := serve(t, router, http.MethodGet, "/growth")
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, "activities", body["source"])
	assert.EqualValues(t, 3, body["current_active"])

	changes := body["changes"].([]any)
	require.Len(t, changes, 2)
	assert.EqualValues(t, 1, changes[0].(map[string]any)["new"])
	assert.EqualValues(t, 1, changes[1].(map[string]any)["churned"])
	assert.EqualValues(t, 1, changes[1].(map[string]any)["renewed"])

	membership := body["membership"].([]any)
	assert.EqualValues(t, 4, membership[0].(map[string]any)["active"])
	assert.EqualValues(t, 3, membership[1].(map[string]any)["active"])
}

func TestPlansAndEducation(t *testing.T) {
	router := newTestRouter(&fakeSource{dash: fixtureDashboard()}, &fakeBaselines{}, nil)

	rr := serve(t, router, http.MethodGet, "/plans")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	distribution := body["distribution"].([]any)
	require.Len(t, distribution, 2)
	assert.Equal(t, "Monthly", distribution[0].(map[string]any)["plan"])
	assert.EqualValues(t, 2, distribution[0].(map[string]any)["count"])

	rr = serve(t, router, http.MethodGet, "/education")
	require.Equal(t, http.StatusOK, rr.Code)
	share := decodeBody(t, rr)["share"].(map[string]any)
	assert.EqualValues(t, 1, share["education"])
	assert.EqualValues(t, 3, share["active"])
}

func TestExportMembersCSV(t *testing.T) {
	router := newTestRouter(&fakeSource{dash: fixtureDashboard()}, &fakeBaselines{}, nil)

	rr := serve(t, router, http.MethodGet, "/export/members.csv")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/csv"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "members-2025-03-15.csv")

	records, err := csv.NewReader(rr.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, memberCSVHeader, records[0])
	assert.Equal(t, []string{"m2", "ben@example.com", "Ben", "120.00", "false", "s2", "true", "Annual"}, records[2])
	assert.Equal(t, []string{"m4", "dee@example.com", "Dee", "0.00", "", "", "", ""}, records[4])
}

func TestRefresh(t *testing.T) {
	source := &fakeSource{dash: fixtureDashboard()}
	router := newTestRouter(source, &fakeBaselines{}, nil)

	rr := serve(t, router, http.MethodPost, "/refresh")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, source.refreshes)
	assert.Equal(t, true, decodeBody(t, rr)["refreshed"])

	source.err = errors.New("timeout")
	rr = serve(t, router, http.MethodPost, "/refresh")
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	rr = serve(t, router, http.MethodGet, "/refresh")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestStatus(t *testing.T) {
	source := &fakeSource{err: errors.New("not built")}
	stats := fakeStats{stats: snapshot.Stats{Refreshes: 4, Failures: 1, LastError: "boom"}}
	router := newTestRouter(source, &fakeBaselines{}, stats)

	rr := serve(t, router, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, false, body["cached"])
	scheduler := body["scheduler"].(map[string]any)
	assert.EqualValues(t, 4, scheduler["refreshes"])
	assert.Equal(t, "boom", scheduler["last_error"])
	assert.Zero(t, source.gets)

	source.err = nil
	source.dash = fixtureDashboard()
	rr = serve(t, router, http.MethodGet, "/status")
	body = decodeBody(t, rr)
	assert.Equal(t, true, body["cached"])
	assert.EqualValues(t, 3, body["subscriptions"])
	assert.Equal(t, "0b7f3c8e-4a52-4a52-9d7c-1f2e3d4c5b6a", body["snapshot"].(map[string]any)["id"])
}

func TestHealth(t *testing.T) {
	source := &fakeSource{err: errors.New("not built")}

	rr := httptest.NewRecorder()
	Health(source)(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["snapshot_cached"])
	assert.NotContains(t, body, "snapshot_id")

	source.err = nil
	source.dash = fixtureDashboard()
	rr = httptest.NewRecorder()
	Health(source)(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body = decodeBody(t, rr)
	assert.Equal(t, true, body["snapshot_cached"])
	assert.Equal(t, "0b7f3c8e-4a52-4a52-9d7c-1f2e3d4c5b6a", body["snapshot_id"])
	assert.Contains(t, body, "snapshot_age_seconds")
	assert.Zero(t, source.gets)
}
