package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"golang.org/x/image/bmp"

	"github.com/kjstillabower/weather-display/internal/client"
	"github.com/kjstillabower/weather-display/internal/lifecycle"
	"github.com/kjstillabower/weather-display/internal/models"
	"github.com/kjstillabower/weather-display/internal/parser"
	"github.com/kjstillabower/weather-display/internal/render"
)

const manchesterJSON = `{
  "weather": [{"description": "scattered clouds with haze", "icon": "50d"}],
  "main": {"temp": 288.15, "feels_like": 287.6, "humidity": 82},
  "wind": {"speed": 10.0},
  "clouds": {"all": 75},
  "sys": {"sunrise": 1699946400, "sunset": 1699978800},
  "timezone": 0,
  "name": "Manchester"
}`

// warmerNoHumidityJSON is manchesterJSON two degrees warmer with main.humidity dropped.
const warmerNoHumidityJSON = `{
  "weather": [{"description": "clear sky", "icon": "01d"}],
  "main": {"temp": 290.15, "feels_like": 289.6},
  "wind": {"speed": 4.0},
  "clouds": {"all": 5},
  "sys": {"sunrise": 1699946400, "sunset": 1699978800},
  "name": "Manchester"
}`

const helsinkiJSON = `{
  "weather": [{"description": "snow", "icon": "13d"}],
  "main": {"temp": 268.15, "humidity": 90},
  "wind": {"speed": 2.5},
  "sys": {"sunrise": 1699940000, "sunset": 1699965000},
  "timezone": 7200,
  "name": "Helsinki"
}`

type response struct {
	body string
	err  error
}

// fakeFetcher serves queued responses per location label; the last response repeats.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string][]response
	cycleIDs  []string
	calls     chan string
}

func (f *fakeFetcher) FetchCurrent(ctx context.Context, loc models.Location) ([]byte, error) {
	f.mu.Lock()
	if id, ok := ctx.Value(client.CycleIDKey{}).(string); ok {
		f.cycleIDs = append(f.cycleIDs, id)
	}
	queue := f.responses[loc.Label()]
	var r response
	switch len(queue) {
	case 0:
		r = response{err: client.ErrLocationNotFound}
	case 1:
		r = queue[0]
	default:
		r = queue[0]
		f.responses[loc.Label()] = queue[1:]
	}
	f.mu.Unlock()

	if f.calls != nil {
		select {
		case f.calls <- loc.Label():
		default:
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return []byte(r.body), nil
}

func (f *fakeFetcher) ValidateAPIKey(ctx context.Context, loc models.Location) error { return nil }

type nopDisplay struct{}

func (nopDisplay) DrawText(render.Region, render.Content) error { return nil }
func (nopDisplay) DrawImage(render.Region, image.Image) error   { return nil }

func testRenderer(t *testing.T, layout *render.Layout) *render.Renderer {
	t.Helper()
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("encode bmp: %v", err)
	}
	fsys := fstest.MapFS{}
	for _, code := range []string{"50d", "01d", "13d"} {
		fsys[render.IconPath(code)] = &fstest.MapFile{Data: buf.Bytes()}
	}
	return render.New(layout, nopDisplay{}, render.NewAssets(fsys), render.Options{Location: time.UTC}, nil)
}

func coords(lat, lon float64) (*float64, *float64) { return &lat, &lon }

func singleTarget() []Target {
	lat, lon := coords(53.43765, -2.28148)
	return TargetsFor([]models.Location{{City: "Manchester", Lat: lat, Lon: lon}})
}

func newTestService(t *testing.T, f *fakeFetcher, layout *render.Layout, targets []Target, opts Options) (*DisplayService, *render.Renderer) {
	t.Helper()
	r := testRenderer(t, layout)
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Date(2024, time.March, 9, 14, 5, 0, 0, time.UTC) }
	}
	return NewDisplayService(f, parser.NewStructuredDecoder(), r, targets, opts, nil), r
}

func TestTargetsFor(t *testing.T) {
	one := TargetsFor([]models.Location{{City: "Manchester"}})
	if len(one) != 1 || one[0].Slot != models.SlotSingle {
		t.Errorf("TargetsFor(1) = %+v, want single slot", one)
	}
	two := TargetsFor([]models.Location{{City: "Manchester"}, {City: "Helsinki"}})
	if len(two) != 2 || two[0].Slot != models.SlotCity1 || two[1].Slot != models.SlotCity2 {
		t.Errorf("TargetsFor(2) = %+v, want city1, city2", two)
	}
	if two[1].Location.City != "Helsinki" {
		t.Errorf("TargetsFor(2)[1].Location = %+v", two[1].Location)
	}
}

func TestRunCycle_RendersSingleSlot(t *testing.T) {
	f := &fakeFetcher{responses: map[string][]response{"Manchester": {{body: manchesterJSON}}}}
	svc, r := newTestService(t, f, render.SingleLayout(), singleTarget(), Options{})

	report := svc.RunCycle(context.Background())

	if report.Outcome != OutcomeOK {
		t.Fatalf("Outcome = %q, want ok (slots %+v)", report.Outcome, report.Slots)
	}
	if report.CycleID == "" {
		t.Error("CycleID is empty")
	}
	if lifecycle.Current() != lifecycle.PhaseRunning {
		t.Errorf("lifecycle phase = %v, want running after first cycle", lifecycle.Current())
	}

	snap := r.Table().Snapshot()
	want := map[render.RegionID]string{
		"single.time":       "14:05",
		"single.date":       "09/03/2024",
		"single.name":       "Manchester",
		"single.temp":       "Temp: 15.0C Feels like: 14.45C",
		"single.desc":       "scattered clouds",
		"single.desc_extra": "with haze",
		"single.humidity":   "Humidity: 82%",
		"single.wind":       "Wind: 22.37 MPH",
		"single.cloud":      "Cloud Coverage: 75%",
		"single.sun":        "Sunrise: 07:20:00  Sunset: 16:20:00",
	}
	for id, text := range want {
		if got := snap[id].Text; got != text {
			t.Errorf("%s = %q, want %q", id, got, text)
		}
	}
	if got := snap["single.icon"].Image; got != "icons/50d.bmp" {
		t.Errorf("single.icon image = %q, want icons/50d.bmp", got)
	}
}

func TestRunCycle_SameRecordTwiceIsStable(t *testing.T) {
	f := &fakeFetcher{responses: map[string][]response{"Manchester": {{body: manchesterJSON}}}}
	svc, r := newTestService(t, f, render.SingleLayout(), singleTarget(), Options{})

	svc.RunCycle(context.Background())
	first := r.Table().Snapshot()
	svc.RunCycle(context.Background())
	second := r.Table().Snapshot()

	for id, c := range first {
		if second[id] != c {
			t.Errorf("%s changed between identical cycles: %+v -> %+v", id, c, second[id])
		}
	}
}

func TestRunCycle_MissingFieldKeepsPriorValue(t *testing.T) {
	f := &fakeFetcher{responses: map[string][]response{"Manchester": {
		{body: manchesterJSON},
		{body: warmerNoHumidityJSON},
	}}}
	svc, r := newTestService(t, f, render.SingleLayout(), singleTarget(), Options{})

	svc.RunCycle(context.Background())
	report := svc.RunCycle(context.Background())

	if report.Outcome != OutcomePartial {
		t.Errorf("Outcome = %q, want partial", report.Outcome)
	}
	if len(report.Slots) != 1 {
		t.Fatalf("len(Slots) = %d, want 1", len(report.Slots))
	}
	var missing *parser.MissingFieldError
	if err := report.Slots[0].FieldErrs[string(models.FieldHumidity)]; !errors.As(err, &missing) {
		t.Errorf("humidity field error = %v, want MissingFieldError", err)
	}
	if _, ok := report.Slots[0].FieldErrs[string(models.FieldTimezone)]; ok {
		t.Error("an absent timezone must not be reported as skipped")
	}

	snap := r.Table().Snapshot()
	if got := snap["single.humidity"].Text; got != "Humidity: 82%" {
		t.Errorf("humidity = %q, want prior value kept", got)
	}
	if got := snap["single.temp"].Text; got != "Temp: 17.0C Feels like: 16.45C" {
		t.Errorf("temp = %q, want updated value", got)
	}
	if got := snap["single.desc"].Text; got != "clear sky" {
		t.Errorf("desc = %q, want clear sky", got)
	}
	if got := snap["single.desc_extra"].Text; got != "" {
		t.Errorf("desc_extra = %q, want cleared", got)
	}
	if got := snap["single.wind"].Text; got != "Wind: 8.95 MPH" {
		t.Errorf("wind = %q, want updated value", got)
	}
}

func TestRunCycle_FetchErrorKeepsStaleSlot(t *testing.T) {
	f := &fakeFetcher{responses: map[string][]response{"Manchester": {
		{body: manchesterJSON},
		{err: client.ErrTransport},
	}}}
	svc, r := newTestService(t, f, render.SingleLayout(), singleTarget(), Options{})

	svc.RunCycle(context.Background())
	before := r.Table().Snapshot()
	report := svc.RunCycle(context.Background())

	if report.Outcome != OutcomeFailed {
		t.Errorf("Outcome = %q, want failed", report.Outcome)
	}
	if !errors.Is(report.Slots[0].Err, client.ErrTransport) {
		t.Errorf("slot error = %v, want ErrTransport", report.Slots[0].Err)
	}
	after := r.Table().Snapshot()
	if after["single.temp"] != before["single.temp"] || after["single.name"] != before["single.name"] {
		t.Error("failed fetch must leave the slot's text in place")
	}
}

func TestRunCycle_MalformedPayloadSkipsSlot(t *testing.T) {
	f := &fakeFetcher{responses: map[string][]response{"Manchester": {{body: "<html>bad gateway</html>"}}}}
	svc, r := newTestService(t, f, render.SingleLayout(), singleTarget(), Options{})

	report := svc.RunCycle(context.Background())

	var malformed *parser.MalformedPayloadError
	if !errors.As(report.Slots[0].Err, &malformed) {
		t.Errorf("slot error = %v, want MalformedPayloadError", report.Slots[0].Err)
	}
	if got := r.Table().Snapshot()["single.name"].Text; got != "" {
		t.Errorf("name = %q, want untouched", got)
	}
	// The header is independent of the payload.
	if got := r.Table().Snapshot()["single.time"].Text; got != "14:05" {
		t.Errorf("time = %q, want 14:05", got)
	}
}

func TestRunCycle_ComparisonSlotsAreIsolated(t *testing.T) {
	f := &fakeFetcher{responses: map[string][]response{
		"Manchester": {{body: manchesterJSON}},
		"Helsinki":   {{err: client.ErrUpstreamFailure}},
	}}
	targets := TargetsFor([]models.Location{{City: "Manchester"}, {City: "Helsinki"}})
	svc, r := newTestService(t, f, render.ComparisonLayout(), targets, Options{})

	report := svc.RunCycle(context.Background())
	if report.Outcome != OutcomePartial {
		t.Errorf("Outcome = %q, want partial", report.Outcome)
	}

	snap := r.Table().Snapshot()
	if got := snap["city1.name"].Text; got != "Manchester" {
		t.Errorf("city1.name = %q, want Manchester", got)
	}
	if got := snap["city1.time"].Text; got != "14:05" {
		t.Errorf("city1.time = %q, want 14:05", got)
	}
	for id, c := range snap {
		if strings.HasPrefix(string(id), "city2.") && c.Text != "" {
			t.Errorf("%s = %q, want empty after city2 failure", id, c.Text)
		}
	}

	f.mu.Lock()
	f.responses["Helsinki"] = []response{{body: helsinkiJSON}}
	f.mu.Unlock()
	report = svc.RunCycle(context.Background())
	if report.Outcome != OutcomeOK {
		t.Fatalf("Outcome = %q, want ok", report.Outcome)
	}
	snap = r.Table().Snapshot()
	if got := snap["city2.temp"].Text; got != "Temp: -5.0C" {
		t.Errorf("city2.temp = %q, want Temp: -5.0C", got)
	}
	if got := snap["city2.temp"].Color; got != render.ColorCyan {
		t.Errorf("city2.temp color = %v, want cyan", got)
	}
	if got := snap["city2.sunrise"].Text; got != "Sunrise: 07:33:20" {
		t.Errorf("city2.sunrise = %q, want Helsinki local time", got)
	}
	if got := snap["city2.sunset"].Text; got != "Sunset: 14:30:00" {
		t.Errorf("city2.sunset = %q, want Helsinki local time", got)
	}
	if got := snap["city1.sunrise"].Text; got != "Sunrise: 07:20:00" {
		t.Errorf("city1.sunrise = %q, want Manchester local time", got)
	}
	if got := snap["city1.name"].Text; got != "Manchester" {
		t.Errorf("city1.name = %q, city2 render must not touch city1", got)
	}
}

func TestRunCycle_PropagatesCycleID(t *testing.T) {
	f := &fakeFetcher{responses: map[string][]response{"Manchester": {{body: manchesterJSON}}}}
	svc, _ := newTestService(t, f, render.SingleLayout(), singleTarget(), Options{})

	report := svc.RunCycle(context.Background())

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.cycleIDs) != 1 || f.cycleIDs[0] != report.CycleID {
		t.Errorf("fetch cycle IDs = %v, want [%s]", f.cycleIDs, report.CycleID)
	}
}

func TestRunCycle_NotifiesWhenDegraded(t *testing.T) {
	f := &fakeFetcher{responses: map[string][]response{"Manchester": {{err: client.ErrTransport}}}}
	notified := 0
	svc, _ := newTestService(t, f, render.SingleLayout(), singleTarget(), Options{
		IsDegraded: func() bool { return true },
		OnDegraded: func() { notified++ },
	})

	svc.RunCycle(context.Background())
	if notified != 1 {
		t.Errorf("OnDegraded called %d times, want 1", notified)
	}
}

func TestRun_TriggerRunsExtraCycle(t *testing.T) {
	f := &fakeFetcher{
		responses: map[string][]response{"Manchester": {{body: manchesterJSON}}},
		calls:     make(chan string, 4),
	}
	svc, _ := newTestService(t, f, render.SingleLayout(), singleTarget(), Options{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	select {
	case <-f.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not poll immediately")
	}

	svc.Trigger()
	select {
	case <-f.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("Trigger did not start a cycle")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
