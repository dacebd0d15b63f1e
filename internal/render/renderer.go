// Package render maps canonical weather fields onto the fixed regions of a
// display layout.
//
// Every operation computes the new content of its regions from the old content
// with a pure function, draws it through the injected Display and records it in
// the RegionTable. Writing the same value twice is a no-op. A slot whose layout
// lacks the region for an operation ignores that operation.
package render

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-display/internal/models"
	"github.com/kjstillabower/weather-display/internal/observability"
)

// Options are the presentation settings.
type Options struct {
	Units   Units
	USADate bool
	// Location is the zone used for the clock, and for sunrise/sunset when the
	// payload carries no UTC offset. Nil means local.
	Location *time.Location
	// SeasonalBackground swaps the background to seasons/MM.bmp on each clock render.
	SeasonalBackground bool
	// Splash is drawn by RenderSplash. Empty disables it.
	Splash string
	// Flags maps comparison slots to a flag bitmap drawn by RenderFlags.
	Flags map[models.DisplaySlot]string
}

// Renderer writes weather fields into a layout's regions.
type Renderer struct {
	layout  *Layout
	display Display
	assets  *Assets
	table   *RegionTable
	opts    Options
	logger  *zap.Logger
}

// New returns a Renderer for layout drawing through display.
func New(layout *Layout, display Display, assets *Assets, opts Options, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Units == "" {
		opts.Units = UnitsCelsius
	}
	return &Renderer{
		layout:  layout,
		display: display,
		assets:  assets,
		table:   NewRegionTable(layout.Regions()),
		opts:    opts,
		logger:  logger,
	}
}

// Layout returns the layout being rendered.
func (r *Renderer) Layout() *Layout { return r.layout }

// Table returns the region table.
func (r *Renderer) Table() *RegionTable { return r.table }

// apply computes the new content of (slot, role) with fn and draws it if it changed.
func (r *Renderer) apply(slot models.DisplaySlot, role Role, fn func(Content) Content) error {
	region, ok := r.layout.Region(slot, role)
	if !ok {
		return nil
	}
	old := r.table.Get(region.ID)
	next := fn(old)
	if next == old {
		return nil
	}
	if err := r.display.DrawText(region, next); err != nil {
		return fmt.Errorf("draw %s: %w", region.ID, err)
	}
	r.table.Set(region.ID, next)
	observability.RegionWritesTotal.WithLabelValues(slot.String()).Inc()
	r.logger.Debug("region updated", zap.String("region", string(region.ID)), zap.String("text", next.Text))
	return nil
}

// applyImage swaps the bitmap of (slot, role) to path. On failure the region
// keeps its previous bitmap.
func (r *Renderer) applyImage(slot models.DisplaySlot, role Role, path string) error {
	region, ok := r.layout.Region(slot, role)
	if !ok {
		return nil
	}
	old := r.table.Get(region.ID)
	if old.Image == path {
		return nil
	}
	img, err := r.assets.Load(path)
	if err != nil {
		var missing *AssetMissingError
		if errors.As(err, &missing) {
			observability.AssetMissingTotal.Inc()
		}
		return err
	}
	if err := r.display.DrawImage(region, img); err != nil {
		return fmt.Errorf("draw %s: %w", region.ID, err)
	}
	old.Image = path
	r.table.Set(region.ID, old)
	observability.RegionWritesTotal.WithLabelValues(slot.String()).Inc()
	r.logger.Debug("region image updated", zap.String("region", string(region.ID)), zap.String("image", path))
	return nil
}

// RenderDateTime writes the clock and date, then swaps in the seasonal
// background for t's month when enabled.
func (r *Renderer) RenderDateTime(t time.Time, slot models.DisplaySlot) error {
	t = t.In(r.opts.Location)
	clock := ClockText(t)
	if err := r.apply(slot, RoleTime, func(c Content) Content { return TextContent(c, clock) }); err != nil {
		return err
	}
	date := DateText(t, r.opts.USADate)
	if err := r.apply(slot, RoleDate, func(c Content) Content { return TextContent(c, date) }); err != nil {
		return err
	}
	if r.opts.SeasonalBackground {
		return r.applyImage(slot, RoleBackground, SeasonPath(t.Month()))
	}
	return nil
}

// RenderPlaceName writes the location name as received.
func (r *Renderer) RenderPlaceName(name string, slot models.DisplaySlot) error {
	return r.apply(slot, RoleName, func(c Content) Content { return TextContent(c, name) })
}

// RenderTemperature writes the converted temperature and its threshold color.
func (r *Renderer) RenderTemperature(tempK float64, feelsK *float64, slot models.DisplaySlot) error {
	return r.apply(slot, RoleTemp, func(c Content) Content {
		return TemperatureContent(c, tempK, feelsK, r.opts.Units, r.layout.FeelsLike)
	})
}

// RenderDescription writes the wrapped description over the desc and
// desc_extra regions. desc_extra is cleared when there is no second line.
func (r *Renderer) RenderDescription(primary, secondary string, slot models.DisplaySlot) error {
	line1, line2 := WrapDescription(primary, secondary)
	if err := r.apply(slot, RoleDesc, func(c Content) Content { return TextContent(c, line1) }); err != nil {
		return err
	}
	return r.apply(slot, RoleDescExtra, func(c Content) Content { return TextContent(c, line2) })
}

// RenderHumidity writes "Humidity: {pct}%".
func (r *Renderer) RenderHumidity(pct int, slot models.DisplaySlot) error {
	return r.apply(slot, RoleHumidity, func(c Content) Content { return HumidityContent(c, pct) })
}

// RenderWind writes the wind speed in mph.
func (r *Renderer) RenderWind(speedMS float64, slot models.DisplaySlot) error {
	return r.apply(slot, RoleWind, func(c Content) Content { return WindContent(c, speedMS) })
}

// RenderCloud writes the cloud cover. Only the single layout has the region.
func (r *Renderer) RenderCloud(pct int, slot models.DisplaySlot) error {
	return r.apply(slot, RoleCloud, func(c Content) Content { return CloudContent(c, pct) })
}

// RenderSun writes sunrise and sunset as HH:MM:SS, combined on one line when
// the layout has a sun region, otherwise on separate lines. Times are shown at
// utcOffset seconds east of UTC, the location's own zone, when it is set.
func (r *Renderer) RenderSun(sunrise, sunset int64, utcOffset *int, slot models.DisplaySlot) error {
	loc := r.opts.Location
	if utcOffset != nil {
		loc = time.FixedZone("", *utcOffset)
	}
	rise := SunTime(sunrise, loc)
	set := SunTime(sunset, loc)
	if _, ok := r.layout.Region(slot, RoleSun); ok {
		line := "Sunrise: " + rise + "  Sunset: " + set
		return r.apply(slot, RoleSun, func(c Content) Content { return TextContent(c, line) })
	}
	if err := r.apply(slot, RoleSunrise, func(c Content) Content { return TextContent(c, "Sunrise: "+rise) }); err != nil {
		return err
	}
	return r.apply(slot, RoleSunset, func(c Content) Content { return TextContent(c, "Sunset: "+set) })
}

// RenderIcon swaps the slot's weather icon to the bitmap for code, drawn at
// the icon region's position.
func (r *Renderer) RenderIcon(code string, slot models.DisplaySlot) error {
	return r.applyImage(slot, RoleIcon, IconPath(code))
}

// RenderSplash shows the splash bitmap in the icon region of every slot that
// has one. The first weather icon replaces it.
func (r *Renderer) RenderSplash() error {
	if r.opts.Splash == "" {
		return nil
	}
	var errs []error
	for _, slot := range r.layout.Slots() {
		if err := r.applyImage(slot, RoleIcon, r.opts.Splash); err != nil {
			errs = append(errs, fmt.Errorf("splash %s: %w", slot, err))
		}
	}
	return errors.Join(errs...)
}

// RenderFlags draws the configured flag bitmap for each comparison slot.
func (r *Renderer) RenderFlags() error {
	var errs []error
	for _, slot := range []models.DisplaySlot{models.SlotCity1, models.SlotCity2} {
		path, ok := r.opts.Flags[slot]
		if !ok || path == "" {
			continue
		}
		if err := r.applyImage(slot, RoleFlag, path); err != nil {
			errs = append(errs, fmt.Errorf("flag %s: %w", slot, err))
		}
	}
	return errors.Join(errs...)
}
