package render

import (
	"fmt"

	"github.com/kjstillabower/weather-display/internal/models"
)

// Layout is the fixed set of regions for one screen arrangement.
type Layout struct {
	Name   string
	Width  int
	Height int
	// FeelsLike controls whether temperature text includes the feels-like part.
	FeelsLike bool

	regions []Region
	index   map[RegionID]Region
}

// NewLayout builds a layout and rejects duplicate region IDs.
func NewLayout(name string, width, height int, feelsLike bool, regions []Region) (*Layout, error) {
	l := &Layout{
		Name:      name,
		Width:     width,
		Height:    height,
		FeelsLike: feelsLike,
		index:     make(map[RegionID]Region, len(regions)),
	}
	for _, r := range regions {
		r.ID = IDFor(r.Slot, r.Role)
		if _, dup := l.index[r.ID]; dup {
			return nil, fmt.Errorf("layout %s: duplicate region %s", name, r.ID)
		}
		l.index[r.ID] = r
		l.regions = append(l.regions, r)
	}
	return l, nil
}

// Region returns the region a slot uses for role, if the layout has one.
func (l *Layout) Region(slot models.DisplaySlot, role Role) (Region, bool) {
	r, ok := l.index[IDFor(slot, role)]
	return r, ok
}

// Regions returns every region in declaration order.
func (l *Layout) Regions() []Region {
	out := make([]Region, len(l.regions))
	copy(out, l.regions)
	return out
}

// Slots returns the slots the layout has regions for, in declaration order.
func (l *Layout) Slots() []models.DisplaySlot {
	var out []models.DisplaySlot
	seen := make(map[models.DisplaySlot]bool)
	for _, r := range l.regions {
		if !seen[r.Slot] {
			seen[r.Slot] = true
			out = append(out, r.Slot)
		}
	}
	return out
}

func textRegion(slot models.DisplaySlot, role Role, x, y int, font Font) Region {
	return Region{Slot: slot, Role: role, Kind: KindText, X: x, Y: y, Font: font}
}

func imageRegion(slot models.DisplaySlot, role Role, x, y int) Region {
	return Region{Slot: slot, Role: role, Kind: KindImage, X: x, Y: y}
}

// SingleLayout is the one-location screen for a 320x240 panel.
func SingleLayout() *Layout {
	s := models.SlotSingle
	l, err := NewLayout("single", 320, 240, true, []Region{
		imageRegion(s, RoleBackground, 0, 0),
		imageRegion(s, RoleIcon, 120, 24),
		textRegion(s, RoleDate, 10, 20, FontInfo),
		textRegion(s, RoleTime, 250, 20, FontInfo),
		textRegion(s, RoleName, 10, 100, FontInfo),
		textRegion(s, RoleTemp, 10, 120, FontSmall),
		textRegion(s, RoleDesc, 10, 140, FontSmall),
		textRegion(s, RoleDescExtra, 10, 156, FontSmall),
		textRegion(s, RoleHumidity, 10, 172, FontSmall),
		textRegion(s, RoleWind, 10, 188, FontSmall),
		textRegion(s, RoleCloud, 10, 204, FontSmall),
		textRegion(s, RoleSun, 10, 220, FontSmall),
	})
	if err != nil {
		panic(err)
	}
	return l
}

// ComparisonLayout places two locations in columns at x=10 and x=175. The
// clock header belongs to CITY_1.
func ComparisonLayout() *Layout {
	regions := []Region{
		textRegion(models.SlotCity1, RoleDate, 90, 15, FontInfo),
		textRegion(models.SlotCity1, RoleTime, 115, 35, FontInfo),
	}
	for _, col := range []struct {
		slot models.DisplaySlot
		x    int
	}{
		{models.SlotCity1, 10},
		{models.SlotCity2, 175},
	} {
		regions = append(regions,
			imageRegion(col.slot, RoleFlag, col.x, 36),
			textRegion(col.slot, RoleName, col.x, 96, FontSmall),
			textRegion(col.slot, RoleTemp, col.x, 112, FontSmall),
			textRegion(col.slot, RoleDesc, col.x, 128, FontSmall),
			textRegion(col.slot, RoleDescExtra, col.x, 144, FontSmall),
			textRegion(col.slot, RoleHumidity, col.x, 160, FontSmall),
			textRegion(col.slot, RoleWind, col.x, 176, FontSmall),
			textRegion(col.slot, RoleSunrise, col.x, 192, FontSmall),
			textRegion(col.slot, RoleSunset, col.x, 208, FontSmall),
		)
	}
	l, err := NewLayout("comparison", 320, 240, false, regions)
	if err != nil {
		panic(err)
	}
	return l
}

// LayoutFor picks the layout for the number of configured locations.
func LayoutFor(locations int) *Layout {
	if locations > 1 {
		return ComparisonLayout()
	}
	return SingleLayout()
}
