package render

import (
	"fmt"
	"sync"

	"github.com/kjstillabower/weather-display/internal/models"
)

// Role names what a region shows within its slot.
type Role string

const (
	RoleDate       Role = "date"
	RoleTime       Role = "time"
	RoleBackground Role = "background"
	RoleIcon       Role = "icon"
	RoleFlag       Role = "flag"
	RoleName       Role = "name"
	RoleTemp       Role = "temp"
	RoleDesc       Role = "desc"
	RoleDescExtra  Role = "desc_extra"
	RoleHumidity   Role = "humidity"
	RoleWind       Role = "wind"
	RoleCloud      Role = "cloud"
	RoleSun        Role = "sun"
	RoleSunrise    Role = "sunrise"
	RoleSunset     Role = "sunset"
)

// RegionID identifies a region, e.g. "city1.temp".
type RegionID string

// IDFor builds the region identifier for a slot and role.
func IDFor(slot models.DisplaySlot, role Role) RegionID {
	return RegionID(slot.String() + "." + string(role))
}

// RegionKind separates text labels from bitmap regions.
type RegionKind int

const (
	KindText RegionKind = iota
	KindImage
)

// Font selects the face a text region is drawn with.
type Font string

const (
	FontSmall Font = "small"
	FontInfo  Font = "info"
)

// Color is a 24-bit 0xRRGGBB display color. It satisfies color.Color.
type Color uint32

const (
	ColorWhite  Color = 0xFFFFFF
	ColorCyan   Color = 0x00FFFF
	ColorYellow Color = 0xFFFF00
	ColorOrange Color = 0xFF7700
)

// RGBA implements color.Color (fully opaque).
func (c Color) RGBA() (r, g, b, a uint32) {
	r = uint32(c>>16&0xFF) * 0x101
	g = uint32(c>>8&0xFF) * 0x101
	b = uint32(c&0xFF) * 0x101
	return r, g, b, 0xFFFF
}

func (c Color) String() string {
	return fmt.Sprintf("#%06x", uint32(c))
}

// MarshalText renders the color as #rrggbb in JSON snapshots.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Region is a fixed-position element on the display. Regions are created once
// from a Layout and never move.
type Region struct {
	ID   RegionID
	Slot models.DisplaySlot
	Role Role
	Kind RegionKind
	X, Y int
	Font Font
}

// Content is the mutable part of a region.
type Content struct {
	Text  string `json:"text,omitempty"`
	Color Color  `json:"color"`
	Image string `json:"image,omitempty"`
}

// RegionTable holds the last content written to each region. The renderer is
// the only writer; the preview server reads snapshots.
type RegionTable struct {
	mu      sync.RWMutex
	content map[RegionID]Content
}

// NewRegionTable returns a table with one entry per region. Text regions start
// white and empty.
func NewRegionTable(regions []Region) *RegionTable {
	t := &RegionTable{content: make(map[RegionID]Content, len(regions))}
	for _, r := range regions {
		c := Content{}
		if r.Kind == KindText {
			c.Color = ColorWhite
		}
		t.content[r.ID] = c
	}
	return t
}

// Get returns the current content of id.
func (t *RegionTable) Get(id RegionID) Content {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.content[id]
}

// Set replaces the content of id.
func (t *RegionTable) Set(id RegionID, c Content) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.content[id] = c
}

// Snapshot returns a copy of every region's content.
func (t *RegionTable) Snapshot() map[RegionID]Content {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[RegionID]Content, len(t.content))
	for id, c := range t.content {
		out[id] = c
	}
	return out
}
