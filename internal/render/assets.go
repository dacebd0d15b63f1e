package render

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"time"

	"golang.org/x/image/bmp"
)

// AssetMissingError reports a bitmap that is not present in the asset store.
type AssetMissingError struct {
	Path string
	Err  error
}

func (e *AssetMissingError) Error() string {
	return fmt.Sprintf("asset missing: %s", e.Path)
}

func (e *AssetMissingError) Unwrap() error {
	return e.Err
}

// DefaultSplashPath is the startup bitmap.
const DefaultSplashPath = "icons/splash.bmp"

// IconPath maps a provider icon code (e.g. "04d") to its bitmap.
func IconPath(code string) string {
	return "icons/" + code + ".bmp"
}

// SeasonPath maps a month to its background bitmap.
func SeasonPath(m time.Month) string {
	return fmt.Sprintf("seasons/%02d.bmp", int(m))
}

// Assets loads and caches BMP bitmaps from a file system.
type Assets struct {
	fsys  fs.FS
	cache map[string]image.Image
}

// NewAssets returns an asset store rooted at fsys.
func NewAssets(fsys fs.FS) *Assets {
	return &Assets{fsys: fsys, cache: make(map[string]image.Image)}
}

// Load returns the decoded bitmap at path. A missing file yields
// *AssetMissingError; a file that is not a BMP yields a decode error.
func (a *Assets) Load(path string) (image.Image, error) {
	if img, ok := a.cache[path]; ok {
		return img, nil
	}
	f, err := a.fsys.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &AssetMissingError{Path: path, Err: err}
		}
		return nil, fmt.Errorf("open asset %s: %w", path, err)
	}
	defer f.Close()

	img, err := bmp.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode asset %s: %w", path, err)
	}
	a.cache[path] = img
	return img, nil
}
