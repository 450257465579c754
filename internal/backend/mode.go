package backend

import (
	"fmt"
	"strings"

	"github.com/spherical/ocr-pipeline/internal/domain"
)

// DefaultMode is used when no mode is configured.
const DefaultMode = "large"

// Mode is a named resolution preset fixed for the lifetime of a backend.
type Mode struct {
	Name      string
	BaseSize  int  // working resolution of the global view
	ImageSize int  // resolution of each tile or the page itself
	Crop      bool // tile large pages instead of shrinking them
}

func (m Mode) String() string {
	return fmt.Sprintf("%s (base %d, image %d, crop %t)", m.Name, m.BaseSize, m.ImageSize, m.Crop)
}

var modes = []Mode{
	{Name: "tiny", BaseSize: 512, ImageSize: 512, Crop: false},
	{Name: "small", BaseSize: 640, ImageSize: 640, Crop: false},
	{Name: "base", BaseSize: 1024, ImageSize: 1024, Crop: false},
	{Name: "large", BaseSize: 1280, ImageSize: 1280, Crop: false},
	{Name: "gundam", BaseSize: 1024, ImageSize: 640, Crop: true},
}

// Modes returns every preset, smallest first.
func Modes() []Mode {
	out := make([]Mode, len(modes))
	copy(out, modes)
	return out
}

// LookupMode resolves a preset by name, ignoring case. An empty name selects
// DefaultMode.
func LookupMode(name string) (Mode, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultMode
	}
	for _, m := range modes {
		if m.Name == name {
			return m, nil
		}
	}
	return Mode{}, domain.ConfigurationError(
		fmt.Sprintf("unknown mode %q (valid: %s)", name, strings.Join(modeNames(), ", ")), nil)
}

func modeNames() []string {
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = m.Name
	}
	return names
}
