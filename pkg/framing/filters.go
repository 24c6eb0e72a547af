package framing

import (
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
)

var filters = map[string]imaging.ResampleFilter{
	"nearest":    imaging.NearestNeighbor,
	"box":        imaging.Box,
	"linear":     imaging.Linear,
	"bilinear":   imaging.Linear,
	"catmullrom": imaging.CatmullRom,
	"bicubic":    imaging.CatmullRom,
	"mitchell":   imaging.MitchellNetravali,
	"lanczos":    imaging.Lanczos,
}

// FilterByName resolves a resampling filter name such as "bicubic" or "lanczos"
func FilterByName(name string) (imaging.ResampleFilter, error) {
	f, ok := filters[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return imaging.ResampleFilter{}, fmt.Errorf("unknown resample filter: %q", name)
	}
	return f, nil
}
