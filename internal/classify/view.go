package classify

import (
	"log/slog"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"

	dcm "tomo-anonymizer/internal/dicom"
)

// lateralityAndView resolves each value from its direct attribute, then from
// the protocol name ("R CC ..."), then falls back to Unknown.
func lateralityAndView(ds *dcm.Dataset, logger *slog.Logger) (lat, view string) {
	lat = firstNonEmpty(ds.GetString(tag.Laterality), ds.GetString(tag.ImageLaterality))
	view = ds.GetString(tag.ViewPosition)
	if lat != "" && view != "" {
		return lat, view
	}

	fields := strings.Fields(ds.GetString(tag.ProtocolName))
	if lat == "" && len(fields) > 0 {
		lat = fields[0]
		logger.Debug("laterality taken from protocol name", "file", ds.FilePath, "laterality", lat)
	}
	if view == "" && len(fields) > 1 {
		view = fields[1]
		logger.Debug("view taken from protocol name", "file", ds.FilePath, "view", view)
	}

	if lat == "" {
		logger.Warn("laterality could not be determined", "file", ds.FilePath)
		lat = Unknown
	}
	if view == "" {
		logger.Warn("view position could not be determined", "file", ds.FilePath)
		view = Unknown
	}
	return lat, view
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
