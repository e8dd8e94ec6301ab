// Package classify derives the semantic category of a breast-imaging
// instance (2D mammogram or tomosynthesis object, raw or processed,
// compressed or not) from its often incomplete DICOM attributes.
package classify

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"

	dcm "tomo-anonymizer/internal/dicom"
)

// Unknown is substituted for laterality, view or tomo name when the
// attributes needed to derive them are missing.
const Unknown = "unknown"

// TomoKind enumerates the tomosynthesis object types the pipeline knows how
// to place.
type TomoKind int

const (
	KindUnknown TomoKind = iota
	ProcCView
	RawTomoPR
	ProcTomoPR
	ProcTomoRC
)

// TomoType is the tagged acquisition type. For KindUnknown, Description
// keeps the series description that failed to match.
type TomoType struct {
	Kind        TomoKind
	Description string
}

// Known reports whether the type matched one of the placement categories.
func (t TomoType) Known() bool {
	return t.Kind != KindUnknown
}

// Dir returns the output subdirectory for the type.
func (t TomoType) Dir() string {
	switch t.Kind {
	case ProcCView:
		return "PROC_C-View"
	case RawTomoPR:
		return "RAW_Tomo_PR"
	case ProcTomoPR:
		return "PROC_Tomo_PR"
	case ProcTomoRC:
		return "PROC_Tomo_RC"
	default:
		return "UNKNOWN"
	}
}

func (t TomoType) String() string {
	if t.Kind == KindUnknown {
		return fmt.Sprintf("UNKNOWN(%s)", t.Description)
	}
	return t.Dir()
}

// TomoDirs are the per-pseudonym subdirectories created up front.
var TomoDirs = []string{"PROC_C-View", "PROC_Tomo_PR", "PROC_Tomo_RC", "RAW_Tomo_PR"}

// tomoRules are evaluated in order; the first substring found in the series
// description wins. "Raw Tomosynthesis Projection" must precede
// "Tomosynthesis Projection".
var tomoRules = []struct {
	match string
	kind  TomoKind
}{
	{"C-View", ProcCView},
	{"Raw Tomosynthesis Projection", RawTomoPR},
	{"Tomosynthesis Projection", ProcTomoPR},
	{"Tomosynthesis Reconstruction", ProcTomoRC}, // SCO
	{"Breast Tomosynthesis Image", ProcTomoRC},   // BTO
}

// Classification is the derived, read-only view of one instance.
type Classification struct {
	NumImages      int
	IsMammo        bool
	IsTomo         bool
	IsSCO          bool
	IsRaw          bool
	IsUncompressed bool
	TomoType       TomoType
	Laterality     string
	View           string
}

// Classify inspects ds without modifying it. Warnings about missing or
// unexpected attributes go to logger.
func Classify(ds *dcm.Dataset, logger *slog.Logger) Classification {
	if logger == nil {
		logger = slog.Default()
	}

	desc := ds.GetSeriesDescription()
	hasCount := ds.Has(tag.ImagesInAcquisition)
	hasIntent := ds.Has(tag.PresentationIntentType)

	numImages, ok := ds.GetInt(tag.ImagesInAcquisition)
	if !ok {
		numImages = 1
	}
	single := hasCount && numImages == 1

	c := Classification{
		NumImages:      numImages,
		IsMammo:        hasIntent && single,
		IsTomo:         !single && (strings.Contains(desc, "C-View") || strings.Contains(desc, "Tomosynthesis")),
		IsSCO:          strings.Contains(desc, "Tomosynthesis Reconstruction") || strings.Contains(desc, "Tomosynthesis Projection"),
		IsRaw:          strings.Contains(desc, "Raw") || ds.GetString(tag.PresentationIntentType) == "FOR PROCESSING",
		IsUncompressed: dcm.UncompressedSyntaxes[ds.GetTransferSyntax()],
	}

	if c.IsTomo {
		c.TomoType = tomoType(desc)
		if !c.TomoType.Known() {
			logger.Warn("unexpected series description", "file", ds.FilePath, "description", desc)
		}
		c.Laterality, c.View = lateralityAndView(ds, logger)
	}

	return c
}

func tomoType(desc string) TomoType {
	for _, r := range tomoRules {
		if strings.Contains(desc, r.match) {
			return TomoType{Kind: r.kind}
		}
	}
	return TomoType{Kind: KindUnknown, Description: desc}
}

// TomoName builds the placement name for the instance under pseudonym,
// e.g. "7463_PROC_RCC_RC".
func (c Classification) TomoName(pseudonym string) string {
	var procRaw, suffix string
	switch c.TomoType.Kind {
	case ProcCView:
		procRaw, suffix = "PROC", "C-View"
	case RawTomoPR:
		procRaw, suffix = "RAW", "PR"
	case ProcTomoPR:
		procRaw, suffix = "PROC", "PR"
	case ProcTomoRC:
		procRaw, suffix = "PROC", "RC"
	default:
		return Unknown
	}
	return fmt.Sprintf("%s_%s_%s%s_%s", pseudonym, procRaw, c.Laterality, c.View, suffix)
}
