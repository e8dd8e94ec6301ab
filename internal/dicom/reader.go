package dicom

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Dataset wraps a DICOM dataset for easier access
type Dataset struct {
	Data     dicom.Dataset
	FilePath string
}

// NewDataset wraps already-parsed elements, mainly for callers that build
// datasets in memory.
func NewDataset(elems []*dicom.Element) *Dataset {
	return &Dataset{Data: dicom.Dataset{Elements: elems}}
}

// ReadDicom reads a DICOM file and returns the dataset.
func ReadDicom(path string) (*Dataset, error) {
	return read(path)
}

// ReadDicomMetadataOnly reads only the metadata (no pixel data).
func ReadDicomMetadataOnly(path string) (*Dataset, error) {
	return read(path, dicom.SkipPixelData())
}

func read(path string, opts ...dicom.ParseOption) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("could not stat file: %w", err)
	}

	ds, err := dicom.Parse(file, info.Size(), nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not parse DICOM: %w", err)
	}

	return &Dataset{
		Data:     ds,
		FilePath: path,
	}, nil
}

// Has reports whether the tag is present in the dataset, regardless of value.
func (d *Dataset) Has(t tag.Tag) bool {
	_, err := d.Data.FindElementByTag(t)
	return err == nil
}

// GetString returns a string value for a tag, or empty string if not found.
// DICOM padding (trailing spaces and NULs) is stripped.
func (d *Dataset) GetString(t tag.Tag) string {
	elem, err := d.Data.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return ""
	}

	raw := elem.Value.GetValue()
	if raw == nil {
		return ""
	}

	var s string
	switch v := raw.(type) {
	case []string:
		if len(v) == 0 {
			return ""
		}
		s = v[0]
	case string:
		s = v
	case []int:
		if len(v) == 0 {
			return ""
		}
		s = strconv.Itoa(v[0])
	default:
		s = fmt.Sprintf("%v", raw)
	}

	return strings.Trim(s, " \x00")
}

// GetInt parses an integer-valued tag (IS, US, UL). ok is false when the tag
// is missing or does not hold an integer.
func (d *Dataset) GetInt(t tag.Tag) (int, bool) {
	if !d.Has(t) {
		return 0, false
	}
	n, err := strconv.Atoi(d.GetString(t))
	if err != nil {
		return 0, false
	}
	return n, true
}

// TagName returns the dictionary keyword for a tag, or its (gggg,eeee) form.
func TagName(t tag.Tag) string {
	info, err := tag.Find(t)
	if err != nil || info.Name == "" {
		return t.String()
	}
	return info.Name
}

// GetAccessionNumber returns the exam-level accession number.
func (d *Dataset) GetAccessionNumber() string {
	return d.GetString(tag.AccessionNumber)
}

// GetTransferSyntax returns the transfer syntax UID.
func (d *Dataset) GetTransferSyntax() string {
	return d.GetString(tag.TransferSyntaxUID)
}

// GetSeriesDescription returns the series description, which carries the
// vendor's acquisition naming (C-View, Tomosynthesis Projection, ...).
func (d *Dataset) GetSeriesDescription() string {
	return d.GetString(tag.SeriesDescription)
}
