// Package dicomtest builds small DICOM datasets and files for tests.
package dicomtest

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	dcm "tomo-anonymizer/internal/dicom"
)

// Attrs maps tags to their single string value.
type Attrs map[tag.Tag]string

// Dataset builds an in-memory dataset holding attrs and any extra
// non-string elements, in tag order.
func Dataset(t testing.TB, attrs Attrs, extra ...*dicom.Element) *dcm.Dataset {
	t.Helper()

	elems := make([]*dicom.Element, 0, len(attrs)+len(extra))
	for tg, v := range attrs {
		elem, err := dicom.NewElement(tg, []string{v})
		require.NoError(t, err, "building element %s", tg)
		elems = append(elems, elem)
	}
	elems = append(elems, extra...)
	sort.Slice(elems, func(i, j int) bool {
		a, b := elems[i].Tag, elems[j].Tag
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Element < b.Element
	})
	return dcm.NewDataset(elems)
}

// WriteFile writes attrs as a DICOM file named name inside dir and returns
// its path. File meta attributes are filled in when missing.
func WriteFile(t testing.TB, dir, name string, attrs Attrs, extra ...*dicom.Element) string {
	t.Helper()

	full := Attrs{
		tag.MediaStorageSOPClassUID:    "1.2.840.10008.5.1.4.1.1.13.1.3",
		tag.MediaStorageSOPInstanceUID: "1.2.3.4.5.6.7.8.9",
		tag.TransferSyntaxUID:          dcm.ExplicitVRLittleEndian,
	}
	for k, v := range attrs {
		full[k] = v
	}

	path := filepath.Join(dir, name)
	require.NoError(t, Dataset(t, full, extra...).Save(path))
	return path
}

// Tomo returns the attributes of a breast tomosynthesis instance.
func Tomo(description, accession string, numImages string) Attrs {
	return Attrs{
		tag.AccessionNumber:     accession,
		tag.PatientName:         "DOE^JANE",
		tag.PatientID:           "55501234",
		tag.StudyDate:           "20190314",
		tag.StudyID:             "4711",
		tag.SeriesDescription:   description,
		tag.ImagesInAcquisition: numImages,
		tag.Laterality:          "R",
		tag.ViewPosition:        "CC",
	}
}
