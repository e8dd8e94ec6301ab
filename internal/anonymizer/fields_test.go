package anonymizer

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	dcm "tomo-anonymizer/internal/dicom"
	"tomo-anonymizer/internal/dicom/dicomtest"
	"tomo-anonymizer/internal/identity"
	"tomo-anonymizer/internal/policy"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func testLinker() *identity.Linker {
	return identity.NewLinker(identity.Patterns{Shift: "1", Date: "2"}, quiet)
}

func TestApplyPolicy(t *testing.T) {
	ds := dicomtest.Dataset(t, dicomtest.Tomo("Breast Tomosynthesis Image", "12345678", "3"))
	linker := testLinker()

	require.NoError(t, ApplyPolicy(ds, policy.Default(), linker, "", quiet))

	assert.Equal(t, "", ds.GetString(tag.PatientName))
	assert.Equal(t, linker.Pseudonymize("55501234"), ds.GetString(tag.PatientID))
	assert.Equal(t, "23456789", ds.GetString(tag.AccessionNumber))
	assert.Equal(t, "5822", ds.GetString(tag.StudyID))
	assert.Equal(t, "42312536", ds.GetString(tag.StudyDate))
	// attributes outside the policy are untouched
	assert.Equal(t, "R", ds.GetString(tag.Laterality))
	assert.Equal(t, "Breast Tomosynthesis Image", ds.GetSeriesDescription())
}

func TestApplyPolicyNonNumericReplaceIsCleared(t *testing.T) {
	attrs := dicomtest.Tomo("Breast Tomosynthesis Image", "ACC-77", "3")
	ds := dicomtest.Dataset(t, attrs)

	require.NoError(t, ApplyPolicy(ds, policy.Default(), testLinker(), "", quiet))
	assert.True(t, ds.Has(tag.AccessionNumber))
	assert.Equal(t, "", ds.GetString(tag.AccessionNumber))
}

func TestApplyPolicyStudyIDOverride(t *testing.T) {
	ds := dicomtest.Dataset(t, dicomtest.Tomo("Breast Tomosynthesis Image", "12345678", "3"))
	require.NoError(t, ApplyPolicy(ds, policy.Default(), testLinker(), "S01", quiet))
	assert.Equal(t, "S01", ds.GetString(tag.StudyID))

	// without StudyID in the input, the override adds nothing
	attrs := dicomtest.Tomo("Breast Tomosynthesis Image", "12345678", "3")
	delete(attrs, tag.StudyID)
	ds = dicomtest.Dataset(t, attrs)
	require.NoError(t, ApplyPolicy(ds, policy.Default(), testLinker(), "S01", quiet))
	assert.False(t, ds.Has(tag.StudyID))
}

func TestApplyPolicyMissingTagsSkipped(t *testing.T) {
	ds := dicomtest.Dataset(t, dicomtest.Attrs{tag.SeriesDescription: "C-View"})
	pol := policy.New(map[tag.Tag]policy.Action{
		tag.PatientName:     policy.Remove,
		tag.AccessionNumber: policy.ReplaceWithPseudonym,
		tag.StudyDate:       policy.ShiftDate,
	})

	require.NoError(t, ApplyPolicy(ds, pol, testLinker(), "", quiet))
	assert.False(t, ds.Has(tag.PatientName))
	assert.False(t, ds.Has(tag.AccessionNumber))
	assert.False(t, ds.Has(tag.StudyDate))
}

func TestAnonymizeMetadataRoundTrip(t *testing.T) {
	dir := t.TempDir()
	input := dicomtest.WriteFile(t, dir, "in.dcm", dicomtest.Tomo("Breast Tomosynthesis Image", "12345678", "3"))

	ds, err := dcm.ReadDicom(input)
	require.NoError(t, err)

	pol := policy.Default().WithRemoveSet([]tag.Tag{tag.PatientName, tag.ViewPosition})
	out := filepath.Join(dir, "work", "redacted.dcm")
	require.NoError(t, AnonymizeMetadata(ds, pol, testLinker(), "", out, quiet))

	redacted, err := dcm.ReadDicom(out)
	require.NoError(t, err)
	for _, tg := range pol.Tags(policy.Remove) {
		if redacted.Has(tg) {
			assert.Equal(t, "", redacted.GetString(tg), "%s must be empty", dcm.TagName(tg))
		}
	}
	assert.Equal(t, testLinker().Pseudonymize("12345678"), redacted.GetAccessionNumber())

	original, err := dcm.ReadDicom(input)
	require.NoError(t, err)
	assert.Equal(t, "DOE^JANE", original.GetString(tag.PatientName), "input file must not change")
	assert.Equal(t, "12345678", original.GetAccessionNumber())
}

func TestAnonymizeMetadataRemovesSequenceAndBinaryTags(t *testing.T) {
	dir := t.TempDir()

	refUID, err := dicom.NewElement(tag.ReferencedSOPInstanceUID, []string{"1.2.840.1234.5"})
	require.NoError(t, err)
	refStudy, err := dicom.NewElement(tag.ReferencedStudySequence, [][]*dicom.Element{{refUID}})
	require.NoError(t, err)
	rows, err := dicom.NewElement(tag.Rows, []int{2457})
	require.NoError(t, err)
	columns, err := dicom.NewElement(tag.Columns, []int{1890})
	require.NoError(t, err)

	input := dicomtest.WriteFile(t, dir, "in.dcm",
		dicomtest.Tomo("Breast Tomosynthesis Image", "12345678", "3"), refStudy, rows, columns)
	ds, err := dcm.ReadDicom(input)
	require.NoError(t, err)

	pol := policy.Default().WithRemoveSet([]tag.Tag{tag.PatientName, tag.ReferencedStudySequence, tag.Rows})
	out := filepath.Join(dir, "redacted.dcm")
	require.NoError(t, AnonymizeMetadata(ds, pol, testLinker(), "", out, quiet))

	redacted, err := dcm.ReadDicom(out)
	require.NoError(t, err)

	seq, err := redacted.Data.FindElementByTag(tag.ReferencedStudySequence)
	require.NoError(t, err)
	assert.Empty(t, seq.Value.GetValue(), "sequence items must be dropped")

	cleared, err := redacted.Data.FindElementByTag(tag.Rows)
	require.NoError(t, err)
	assert.Empty(t, dicom.MustGetInts(cleared.Value))

	kept, err := redacted.Data.FindElementByTag(tag.Columns)
	require.NoError(t, err)
	assert.Equal(t, []int{1890}, dicom.MustGetInts(kept.Value))

	// elements after the cleared ones still parse
	assert.Equal(t, "", redacted.GetString(tag.PatientName))
	assert.Equal(t, "R", redacted.GetString(tag.Laterality))
	assert.Equal(t, "23456789", redacted.GetAccessionNumber())
}
