package dicom_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom/pkg/tag"

	dcm "tomo-anonymizer/internal/dicom"
	"tomo-anonymizer/internal/dicom/dicomtest"
)

func TestDatasetAccessors(t *testing.T) {
	ds := dicomtest.Dataset(t, dicomtest.Attrs{
		tag.AccessionNumber:     "12345678",
		tag.ImagesInAcquisition: "3",
		tag.SeriesDescription:   "Breast Tomosynthesis Image",
		tag.ProtocolName:        "",
	})

	assert.True(t, ds.Has(tag.ProtocolName))
	assert.False(t, ds.Has(tag.ViewPosition))
	assert.Equal(t, "12345678", ds.GetAccessionNumber())
	assert.Equal(t, "Breast Tomosynthesis Image", ds.GetSeriesDescription())
	assert.Equal(t, "", ds.GetString(tag.ViewPosition))

	n, ok := ds.GetInt(tag.ImagesInAcquisition)
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = ds.GetInt(tag.ProtocolName)
	assert.False(t, ok)
}

func TestSetStringSkipsMissingTags(t *testing.T) {
	ds := dicomtest.Dataset(t, dicomtest.Attrs{tag.StudyID: "4711"})

	require.NoError(t, ds.SetString(tag.StudyID, "STUDY"))
	require.NoError(t, ds.SetString(tag.AccessionNumber, "99"))
	require.NoError(t, ds.ClearTag(tag.PatientName))

	assert.Equal(t, "STUDY", ds.GetString(tag.StudyID))
	assert.False(t, ds.Has(tag.AccessionNumber))
	assert.False(t, ds.Has(tag.PatientName))
}

func TestSaveAndReadBack(t *testing.T) {
	dir := t.TempDir()
	path := dicomtest.WriteFile(t, dir, "in.dcm", dicomtest.Tomo("Tomosynthesis Projection", "12345678", "15"))

	ds, err := dcm.ReadDicom(path)
	require.NoError(t, err)
	require.NoError(t, ds.ClearTag(tag.PatientName))

	out := filepath.Join(dir, "nested", "out.dcm")
	require.NoError(t, ds.Save(out))

	back, err := dcm.ReadDicomMetadataOnly(out)
	require.NoError(t, err)
	assert.Equal(t, "", back.GetString(tag.PatientName))
	assert.Equal(t, "12345678", back.GetAccessionNumber())
	assert.Equal(t, dcm.ExplicitVRLittleEndian, back.GetTransferSyntax())

	orig, err := dcm.ReadDicomMetadataOnly(path)
	require.NoError(t, err)
	assert.Equal(t, "DOE^JANE", orig.GetString(tag.PatientName))
}

func TestTagName(t *testing.T) {
	assert.Equal(t, "AccessionNumber", dcm.TagName(tag.AccessionNumber))
	assert.Equal(t, "(0009,1001)", dcm.TagName(tag.Tag{Group: 0x0009, Element: 0x1001}))
}

func TestFindDicomFiles(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "exam")
	out := filepath.Join(root, "out")
	require.NoError(t, os.MkdirAll(sub, 0755))
	require.NoError(t, os.MkdirAll(out, 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".cache"), 0755))

	top := dicomtest.WriteFile(t, root, "a.dcm", dicomtest.Tomo("C-View", "1", "1"))
	noExt := dicomtest.WriteFile(t, root, "IMG0001", dicomtest.Tomo("C-View", "1", "1"))
	nested := dicomtest.WriteFile(t, sub, "b.dcm", dicomtest.Tomo("C-View", "1", "1"))
	dicomtest.WriteFile(t, out, "c.dcm", dicomtest.Tomo("C-View", "1", "1"))
	dicomtest.WriteFile(t, filepath.Join(root, ".cache"), "d.dcm", dicomtest.Tomo("C-View", "1", "1"))
	require.NoError(t, os.WriteFile(filepath.Join(root, "idLookup.csv"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden.dcm"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes"), []byte("plain text"), 0644))

	flat, err := dcm.FindDicomFiles(root, false)
	require.NoError(t, err)
	assert.Equal(t, []string{noExt, top}, flat)

	deep, err := dcm.FindDicomFiles(root, true, out)
	require.NoError(t, err)
	assert.Equal(t, []string{noExt, top, nested}, deep)
}

type fakeRunner struct {
	calls  [][]string
	result error
	onRun  func(args []string)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.onRun != nil {
		f.onRun(args)
	}
	return f.result
}

func TestCodecDecompressArguments(t *testing.T) {
	runner := &fakeRunner{}
	codec := dcm.NewCodec("", "")
	codec.Runner = runner

	require.NoError(t, codec.Decompress(context.Background(), "/tmp/in.dcm", "/tmp/in_decomp.dcm"))
	assert.Equal(t, [][]string{{"gdcmconv", "-w", "/tmp/in.dcm", "/tmp/in_decomp.dcm"}}, runner.calls)
}

func TestCodecExpand(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "frames")
	runner := &fakeRunner{onRun: func(args []string) {
		dir := args[len(args)-1]
		for _, name := range []string{"image_002.dcm", "image_001.dcm", "other.dcm"} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("frame"), 0644))
		}
	}}
	codec := &dcm.Codec{Runner: runner, DecompressTool: "dc", ExpandTool: "/opt/hologic/gexpand"}

	frames, err := codec.Expand(context.Background(), "/tmp/in.dcm", outDir, "image", true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(outDir, "image_001.dcm"),
		filepath.Join(outDir, "image_002.dcm"),
	}, frames)
	assert.Equal(t, []string{"/opt/hologic/gexpand", "-a", "-pre", "image", "/tmp/in.dcm", outDir}, runner.calls[0])

	runner.calls = nil
	runner.onRun = nil
	_, err = codec.Expand(context.Background(), "/tmp/in.dcm", outDir, "image", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"/opt/hologic/gexpand", "-pre", "image", "/tmp/in.dcm", outDir}, runner.calls[0])
}

func TestCodecExpandFailure(t *testing.T) {
	runner := &fakeRunner{result: &dcm.ToolError{Tool: "gexpand", ExitCode: 3}}
	codec := &dcm.Codec{Runner: runner, ExpandTool: "gexpand"}

	frames, err := codec.Expand(context.Background(), "in.dcm", t.TempDir(), "image", false)
	assert.Nil(t, frames)

	var toolErr *dcm.ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, 3, toolErr.ExitCode)
	assert.Equal(t, "gexpand failed with exit code 3", toolErr.Error())
}

func TestExecRunnerReportsExitCode(t *testing.T) {
	if !dcm.CheckToolInstalled("sh") {
		t.Skip("sh not available")
	}

	err := dcm.ExecRunner{}.Run(context.Background(), "sh", "-c", "echo boom >&2; exit 2")
	var toolErr *dcm.ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, 2, toolErr.ExitCode)
	assert.Equal(t, "boom", toolErr.Stderr)

	err = dcm.ExecRunner{}.Run(context.Background(), "definitely-not-a-real-tool-xyz")
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, -1, toolErr.ExitCode)

	assert.NoError(t, dcm.ExecRunner{}.Run(context.Background(), "sh", "-c", "exit 0"))
}

func TestExecRunnerDoesNotWaitForOrphanedChildren(t *testing.T) {
	if !dcm.CheckToolInstalled("sh") {
		t.Skip("sh not available")
	}

	runner := dcm.ExecRunner{WaitDelay: 100 * time.Millisecond}
	start := time.Now()
	err := runner.Run(context.Background(), "sh", "-c", "sleep 3 & exit 0")
	assert.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second, "must not wait for the background child")

	start = time.Now()
	err = runner.Run(context.Background(), "sh", "-c", "sleep 3 & exit 4")
	var toolErr *dcm.ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, 4, toolErr.ExitCode)
	assert.Less(t, time.Since(start), 2*time.Second)
}
