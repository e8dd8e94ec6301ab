package dicom

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// SetString sets a string value for a tag in the dataset. Missing tags are
// left alone; callers never add identifiers that were not already present.
func (d *Dataset) SetString(t tag.Tag, value string) error {
	elem, err := d.Data.FindElementByTag(t)
	if err != nil {
		return nil
	}

	newValue, err := dicom.NewValue([]string{value})
	if err != nil {
		return fmt.Errorf("could not create value: %w", err)
	}

	newElem := &dicom.Element{
		Tag:                    t,
		ValueRepresentation:    elem.ValueRepresentation,
		RawValueRepresentation: elem.RawValueRepresentation,
		ValueLength:            uint32(len(value)),
		Value:                  newValue,
	}

	for i, e := range d.Data.Elements {
		if e.Tag == t {
			d.Data.Elements[i] = newElem
			return nil
		}
	}

	return nil
}

// ClearTag empties a tag's value, keeping the element. The empty value
// matches the element's VR so sequences and binary VRs stay well formed.
func (d *Dataset) ClearTag(t tag.Tag) error {
	for i, e := range d.Data.Elements {
		if e.Tag != t {
			continue
		}
		empty, err := dicom.NewValue(emptyData(e.ValueRepresentation))
		if err != nil {
			return fmt.Errorf("could not create value: %w", err)
		}
		cleared := &dicom.Element{
			Tag:                    t,
			ValueRepresentation:    e.ValueRepresentation,
			RawValueRepresentation: e.RawValueRepresentation,
			Value:                  empty,
		}
		if e.ValueRepresentation == tag.VRSequence {
			// sequences are always written with a delimitation item
			cleared.ValueLength = tag.VLUndefinedLength
		}
		d.Data.Elements[i] = cleared
		return nil
	}
	return nil
}

func emptyData(kind tag.VRKind) any {
	switch kind {
	case tag.VRSequence:
		return [][]*dicom.Element{}
	case tag.VRUInt16List, tag.VRUInt32List, tag.VRInt16List, tag.VRInt32List, tag.VRTagList:
		return []int{}
	case tag.VRFloat32List, tag.VRFloat64List:
		return []float64{}
	case tag.VRBytes:
		return []byte{}
	default:
		return []string{""}
	}
}

// Save writes the DICOM dataset to a file.
func (d *Dataset) Save(outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("could not create output file: %w", err)
	}
	defer file.Close()

	// Write DICOM with relaxed verification (many real-world DICOM files
	// don't strictly follow VR specifications)
	if err := dicom.Write(file, d.Data,
		dicom.SkipVRVerification(),
		dicom.SkipValueTypeVerification(),
		dicom.DefaultMissingTransferSyntax(),
	); err != nil {
		return fmt.Errorf("could not write DICOM: %w", err)
	}

	return file.Close()
}
