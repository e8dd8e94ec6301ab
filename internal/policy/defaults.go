package policy

import "github.com/suyashkumar/dicom/pkg/tag"

// ReplaceTags carry identifiers that are pseudonymized when numeric.
var ReplaceTags = []tag.Tag{
	tag.PatientID,
	tag.AccessionNumber,
	tag.StudyID,
}

// DateTags are shifted with the date pattern.
var DateTags = []tag.Tag{
	tag.PatientBirthDate,
	tag.StudyDate,
	tag.SeriesDate,
	tag.AcquisitionDate,
	tag.ContentDate,
	tag.InstanceCreationDate,
}

// RemoveTags are cleared outright.
var RemoveTags = []tag.Tag{
	// Patient identifiers
	tag.PatientName,
	tag.PatientAge,
	// tag.PatientSex - KEPT for clinical relevance
	tag.PatientAddress,
	tag.PatientTelephoneNumbers,
	tag.OtherPatientIDs,
	tag.PatientBirthTime,
	tag.PatientMotherBirthName,
	tag.MilitaryRank,
	tag.EthnicGroup,
	tag.PatientReligiousPreference,
	tag.PatientComments,

	// Times (dates are shifted instead)
	tag.StudyTime,
	tag.SeriesTime,
	tag.AcquisitionTime,
	tag.ContentTime,
	tag.InstanceCreationTime,

	// Institution and device
	tag.InstitutionName,
	tag.InstitutionAddress,
	tag.InstitutionalDepartmentName,
	tag.StationName,
	tag.DeviceSerialNumber,

	// Physicians and operators
	tag.ReferringPhysicianName,
	tag.ReferringPhysicianAddress,
	tag.ReferringPhysicianTelephoneNumbers,
	tag.PerformingPhysicianName,
	tag.OperatorsName,
	tag.PhysiciansOfRecord,
	tag.NameOfPhysiciansReadingStudy,
	tag.RequestingPhysician,

	// Procedure step identifiers
	tag.PerformedProcedureStepID,
	tag.ScheduledProcedureStepID,
}

// Default returns the built-in policy used when no table is configured.
func Default() *Policy {
	actions := make(map[tag.Tag]Action, len(ReplaceTags)+len(DateTags)+len(RemoveTags))
	for _, t := range RemoveTags {
		actions[t] = Remove
	}
	for _, t := range ReplaceTags {
		actions[t] = ReplaceWithPseudonym
	}
	for _, t := range DateTags {
		actions[t] = ShiftDate
	}
	return &Policy{actions: actions}
}
