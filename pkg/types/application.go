package types

// Section is one named block of the application document: a flat mapping of
// field names to values, no cross-references between sections.
type Section map[string]any

// Application is the nested structured document a case accumulates over
// multiple sessions. Keys are section names, values are that section's fields.
type Application map[string]Section

const (
	SectionVictim        = "victim"
	SectionApplicant     = "applicant"
	SectionContact       = "contact"
	SectionCrime         = "crime"
	SectionCourt         = "court"
	SectionLosses        = "losses"
	SectionMedical       = "medical"
	SectionEmployment    = "employment"
	SectionFuneral       = "funeral"
	SectionCertification = "certification"
)

var ApplicationSections = []string{
	SectionVictim,
	SectionApplicant,
	SectionContact,
	SectionCrime,
	SectionCourt,
	SectionLosses,
	SectionMedical,
	SectionEmployment,
	SectionFuneral,
	SectionCertification,
}

func NewApplication() Application {
	return Application{}
}

// Merge returns a copy of a with every section present in partial replaced
// wholesale. Sections absent from partial are preserved. This is the whole
// merge granularity: no field-level diffing, last write wins per call.
func (a Application) Merge(partial Application) Application {
	out := a.Clone()
	for name, section := range partial {
		out[name] = section.clone()
	}
	return out
}

func (a Application) Clone() Application {
	out := make(Application, len(a))
	for name, section := range a {
		out[name] = section.clone()
	}
	return out
}

func (s Section) clone() Section {
	out := make(Section, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
