package models

// SettingsID is the key of the settings singleton.
const SettingsID = "global_settings"

// Settings is the clinic-wide configuration used when rendering reports.
type Settings struct {
	ID               string `json:"id"`
	LetterheadPath   string `json:"letterhead_path,omitempty"`
	ClinicName       string `json:"clinic_name,omitempty"`
	ClinicAddress    string `json:"clinic_address,omitempty"`
	VeterinarianName string `json:"veterinarian_name,omitempty"`
	CRMV             string `json:"crmv,omitempty"`
}

// DefaultSettings returns the settings used before any are saved.
func DefaultSettings() *Settings {
	return &Settings{ID: SettingsID}
}

// HasLetterhead reports whether a letterhead document is configured.
func (s *Settings) HasLetterhead() bool {
	return s != nil && s.LetterheadPath != ""
}

// Snapshot is a full copy of every collection, used by backups.
type Snapshot struct {
	Version         int              `json:"version"`
	ExportedAt      string           `json:"exported_at"`
	Patients        []Patient        `json:"patients"`
	Exams           []Exam           `json:"exams"`
	Templates       []TemplateText   `json:"templates"`
	ReferenceValues []ReferenceValue `json:"reference_values"`
	Settings        *Settings        `json:"settings,omitempty"`
}
