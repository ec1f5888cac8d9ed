// Package models defines the typed records of patients, exams, catalog entries and settings.
package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// OrganData is the examined state of one organ inside an exam.
type OrganData struct {
	OrganName        string       `json:"organ_name"`
	Measurements     Measurements `json:"measurements"`
	SelectedFindings []string     `json:"selected_findings"`
	CustomNotes      string       `json:"custom_notes"`
	ReportText       string       `json:"report_text"`
}

// Validate ensures the organ has a name and every measurement a known unit.
func (o *OrganData) Validate() error {
	if o.OrganName == "" {
		return errors.New("organ_name cannot be empty")
	}
	for _, m := range o.Measurements {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%s/%s: %w", o.OrganName, m.Slot, err)
		}
	}
	return nil
}

// ExamImage is an uploaded ultrasound still owned by an exam.
type ExamImage struct {
	ID       string  `json:"id"`
	Filename string  `json:"filename"`
	Organ    *string `json:"organ,omitempty"`
	Path     string  `json:"path"`
}

// OrganTag returns the organ the image was tagged with, or "".
func (i *ExamImage) OrganTag() string {
	if i.Organ == nil {
		return ""
	}
	return *i.Organ
}

// Exam is one ultrasound examination of a patient.
type Exam struct {
	ID          string      `json:"id"`
	PatientID   string      `json:"patient_id"`
	ExamDate    time.Time   `json:"exam_date"`
	ExamWeight  *float64    `json:"exam_weight,omitempty"`
	OrgansData  []OrganData `json:"organs_data"`
	Images      []ExamImage `json:"images"`
	FinalReport string      `json:"final_report"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Validate checks the patient reference and every organ.
func (e *Exam) Validate() error {
	if e.PatientID == "" {
		return errors.New("patient_id cannot be empty")
	}
	for i := range e.OrgansData {
		if err := e.OrgansData[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// EffectiveWeight returns the weight recorded at the exam, falling back to the
// patient's stored weight when the exam has none (or zero).
func (e *Exam) EffectiveWeight(p *Patient) float64 {
	if e.ExamWeight != nil && *e.ExamWeight != 0 {
		return *e.ExamWeight
	}
	return p.Weight
}

// Image returns the image with the given id.
func (e *Exam) Image(id string) (*ExamImage, bool) {
	for i := range e.Images {
		if e.Images[i].ID == id {
			return &e.Images[i], true
		}
	}
	return nil, false
}

// ExamInput is the input for creating an exam.
type ExamInput struct {
	PatientID  string     `json:"patient_id"`
	ExamDate   *time.Time `json:"exam_date,omitempty"`
	ExamWeight *float64   `json:"exam_weight,omitempty"`
}

// ExamUpdate carries the fields a client may change on an exam; nil fields are left as-is.
// An explicit "exam_weight": null clears the exam weight so the patient's weight applies.
type ExamUpdate struct {
	OrgansData      []OrganData `json:"organs_data,omitempty"`
	FinalReport     *string     `json:"final_report,omitempty"`
	ExamWeight      *float64    `json:"exam_weight,omitempty"`
	ClearExamWeight bool        `json:"-"`
}

// UnmarshalJSON records whether exam_weight was sent as null.
func (u *ExamUpdate) UnmarshalJSON(data []byte) error {
	type plain ExamUpdate
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*u = ExamUpdate(p)
	if raw, ok := fields["exam_weight"]; ok && string(bytes.TrimSpace(raw)) == "null" {
		u.ClearExamWeight = true
	}
	return nil
}

// Apply copies the set fields of u onto e.
func (u *ExamUpdate) Apply(e *Exam) {
	if u.OrgansData != nil {
		e.OrgansData = u.OrgansData
	}
	if u.FinalReport != nil {
		e.FinalReport = *u.FinalReport
	}
	switch {
	case u.ExamWeight != nil:
		e.ExamWeight = u.ExamWeight
	case u.ClearExamWeight:
		e.ExamWeight = nil
	}
}
