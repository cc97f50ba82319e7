package models

import "time"

// Job is a job posting
type Job struct {
	ID          string    `json:"id" gorm:"primaryKey;type:uuid"`
	Title       string    `json:"title" validate:"required,max=200"`
	Company     string    `json:"company" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=10000"`
	Location    string    `json:"location,omitempty"`
	JobType     string    `json:"job_type,omitempty" validate:"omitempty,oneof=full-time part-time contract internship remote"`
	SalaryMin   *int      `json:"salary_min,omitempty" validate:"omitempty,min=0"`
	SalaryMax   *int      `json:"salary_max,omitempty" validate:"omitempty,min=0"`
	PostedBy    string    `json:"posted_by" gorm:"type:uuid;index"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
}

func (*Job) TableName() string  { return TypeJob.Table() }
func (*Job) EntityType() Type   { return TypeJob }
func (j *Job) EntityID() string { return j.ID }
func (j *Job) Stamp() time.Time { return j.CreatedAt }

// JobApplication links an applicant to a job
type JobApplication struct {
	ID          string    `json:"id" gorm:"primaryKey;type:uuid"`
	JobID       string    `json:"job_id" gorm:"type:uuid;index;uniqueIndex:idx_job_applicant"`
	ApplicantID string    `json:"applicant_id" gorm:"type:uuid;index;uniqueIndex:idx_job_applicant"`
	Status      string    `json:"status" gorm:"size:20;default:'pending'"` // pending, reviewed, accepted, rejected
	CreatedAt   time.Time `json:"created_at"`
}

func (*JobApplication) TableName() string  { return TypeJobApplication.Table() }
func (*JobApplication) EntityType() Type   { return TypeJobApplication }
func (a *JobApplication) EntityID() string { return a.ID }
func (a *JobApplication) Stamp() time.Time { return a.CreatedAt }

// CreateJobRequest defines the request body for posting a job
type CreateJobRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Company     string `json:"company" validate:"required,max=200"`
	Description string `json:"description" validate:"max=10000"`
	Location    string `json:"location,omitempty"`
	JobType     string `json:"job_type,omitempty" validate:"omitempty,oneof=full-time part-time contract internship remote"`
	SalaryMin   *int   `json:"salary_min,omitempty" validate:"omitempty,min=0"`
	SalaryMax   *int   `json:"salary_max,omitempty" validate:"omitempty,min=0"`
}
