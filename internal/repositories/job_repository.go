package repositories

import (
	"context"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/rowstore"
)

// JobRepository defines the interface for job and application operations
type JobRepository interface {
	CreateJob(ctx context.Context, job *models.Job) (*models.Job, error)
	GetJobByID(ctx context.Context, id string) (*models.Job, error)
	GetJobs(ctx context.Context) ([]*models.Job, error)
	DeleteJob(ctx context.Context, id string) error
	CreateApplication(ctx context.Context, app *models.JobApplication) (*models.JobApplication, error)
	GetApplicationsByApplicant(ctx context.Context, applicantID string) ([]*models.JobApplication, error)
}

// RowStoreJobRepository implements JobRepository over the jobs and job_applications tables
type RowStoreJobRepository struct {
	jobs         table[*models.Job]
	applications table[*models.JobApplication]
}

// NewRowStoreJobRepository creates a new RowStoreJobRepository
func NewRowStoreJobRepository(store rowstore.Client) *RowStoreJobRepository {
	return &RowStoreJobRepository{
		jobs:         newTable[*models.Job](store, models.TypeJob),
		applications: newTable[*models.JobApplication](store, models.TypeJobApplication),
	}
}

// CreateJob inserts a job posting
func (r *RowStoreJobRepository) CreateJob(ctx context.Context, job *models.Job) (*models.Job, error) {
	return r.jobs.insert(ctx, job)
}

// GetJobByID retrieves a job by id
func (r *RowStoreJobRepository) GetJobByID(ctx context.Context, id string) (*models.Job, error) {
	return r.jobs.first(ctx, rowstore.Eq("id", id))
}

// GetJobs retrieves every job, newest first
func (r *RowStoreJobRepository) GetJobs(ctx context.Context) ([]*models.Job, error) {
	jobs, err := r.jobs.list(ctx, nil)
	if err != nil {
		return nil, err
	}
	newestFirst(jobs)
	return jobs, nil
}

// DeleteJob deletes a job by id
func (r *RowStoreJobRepository) DeleteJob(ctx context.Context, id string) error {
	return r.jobs.delete(ctx, rowstore.Eq("id", id))
}

// CreateApplication inserts an application. Applying twice fails with rowstore.ErrDuplicate
func (r *RowStoreJobRepository) CreateApplication(ctx context.Context, app *models.JobApplication) (*models.JobApplication, error) {
	return r.applications.insert(ctx, app)
}

// GetApplicationsByApplicant retrieves a user's applications
func (r *RowStoreJobRepository) GetApplicationsByApplicant(ctx context.Context, applicantID string) ([]*models.JobApplication, error) {
	return r.applications.list(ctx, rowstore.Eq("applicant_id", applicantID))
}
