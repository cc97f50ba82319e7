package services

import (
	"context"
	"errors"
	"strings"

	"github.com/anonto42/linkup/backend/internal/cache"
	"github.com/anonto42/linkup/backend/internal/coordinator"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/repositories"
	"github.com/anonto42/linkup/backend/internal/rowstore"
	"github.com/google/uuid"
)

// ErrAlreadyApplied is returned when the viewer has applied to the job.
var ErrAlreadyApplied = errors.New("already applied to this job")

// JobService backs the jobs page.
type JobService struct {
	base
	jobs    repositories.JobRepository
	applies inflight
}

// NewJobService creates a new JobService
func NewJobService(d Deps, jobs repositories.JobRepository) *JobService {
	return &JobService{base: newBase(d, "jobs"), jobs: jobs}
}

// LoadJobs refreshes every job posting, newest first.
func (s *JobService) LoadJobs(ctx context.Context) ([]*models.Job, error) {
	rows, err := s.co.Refresh(ctx, models.TypeJob, func(ctx context.Context) ([]models.Entity, error) {
		jobs, err := s.jobs.GetJobs(ctx)
		if err != nil {
			return nil, err
		}
		return entities(jobs), nil
	})
	if err != nil {
		return nil, err
	}
	s.co.Prune(models.TypeJob, nil, rows)
	return s.Jobs(""), nil
}

// Jobs returns cached postings whose title or company contains query.
func (s *JobService) Jobs(query string) []*models.Job {
	q := strings.ToLower(strings.TrimSpace(query))
	return newestFirst(cache.Collect[*models.Job](s.cache.List(models.TypeJob, cache.Where(func(j *models.Job) bool {
		return q == "" ||
			strings.Contains(strings.ToLower(j.Title), q) ||
			strings.Contains(strings.ToLower(j.Company), q)
	}))))
}

func (s *JobService) mine(me string) func(models.Entity) bool {
	return cache.Where(func(a *models.JobApplication) bool { return a.ApplicantID == me })
}

// LoadApplications refreshes the viewer's applications.
func (s *JobService) LoadApplications(ctx context.Context) (map[string]bool, error) {
	me, err := s.me()
	if err != nil {
		return nil, err
	}
	rows, err := s.co.Refresh(ctx, models.TypeJobApplication, func(ctx context.Context) ([]models.Entity, error) {
		apps, err := s.jobs.GetApplicationsByApplicant(ctx, me)
		if err != nil {
			return nil, err
		}
		return entities(apps), nil
	})
	if err != nil {
		return nil, err
	}
	s.co.Prune(models.TypeJobApplication, s.mine(me), rows)
	return s.AppliedJobIDs(), nil
}

// AppliedJobIDs is the set of jobs the viewer applied to, as cached.
func (s *JobService) AppliedJobIDs() map[string]bool {
	out := map[string]bool{}
	me, err := s.me()
	if err != nil {
		return out
	}
	for _, a := range cache.Collect[*models.JobApplication](s.cache.List(models.TypeJobApplication, s.mine(me))) {
		out[a.JobID] = true
	}
	return out
}

// Apply submits an application for the viewer. The job shows as applied at
// once and reverts if the insert fails.
func (s *JobService) Apply(ctx context.Context, jobID string) (coordinator.Result, error) {
	me, err := s.me()
	if err != nil {
		return coordinator.Result{}, err
	}
	release, err := s.applies.acquire(models.Key{Type: models.TypeJobApplication, ID: jobID})
	if err != nil {
		return coordinator.Result{}, err
	}
	defer release()
	// checked under the guard so an apply that just settled is seen
	if s.AppliedJobIDs()[jobID] {
		return coordinator.Result{}, ErrAlreadyApplied
	}

	app := &models.JobApplication{
		ID:          uuid.NewString(),
		JobID:       jobID,
		ApplicantID: me,
		Status:      "pending",
		CreatedAt:   s.now().UTC(),
	}
	return s.co.Mutate(ctx, models.KeyOf(app),
		func(models.Entity) models.Entity { return app },
		func(ctx context.Context) (models.Entity, error) {
			return s.jobs.CreateApplication(ctx, app)
		}), nil
}

// PostJob publishes a job posted by the viewer.
func (s *JobService) PostJob(ctx context.Context, req models.CreateJobRequest) (coordinator.Result, error) {
	me, err := s.me()
	if err != nil {
		return coordinator.Result{}, err
	}
	if err := s.check(req); err != nil {
		return coordinator.Result{}, err
	}
	job := &models.Job{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(req.Title),
		Company:     strings.TrimSpace(req.Company),
		Description: req.Description,
		Location:    req.Location,
		JobType:     req.JobType,
		SalaryMin:   req.SalaryMin,
		SalaryMax:   req.SalaryMax,
		PostedBy:    me,
		CreatedAt:   s.now().UTC(),
	}
	return s.co.Mutate(ctx, models.KeyOf(job),
		func(models.Entity) models.Entity { return job },
		func(ctx context.Context) (models.Entity, error) {
			return s.jobs.CreateJob(ctx, job)
		}), nil
}

// DeleteJob removes a posting. Only its poster may delete it.
func (s *JobService) DeleteJob(ctx context.Context, jobID string) (coordinator.Result, error) {
	me, err := s.me()
	if err != nil {
		return coordinator.Result{}, err
	}
	job, ok := cache.Lookup[*models.Job](s.cache, models.TypeJob, jobID)
	if !ok {
		return coordinator.Result{}, ErrNotLoaded
	}
	if job.PostedBy != me {
		return coordinator.Result{}, ErrForbidden
	}
	return s.co.Mutate(ctx, models.KeyOf(job),
		func(models.Entity) models.Entity { return nil },
		func(ctx context.Context) (models.Entity, error) {
			if err := s.jobs.DeleteJob(ctx, jobID); err != nil && !errors.Is(err, rowstore.ErrNotFound) {
				return nil, err
			}
			return nil, nil
		}), nil
}
