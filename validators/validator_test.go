package validators

import (
	"testing"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func intp(v int) *int { return &v }

func TestValidateRequests(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name  string
		input interface{}
		ok    bool
	}{
		{"comment", models.CreateCommentRequest{Content: "nice"}, true},
		{"empty comment", models.CreateCommentRequest{}, false},
		{"post", models.CreatePostRequest{Content: "hello"}, true},
		{"post bad image", models.CreatePostRequest{Content: "hello", ImageURL: "not a url"}, false},
		{"job", models.CreateJobRequest{Title: "Go dev", Company: "LinkUp", SalaryMin: intp(10), SalaryMax: intp(20)}, true},
		{"job inverted salary", models.CreateJobRequest{Title: "Go dev", Company: "LinkUp", SalaryMin: intp(30), SalaryMax: intp(20)}, false},
		{"job missing company", models.CreateJobRequest{Title: "Go dev"}, false},
		{"job bad type", models.CreateJobRequest{Title: "Go dev", Company: "LinkUp", JobType: "gig"}, false},
		{"self follow", models.Connection{FollowerID: "u1", FollowingID: "u1"}, false},
		{"follow", models.Connection{FollowerID: "u1", FollowingID: "u2"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.input)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
