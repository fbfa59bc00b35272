package team_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vampirenirmal/edrr/internal/team"
)

type stubReviewer struct {
	name string
	fn   func(ctx context.Context, work map[string]any) (team.Review, error)
}

func (r *stubReviewer) Name() string { return r.name }

func (r *stubReviewer) Process(ctx context.Context, work map[string]any) (team.Review, error) {
	return r.fn(ctx, work)
}

func approve() func(ctx context.Context, work map[string]any) (team.Review, error) {
	return func(ctx context.Context, work map[string]any) (team.Review, error) {
		yes := true
		return team.Review{Approved: &yes, Notes: "looks good"}, nil
	}
}

func TestCollectReviewsPreservesOrder(t *testing.T) {
	reviewers := []team.Reviewer{
		&stubReviewer{name: "alpha", fn: approve()},
		&stubReviewer{name: "beta", fn: approve()},
		&stubReviewer{name: "gamma", fn: approve()},
	}

	reviews := team.CollectReviews(context.Background(), map[string]any{"draft": "v1"}, reviewers)

	if len(reviews) != 3 {
		t.Fatalf("reviews = %d, want 3", len(reviews))
	}
	for i, name := range []string{"alpha", "beta", "gamma"} {
		if reviews[i].Reviewer != name {
			t.Errorf("review %d from %q, want %q", i, reviews[i].Reviewer, name)
		}
		if reviews[i].Approved == nil || !*reviews[i].Approved {
			t.Errorf("review %d not approved", i)
		}
	}
}

func TestCollectReviewsIsolatesFailures(t *testing.T) {
	reviewers := []team.Reviewer{
		&stubReviewer{name: "ok-1", fn: approve()},
		&stubReviewer{name: "broken", fn: func(ctx context.Context, work map[string]any) (team.Review, error) {
			return team.Review{}, errors.New("reviewer crashed")
		}},
		&stubReviewer{name: "ok-2", fn: approve()},
	}

	reviews := team.CollectReviews(context.Background(), nil, reviewers)

	if len(reviews) != 3 {
		t.Fatalf("reviews = %d, want 3", len(reviews))
	}
	failed := reviews[1]
	if failed.Approved != nil {
		t.Error("failed reviewer's verdict must be nil")
	}
	if !strings.Contains(failed.Notes, "reviewer crashed") {
		t.Errorf("failure note = %q, want diagnostic", failed.Notes)
	}
	for _, i := range []int{0, 2} {
		if reviews[i].Approved == nil {
			t.Errorf("review %d was lost to a neighbor's failure", i)
		}
	}
}

func TestReviewOpinionsMapping(t *testing.T) {
	yes, no := true, false
	reviews := []team.Review{
		{Reviewer: "a", Approved: &yes},
		{Reviewer: "b", Approved: &no},
		{Reviewer: "c"},
	}
	opinions := team.ReviewOpinions(reviews)

	want := []string{"approve", "reject", "error"}
	for i, opinion := range opinions {
		if opinion.Opinion != want[i] {
			t.Errorf("opinion %d = %q, want %q", i, opinion.Opinion, want[i])
		}
	}
}
