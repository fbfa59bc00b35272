package team

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Reviewer examines a work product independently of other reviewers.
type Reviewer interface {
	Name() string
	Process(ctx context.Context, work map[string]any) (Review, error)
}

// Review is one reviewer's verdict. Approved is nil for a synthetic review
// recorded when the reviewer itself failed.
type Review struct {
	Reviewer string             `json:"reviewer"`
	Approved *bool              `json:"approved"`
	Notes    string             `json:"notes,omitempty"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
}

// CollectReviews invokes every reviewer concurrently and returns their
// reviews in reviewer order. No reviewer sees another's opinion, and one
// reviewer failing never prevents the others from being collected; the
// failure becomes a synthetic review with a nil verdict and a diagnostic
// note.
func CollectReviews(ctx context.Context, work map[string]any, reviewers []Reviewer) []Review {
	reviews := make([]Review, len(reviewers))

	g, gctx := errgroup.WithContext(ctx)
	for i, reviewer := range reviewers {
		i, reviewer := i, reviewer
		g.Go(func() error {
			review, err := reviewer.Process(gctx, work)
			if err != nil {
				reviews[i] = Review{
					Reviewer: reviewer.Name(),
					Notes:    fmt.Sprintf("reviewer failed: %v", err),
				}
				return nil
			}
			review.Reviewer = reviewer.Name()
			reviews[i] = review
			return nil
		})
	}
	// Reviewer failures are captured as synthetic reviews, never as group
	// errors.
	_ = g.Wait()

	return reviews
}

// ReviewOpinions converts reviews into consensus opinions. Failed reviews
// vote "error" so the consensus payload still accounts for them.
func ReviewOpinions(reviews []Review) []Opinion {
	opinions := make([]Opinion, 0, len(reviews))
	for _, r := range reviews {
		opinion := "error"
		if r.Approved != nil {
			if *r.Approved {
				opinion = "approve"
			} else {
				opinion = "reject"
			}
		}
		opinions = append(opinions, Opinion{AgentID: r.Reviewer, Opinion: opinion})
	}
	return opinions
}
