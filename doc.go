/*
Package redline orchestrates clause-by-clause contract review.

A review walks a domain checklist over a parsed contract. For each clause the
engine runs the checklist's skills in order, asks a language model for risks,
drafts edits, checks them with a quality gate and then suspends until a human
approves, rejects or edits every proposed change. Suspended tasks are plain
checkpoints: any process holding the same store can resume them.

Model calls never fail a review. When no model is configured, or a call fails
or returns something unparsable, the step falls back to a safe default and the
result is marked as not model-backed.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/redline"
		"github.com/aretw0/redline/pkg/domain"
		"github.com/aretw0/redline/pkg/review"
	)

	func main() {
		r, err := redline.New(redline.WithModel(myModel))
		if err != nil {
			log.Fatal(err)
		}
		svc := r.Service()

		ctx := context.Background()
		state, err := svc.Start(ctx, review.StartRequest{DomainID: "supply", Document: doc})
		if err != nil {
			log.Fatal(err)
		}

		for state.Status == domain.StatusAwaitingApproval {
			for _, d := range state.PendingDiffs {
				svc.SubmitDecision(ctx, state.TaskID, d.ID, domain.Decision{Outcome: domain.OutcomeApprove})
			}
			res, err := svc.Resume(ctx, state.TaskID)
			if err != nil {
				log.Fatal(err)
			}
			state = res.State
		}
		fmt.Println(state.Summary.Markdown())
	}
*/
package redline
