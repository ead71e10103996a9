package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/review"
)

// ReviewOptions configures one CLI review run.
type ReviewOptions struct {
	TaskID      string
	DomainID    string
	Document    *domain.Document
	AutoApprove bool
	In          io.Reader
	Out         io.Writer
	// Render formats markdown for display. Nil prints it raw.
	Render func(string) (string, error)
}

// LoadDocument reads a parsed contract from a JSON or YAML file.
func LoadDocument(path string) (*domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	var doc domain.Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &doc)
	default:
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("parse document %s: %w", path, err)
	}
	if len(doc.Clauses) == 0 {
		return nil, fmt.Errorf("document %s has no clauses", path)
	}
	if doc.ID == "" {
		doc.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &doc, nil
}

// RunReview starts a task (or continues a suspended one when TaskID names an
// existing checkpoint) and walks every approval round on the terminal.
func RunReview(ctx context.Context, svc *review.Service, opts ReviewOptions) (*domain.TaskState, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	in := bufio.NewReader(opts.In)

	state, err := startOrLoad(ctx, svc, opts)
	if err != nil {
		return state, err
	}

	for state.Status == domain.StatusAwaitingApproval {
		printSystemMessage(opts.Out, "Clause %s: %d proposed edit(s) await a decision.", state.CurrentClauseID, len(state.PendingDiffs))
		decisions := make(map[string]domain.Decision, len(state.PendingDiffs))
		for i, d := range state.PendingDiffs {
			if _, done := state.Decisions[d.ID]; done {
				continue
			}
			printDiff(opts.Out, i+1, len(state.PendingDiffs), d)
			dec, err := decide(ctx, in, opts.Out, opts.AutoApprove)
			if err != nil {
				return state, err
			}
			decisions[d.ID] = dec
		}
		if len(decisions) > 0 {
			if _, err := svc.SubmitDecisions(ctx, state.TaskID, decisions); err != nil {
				return state, err
			}
		}

		res, err := svc.Resume(ctx, state.TaskID)
		if err != nil {
			return state, err
		}
		if res.State == nil {
			if state, err = svc.Get(ctx, state.TaskID); err != nil {
				return state, err
			}
			continue
		}
		state = res.State
	}

	if state.Summary != nil {
		report := state.Summary.Markdown()
		if opts.Render != nil {
			if rendered, err := opts.Render(report); err == nil {
				report = rendered
			}
		}
		fmt.Fprintln(opts.Out, report)
	}
	printSystemMessage(opts.Out, "Task %s %s.", state.TaskID, state.Status)
	return state, nil
}

func startOrLoad(ctx context.Context, svc *review.Service, opts ReviewOptions) (*domain.TaskState, error) {
	if opts.TaskID != "" {
		state, err := svc.Get(ctx, opts.TaskID)
		if err == nil {
			printSystemMessage(opts.Out, "Continuing task %s (%s).", state.TaskID, state.Status)
			return state, nil
		}
		if !errors.Is(err, domain.ErrTaskNotFound) {
			return nil, err
		}
	}
	if opts.Document == nil {
		return nil, errors.New("a document is required to start a review")
	}
	state, err := svc.Start(ctx, review.StartRequest{
		TaskID:   opts.TaskID,
		DomainID: opts.DomainID,
		Document: opts.Document,
	})
	if state != nil {
		printSystemMessage(opts.Out, "Task %s started (%d clauses).", state.TaskID, len(state.Checklist))
	}
	return state, err
}

func printDiff(w io.Writer, n, total int, d domain.ProposedDiff) {
	fmt.Fprintf(w, "\n[%d/%d] %s (%s)\n", n, total, d.ID, d.Kind)
	if d.Original != "" {
		fmt.Fprintf(w, "  - %s\n", d.Original)
	}
	if d.Replacement != "" {
		fmt.Fprintf(w, "  + %s\n", d.Replacement)
	}
	if d.Rationale != "" {
		fmt.Fprintf(w, "  why: %s\n", d.Rationale)
	}
	if d.SpanNotFound {
		fmt.Fprintln(w, "  note: the original text was not found verbatim in the clause")
	}
}

func decide(ctx context.Context, in *bufio.Reader, out io.Writer, auto bool) (domain.Decision, error) {
	if auto {
		fmt.Fprintln(out, "  -> approved (auto)")
		return domain.Decision{Outcome: domain.OutcomeApprove}, nil
	}
	for {
		if err := ctx.Err(); err != nil {
			return domain.Decision{}, err
		}
		answer, err := prompt(in, out, "  [a]pprove, [r]eject or [e]dit? ")
		if err != nil {
			return domain.Decision{}, err
		}
		switch strings.ToLower(answer) {
		case "a", "approve", "y", "yes":
			return domain.Decision{Outcome: domain.OutcomeApprove}, nil
		case "r", "reject", "n", "no":
			comment, err := prompt(in, out, "  feedback for the next draft (optional): ")
			if err != nil {
				return domain.Decision{}, err
			}
			return domain.Decision{Outcome: domain.OutcomeReject, Comment: comment}, nil
		case "e", "edit":
			text, err := prompt(in, out, "  revised text: ")
			if err != nil {
				return domain.Decision{}, err
			}
			if text == "" {
				fmt.Fprintln(out, "  revised text cannot be empty")
				continue
			}
			return domain.Decision{Outcome: domain.OutcomeEdit, RevisedText: text}, nil
		default:
			fmt.Fprintln(out, "  please answer a, r or e")
		}
	}
}

func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
