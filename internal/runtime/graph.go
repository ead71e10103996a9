package runtime

import "github.com/aretw0/redline/pkg/domain"

// Edge is one transition of the review state machine.
type Edge struct {
	From  domain.NodeID
	To    domain.NodeID
	Label string
}

// Edges lists every transition the engine can take, in walk order.
func Edges() []Edge {
	return []Edge{
		{From: domain.NodeStart, To: domain.NodeSelectClause},
		{From: domain.NodeSelectClause, To: domain.NodeAnalyzeClause, Label: "next clause"},
		{From: domain.NodeSelectClause, To: domain.NodeSummarize, Label: "checklist exhausted"},
		{From: domain.NodeAnalyzeClause, To: domain.NodeGenerateDiffs},
		{From: domain.NodeGenerateDiffs, To: domain.NodeValidate},
		{From: domain.NodeValidate, To: domain.NodeHumanApproval, Label: "passed"},
		{From: domain.NodeValidate, To: domain.NodeAnalyzeClause, Label: "retry"},
		{From: domain.NodeHumanApproval, To: domain.NodeSaveClause, Label: string(RouteSave)},
		{From: domain.NodeHumanApproval, To: domain.NodeGenerateDiffs, Label: string(RouteRegenerate)},
		{From: domain.NodeSaveClause, To: domain.NodeSelectClause},
		{From: domain.NodeSummarize, To: domain.NodeDone},
	}
}
