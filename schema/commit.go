package schema

// CommitToolName is one of the five fixed commit actions from spec.md §3.
// Any production write must flow through exactly one of these.
type CommitToolName string

const (
	CommitApplyChanges           CommitToolName = "apply_changes"
	CommitPublishDailyBrief      CommitToolName = "publish_daily_brief"
	CommitPostAlert              CommitToolName = "post_alert"
	CommitMarkCheckpointComplete CommitToolName = "mark_checkpoint_complete"
	CommitSendInvoice            CommitToolName = "send_invoice"
)

// CommitToolSpec is one entry in the fixed CommitToolRegistry.
type CommitToolSpec struct {
	Name                CommitToolName
	ActionType          string
	MinTrustLevel       TrustLevel
	Risk                Risk
	AutoApproveEligible bool
}

// CommitTools is the fixed registry spec.md §3 and §4.F name: five actions,
// each with a minimum trust level and auto-approve eligibility.
// send_invoice and mark_checkpoint_complete are never auto-approvable;
// send_invoice alone requires L4.
var CommitTools = map[CommitToolName]CommitToolSpec{
	CommitApplyChanges: {
		Name: CommitApplyChanges, ActionType: "apply_changes",
		MinTrustLevel: L3, Risk: RiskHigh, AutoApproveEligible: true,
	},
	CommitPublishDailyBrief: {
		Name: CommitPublishDailyBrief, ActionType: "publish_daily_brief",
		MinTrustLevel: L3, Risk: RiskHigh, AutoApproveEligible: true,
	},
	CommitPostAlert: {
		Name: CommitPostAlert, ActionType: "post_alert",
		MinTrustLevel: L3, Risk: RiskHigh, AutoApproveEligible: true,
	},
	CommitMarkCheckpointComplete: {
		Name: CommitMarkCheckpointComplete, ActionType: "mark_checkpoint_complete",
		MinTrustLevel: L3, Risk: RiskHigh, AutoApproveEligible: false,
	},
	CommitSendInvoice: {
		Name: CommitSendInvoice, ActionType: "send_invoice",
		MinTrustLevel: L4, Risk: RiskCritical, AutoApproveEligible: false,
	},
}

// IsCommitTool reports whether name identifies one of the five fixed commit
// actions.
func IsCommitTool(name string) bool {
	_, ok := CommitTools[CommitToolName(name)]
	return ok
}

// CommitToolSpecFor returns the spec for name, if it is a commit tool.
func CommitToolSpecFor(name string) (CommitToolSpec, bool) {
	s, ok := CommitTools[CommitToolName(name)]
	return s, ok
}
