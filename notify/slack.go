// Package notify sends best-effort operational notifications about
// approval requests. Grounded on kubernaut's use of slack-go/slack for
// operational alerts; a failed notification never blocks approval-request
// creation, matching the audit log's fire-and-forget posture.
package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/kauf3r/agent-trust-layer/approval"
	"github.com/kauf3r/agent-trust-layer/telemetry"
)

// SlackNotifier posts a message to a fixed channel whenever a request
// requiring human sign-off is created.
type SlackNotifier struct {
	client  *slack.Client
	channel string
	logger  telemetry.Logger
}

// NewSlackNotifier constructs a notifier posting to channel using token.
func NewSlackNotifier(token, channel string, logger telemetry.Logger) *SlackNotifier {
	return &SlackNotifier{client: slack.New(token), channel: channel, logger: logger}
}

// NotifyRequestCreated posts a best-effort Slack message describing req. Any
// failure is logged and swallowed; it never surfaces to the caller that
// created the approval request.
func (s *SlackNotifier) NotifyRequestCreated(ctx context.Context, req approval.Request) {
	if s == nil || s.client == nil {
		return
	}
	text := fmt.Sprintf(
		"Approval requested: %s needs sign-off for `%s` (run %s, trust %s, expires %s)",
		req.Requester, req.ActionType, req.RunID, req.TrustLevel.String(), req.ExpiresAt.Format("15:04:05 MST"),
	)
	_, _, err := s.client.PostMessageContext(ctx, s.channel, slack.MsgOptionText(text, false))
	if err != nil && s.logger != nil {
		s.logger.Warn(ctx, "notify: slack post failed", "request_id", req.ID, "error", err)
	}
}
