package command

import (
	"context"
	"fmt"
	"log/slog"
)

// ClearCommand implements /clear: drop the conversation context and start a
// fresh session. Prior entries stay on disk behind the session boundary;
// /clearhistory is the store-level variant that only rotates the log.
type ClearCommand struct{}

func (c *ClearCommand) Name() string        { return "clear" }
func (c *ClearCommand) Description() string { return "Reset the conversation and start a new session" }

func (c *ClearCommand) Execute(ctx context.Context, _ string, env Env) Result {
	if env.ClearConversation != nil {
		env.ClearConversation()
	}
	if env.Engine == nil {
		if env.ClearConversation == nil {
			return Result{Content: "No conversation to clear."}
		}
		return Result{Content: "Conversation cleared."}
	}
	newID, err := env.Engine.ClearSession(ctx)
	if err != nil {
		return Result{Content: fmt.Sprintf("Conversation cleared, but session reset failed: %v", err)}
	}
	slog.Info("conversation and session cleared via /clear")
	return Result{Content: fmt.Sprintf("Conversation cleared. New session `%s`.", newID)}
}

// ClearHistoryCommand implements /clearhistory: end the current session and
// starts a fresh one with an empty action log.
type ClearHistoryCommand struct{}

func (c *ClearHistoryCommand) Name() string        { return "clearhistory" }
func (c *ClearHistoryCommand) Description() string { return "Start a fresh session history" }

func (c *ClearHistoryCommand) Execute(ctx context.Context, _ string, env Env) Result {
	if env.Engine == nil {
		return Result{Content: "No active session."}
	}
	newID, err := env.Engine.ClearSession(ctx)
	if err != nil {
		return Result{Content: fmt.Sprintf("Clear failed: %v", err)}
	}
	return Result{Content: fmt.Sprintf("History cleared. New session `%s`.", newID)}
}
