package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"steward/internal/action"
)

// The mediated vocabulary: tool calls the model may emit that become
// proposed actions. They are bound as tool infos but never execute directly;
// the loop routes them through the mediation pipeline.
const (
	toolShell      = "shell"
	toolWriteFile  = "write_file"
	toolApplyPatch = "apply_patch"
	toolInvokeTool = "invoke_tool"
)

func mediatedToolInfos() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: toolShell,
			Desc: "Run a shell command in the workspace. Output is returned once the command finishes.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"command": {
					Type:     schema.String,
					Desc:     "The command to run",
					Required: true,
				},
				"working_dir": {
					Type: schema.String,
					Desc: "Directory to run in, relative to the workspace root",
				},
			}),
		},
		{
			Name: toolWriteFile,
			Desc: "Create or overwrite a file with the given content.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"path": {
					Type:     schema.String,
					Desc:     "Target file path",
					Required: true,
				},
				"content": {
					Type:     schema.String,
					Desc:     "Full file content",
					Required: true,
				},
			}),
		},
		{
			Name: toolApplyPatch,
			Desc: "Apply a unified diff to an existing file. All hunks must apply cleanly.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"path": {
					Type:     schema.String,
					Desc:     "Target file path",
					Required: true,
				},
				"diff": {
					Type:     schema.String,
					Desc:     "Unified diff to apply",
					Required: true,
				},
			}),
		},
		{
			Name: toolInvokeTool,
			Desc: "Invoke a registered external tool as server.tool with JSON arguments.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"tool": {
					Type:     schema.String,
					Desc:     "Tool name, server.tool form",
					Required: true,
				},
				"args": {
					Type: schema.String,
					Desc: "JSON-encoded arguments",
				},
			}),
		},
	}
}

// isMediated reports whether a tool call must go through the pipeline.
func isMediated(name string) bool {
	switch name {
	case toolShell, toolWriteFile, toolApplyPatch, toolInvokeTool:
		return true
	}
	return false
}

type shellArgs struct {
	Command    string `json:"command"`
	WorkingDir string `json:"working_dir"`
}

type writeFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type applyPatchArgs struct {
	Path string `json:"path"`
	Diff string `json:"diff"`
}

type invokeToolArgs struct {
	Tool string `json:"tool"`
	Args string `json:"args"`
}

// parseProposed converts a mediated tool call into a proposed action.
func parseProposed(tc schema.ToolCall, requestID string) (action.Proposed, error) {
	raw := tc.Function.Arguments
	switch tc.Function.Name {
	case toolShell:
		var args shellArgs
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return action.Proposed{}, fmt.Errorf("shell arguments: %w", err)
		}
		if strings.TrimSpace(args.Command) == "" {
			return action.Proposed{}, fmt.Errorf("shell requires a command")
		}
		return action.Proposed{
			Kind:       action.KindShellExec,
			RequestID:  requestID,
			Command:    args.Command,
			WorkingDir: args.WorkingDir,
		}, nil

	case toolWriteFile:
		var args writeFileArgs
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return action.Proposed{}, fmt.Errorf("write_file arguments: %w", err)
		}
		if strings.TrimSpace(args.Path) == "" {
			return action.Proposed{}, fmt.Errorf("write_file requires a path")
		}
		return action.Proposed{
			Kind:      action.KindFileWrite,
			RequestID: requestID,
			Path:      args.Path,
			Content:   args.Content,
		}, nil

	case toolApplyPatch:
		var args applyPatchArgs
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return action.Proposed{}, fmt.Errorf("apply_patch arguments: %w", err)
		}
		if strings.TrimSpace(args.Path) == "" || strings.TrimSpace(args.Diff) == "" {
			return action.Proposed{}, fmt.Errorf("apply_patch requires path and diff")
		}
		return action.Proposed{
			Kind:      action.KindFilePatch,
			RequestID: requestID,
			Path:      args.Path,
			Diff:      args.Diff,
		}, nil

	case toolInvokeTool:
		var args invokeToolArgs
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return action.Proposed{}, fmt.Errorf("invoke_tool arguments: %w", err)
		}
		if strings.TrimSpace(args.Tool) == "" {
			return action.Proposed{}, fmt.Errorf("invoke_tool requires a tool name")
		}
		return action.Proposed{
			Kind:      action.KindToolInvoke,
			RequestID: requestID,
			Tool:      args.Tool,
			ToolArgs:  args.Args,
		}, nil

	default:
		return action.Proposed{}, fmt.Errorf("unknown mediated tool %q", tc.Function.Name)
	}
}
