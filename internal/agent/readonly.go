package agent

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"

	"steward/internal/sandbox"
)

// Read-only tools run directly: they cannot mutate anything, so they skip
// the approval pipeline entirely. They are still confined to the allowlist.

// ReadFileInput parameters for read_file
type ReadFileInput struct {
	Path   string `json:"path" jsonschema:"required,description=Path to the file"`
	Offset int    `json:"offset" jsonschema:"description=Starting line number (0-based)"`
	Limit  int    `json:"limit" jsonschema:"description=Maximum number of lines to read"`
}

// ReadFileOutput result of read_file
type ReadFileOutput struct {
	Content    string `json:"content"`
	TotalLines int    `json:"total_lines"`
}

type readFileToolImpl struct {
	allowlist *sandbox.Allowlist
}

func (t *readFileToolImpl) execute(ctx context.Context, input *ReadFileInput) (*ReadFileOutput, error) {
	path, err := t.allowlist.Resolve(input.Path)
	if err != nil {
		return nil, err
	}
	if !t.allowlist.Contains(path) {
		return nil, fmt.Errorf("access denied: %q is outside the workspace", input.Path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(data), "\n")
	totalLines := len(lines)

	if input.Offset > 0 {
		if input.Offset >= len(lines) {
			lines = []string{}
		} else {
			lines = lines[input.Offset:]
		}
	}
	if input.Limit > 0 && input.Limit < len(lines) {
		lines = lines[:input.Limit]
	}

	return &ReadFileOutput{
		Content:    strings.Join(lines, "\n"),
		TotalLines: totalLines,
	}, nil
}

// NewReadFileTool creates the read_file tool
func NewReadFileTool(allowlist *sandbox.Allowlist) (tool.InvokableTool, error) {
	impl := &readFileToolImpl{allowlist: allowlist}
	return utils.InferTool("read_file", "Read the contents of a file", impl.execute)
}

// ListDirInput parameters for list_dir
type ListDirInput struct {
	Path string `json:"path" jsonschema:"description=Directory to list; workspace root when omitted"`
}

// ListDirOutput result of list_dir
type ListDirOutput struct {
	Entries []string `json:"entries"`
}

type listDirToolImpl struct {
	allowlist *sandbox.Allowlist
}

func (t *listDirToolImpl) execute(ctx context.Context, input *ListDirInput) (*ListDirOutput, error) {
	target := input.Path
	if strings.TrimSpace(target) == "" {
		target = t.allowlist.Primary()
	}
	path, err := t.allowlist.Resolve(target)
	if err != nil {
		return nil, err
	}
	if !t.allowlist.Contains(path) {
		return nil, fmt.Errorf("access denied: %q is outside the workspace", input.Path)
	}

	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	entries := make([]string, 0, len(dirEntries))
	for _, e := range dirEntries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		entries = append(entries, name)
	}
	sort.Strings(entries)

	return &ListDirOutput{Entries: entries}, nil
}

// NewListDirTool creates the list_dir tool
func NewListDirTool(allowlist *sandbox.Allowlist) (tool.InvokableTool, error) {
	impl := &listDirToolImpl{allowlist: allowlist}
	return utils.InferTool("list_dir", "List the entries of a directory", impl.execute)
}
