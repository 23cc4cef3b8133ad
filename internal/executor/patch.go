package executor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	targetFileMode = 0644
	targetDirMode  = 0755
)

// applyUnifiedPatch applies a diffmatchpatch-format patch to the file at
// path and writes the result atomically. If any hunk fails to apply, the
// target is left untouched and an error is returned.
func applyUnifiedPatch(path, diffText string) (string, error) {
	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(diffText)
	if err != nil {
		return "", fmt.Errorf("parse patch: %w", err)
	}
	if len(patches) == 0 {
		return "", fmt.Errorf("patch is empty")
	}

	original := ""
	if data, err := os.ReadFile(path); err == nil {
		original = string(data)
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read patch target: %w", err)
	}

	updated, applied := dmp.PatchApply(patches, original)
	for i, ok := range applied {
		if !ok {
			return "", fmt.Errorf("patch hunk %d of %d does not apply cleanly", i+1, len(applied))
		}
	}

	if err := writeFileAtomic(path, []byte(updated)); err != nil {
		return "", err
	}
	return fmt.Sprintf("applied %d patch hunks to %s", len(applied), path), nil
}

// writeFileAtomic writes content to a temp file in the target directory and
// renames it into place, so a crash mid-write never leaves a partial target.
func writeFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, targetDirMode); err != nil {
		return fmt.Errorf("create target dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".steward-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(content); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Chmod(targetFileMode); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace target file: %w", err)
	}
	return nil
}

// MakePatch renders the diffmatchpatch text for turning before into after.
// The agent uses it to build FilePatch payloads and the prompter to preview
// them.
func MakePatch(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.PatchToText(dmp.PatchMake(before, diffs))
}
