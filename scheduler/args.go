package scheduler

import (
	"strconv"

	"github.com/dazedpro/claude-cli-proxy/types"
)

// buildArgs constructs the downstream CLI's argument vector per spec §4.4.
func buildArgs(req types.Request, cfg types.Config) []string {
	args := []string{
		"-p", req.Prompt,
		"--output-format", "json",
		"--max-turns", strconv.Itoa(req.MaxTurns),
		"--permission-mode", cfg.PermissionMode,
	}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	if req.SystemPrompt != "" {
		args = append(args, "--system-prompt", req.SystemPrompt)
	}
	return args
}
