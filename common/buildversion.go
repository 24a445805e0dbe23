package common

import (
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
)

// CommitHash returns the short HEAD hash of the git checkout holding the working
// directory or the running executable, or "unknown".
func CommitHash() string {
	if cwd, err := os.Getwd(); err == nil {
		if hash := headHash(cwd); hash != "" {
			return shortHash(hash)
		}
	}
	if exePath, err := os.Executable(); err == nil {
		if hash := headHash(filepath.Dir(exePath)); hash != "" {
			return shortHash(hash)
		}
	}
	return "unknown"
}

func shortHash(h string) string {
	if len(h) >= 8 {
		return h[:8]
	}
	return h
}

func headHash(path string) string {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()
}
