package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadHash(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, headHash(dir), "no repository yet")

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	assert.Empty(t, headHash(dir), "no commit yet")

	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fib.bin"), []byte{0x03}, 0o644))
	_, err = wt.Add("fib.bin")
	require.NoError(t, err)
	commit, err := wt.Commit("add image", &git.CommitOptions{
		Author: &object.Signature{Name: "jasm", Email: "jasm@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	assert.Equal(t, commit.String(), headHash(sub), "parent repositories are detected")
	assert.Equal(t, commit.String()[:8], shortHash(headHash(dir)))
}
