package workspaceutils

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	ideclient "github.com/ghostline-dev/ghostline/src/ghostline/gateway/ide-client"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/executor"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/fs"
	"go.lsp.dev/protocol"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:generate mockgen -destination workspaceutilsmock/utils_mock.go -package workspaceutilsmock . WorkspaceUtils

// Module provides a new WorkspaceUtils.
var Module = fx.Provide(New)

// WorkspaceUtils is a utility interface for getting workspace related information.
type WorkspaceUtils interface {
	GetWorkspaceRoot(ctx context.Context, workspaceFolders []protocol.WorkspaceFolder) (string, error)
	GetRepoName(ctx context.Context, dir string) (string, error)
	// ListTrackedFiles returns the paths tracked by git under dir, relative to dir.
	ListTrackedFiles(ctx context.Context, dir string) ([]string, error)
}

// Params are the parameters required to create a new WorkspaceUtils.
type Params struct {
	fx.In

	IdeGateway ideclient.Gateway
	Logger     *zap.SugaredLogger
	FS         fs.GhostlineFS
	Executor   executor.Executor
}

type workspaceUtilsImpl struct {
	ideGateway ideclient.Gateway
	logger     *zap.SugaredLogger
	fs         fs.GhostlineFS
	executor   executor.Executor
}

// New creates a new WorkspaceUtils.
func New(p Params) WorkspaceUtils {
	return &workspaceUtilsImpl{
		ideGateway: p.IdeGateway,
		logger:     p.Logger,
		fs:         p.FS,
		executor:   p.Executor,
	}
}

// GetWorkspaceRoot resolves the root shared by the workspace folders.
// The git top level is preferred. A folder outside of any repository is used as is.
func (c *workspaceUtilsImpl) GetWorkspaceRoot(ctx context.Context, workspaceFolders []protocol.WorkspaceFolder) (string, error) {
	if len(workspaceFolders) == 0 {
		return "", fmt.Errorf("no workspace folders provided")
	}

	result := ""
	for _, folder := range workspaceFolders {
		// code-workspace files may contain improperly formatted or nonexistent folders.
		fileSystemPath, err := url.Parse(folder.URI)
		if err != nil {
			continue
		}

		root, err := c.rootForFolder(fileSystemPath.Path)
		if err != nil {
			continue
		}

		if result == "" {
			result = root
		} else if result != root {
			msg := fmt.Sprintf("Workspace root is %q, but a folder in %q is also included. Ghostline only gathers context from %q.", result, root, result)
			c.ideGateway.ShowMessage(ctx, &protocol.ShowMessageParams{
				Type:    protocol.MessageTypeWarning,
				Message: msg,
			})
			c.logger.Warn(msg)
			break
		}
	}

	if result == "" {
		folderStrings := []string{}
		for _, folder := range workspaceFolders {
			folderStrings = append(folderStrings, folder.URI)
		}

		return "", fmt.Errorf("unable to determine a workspace root among the following searched folders: %v", strings.Join(folderStrings, ", "))
	}

	return result, nil
}

func (c *workspaceUtilsImpl) rootForFolder(folder string) (string, error) {
	if out, err := c.fs.WorkspaceRoot(folder); err == nil && len(strings.TrimSpace(string(out))) > 0 {
		return strings.TrimSpace(string(out)), nil
	}

	exists, err := c.fs.DirExists(folder)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("folder %q does not exist", folder)
	}
	return filepath.Clean(folder), nil
}

func (c *workspaceUtilsImpl) GetRepoName(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "remote", "get-url", "origin")
	cmd.Dir = dir

	stdout, _, _, err := c.executor.Run(cmd)
	if err != nil {
		return "", fmt.Errorf("getting git remote url: %w", err)
	}

	repoRemoteURL := strings.TrimSpace(stdout)
	c.logger.Infof("git remote url: %s", repoRemoteURL)
	return repoNameFromRemote(repoRemoteURL)
}

// repoNameFromRemote extracts "org/repo" from https and scp-like remote urls.
func repoNameFromRemote(remote string) (string, error) {
	trimmed := strings.TrimSuffix(strings.TrimSuffix(remote, "/"), ".git")

	var repoPath string
	if strings.Contains(trimmed, "://") {
		u, err := url.Parse(trimmed)
		if err != nil {
			return "", fmt.Errorf("invalid git remote url %q: %w", remote, err)
		}
		repoPath = u.Path
	} else {
		segments := strings.Split(trimmed, ":")
		if len(segments) != 2 {
			return "", fmt.Errorf("invalid git remote url: %s", remote)
		}
		repoPath = segments[1]
	}

	repoPath = strings.Trim(path.Clean("/"+repoPath), "/")
	if repoPath == "" {
		return "", fmt.Errorf("invalid git remote url: %s", remote)
	}
	return repoPath, nil
}

func (c *workspaceUtilsImpl) ListTrackedFiles(ctx context.Context, dir string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = dir

	stdout, stderr, _, err := c.executor.Run(cmd)
	if err != nil {
		return nil, fmt.Errorf("listing tracked files in %q: %w: %s", dir, err, strings.TrimSpace(stderr))
	}

	var files []string
	for _, line := range strings.Split(stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}
