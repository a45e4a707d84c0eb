package container

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	containertypes "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/kitamorio/galley/internal/executor"
	"github.com/kitamorio/galley/internal/model"
)

// workspacePath is where the recipe's host directory is mounted inside
// the container. Fixed so recipe commands can rely on it.
const workspacePath = "/workspace"

// Runner executes recipes in one-shot containers. It implements
// executor.ContainerRunner.
type Runner struct {
	cli *Client

	// Verbose, when non-nil, receives debug/trace messages.
	Verbose func(format string, args ...interface{})
}

// NewRunner creates a Runner on top of an established Docker client.
func NewRunner(cli *Client) *Runner {
	return &Runner{cli: cli}
}

// Run creates, starts, and waits for a recipe container, streaming its
// output to the request's writers. The container is force-removed on
// return regardless of outcome, so only hard interruptions (SIGKILL,
// daemon restarts) leave strays for "galley prune".
//
// Returns the container process exit code, or an error if the container
// could not be launched at all.
func (r *Runner) Run(ctx context.Context, req executor.ContainerRequest) (int, error) {
	id, err := r.create(ctx, req)
	if err != nil {
		return -1, err
	}
	// Removal uses a fresh context: the run context is likely already
	// cancelled when we get here via Ctrl-C.
	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), defaultPingTimeout)
		defer cancel()
		_ = r.cli.Inner().ContainerRemove(removeCtx, id, containertypes.RemoveOptions{Force: true})
	}()

	if err := r.cli.Inner().ContainerStart(ctx, id, containertypes.StartOptions{}); err != nil {
		return -1, model.WrapCLIError(model.ExitContainerError,
			fmt.Sprintf("failed to start container for recipe %q", req.Recipe), err)
	}
	r.verbose("Started container %s for recipe %q (image %s)", shortID(id), req.Recipe, req.Image)

	// Stream logs while the container runs. Docker multiplexes stdout
	// and stderr over one stream; stdcopy demultiplexes them.
	logs, err := r.cli.Inner().ContainerLogs(ctx, id, containertypes.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err == nil {
		defer logs.Close()
		go func() {
			_, _ = stdcopy.StdCopy(req.Stdout, req.Stderr, logs)
		}()
	}

	// WaitConditionNotRunning resolves as soon as the process exits,
	// before removal.
	statusCh, errCh := r.cli.Inner().ContainerWait(ctx, id, containertypes.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return -1, model.WrapCLIError(model.ExitContainerError,
			fmt.Sprintf("failed waiting for recipe %q container", req.Recipe), err)
	case status := <-statusCh:
		return int(status.StatusCode), nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

// create builds the container for a request, pulling the image first if
// the daemon does not have it locally.
func (r *Runner) create(ctx context.Context, req executor.ContainerRequest) (string, error) {
	config := &containertypes.Config{
		Image:      req.Image,
		Cmd:        append(append([]string(nil), req.Shell...), req.Command),
		Env:        req.Env,
		WorkingDir: workspacePath,
		Labels:     BuildLabels(req.Recipe, req.Workdir),
	}
	hostConfig := &containertypes.HostConfig{
		Binds: []string{req.Workdir + ":" + workspacePath},
	}

	created, err := r.cli.Inner().ContainerCreate(ctx, config, hostConfig, nil, nil, "")
	if err == nil {
		return created.ID, nil
	}
	if !client.IsErrNotFound(err) {
		return "", model.WrapCLIError(model.ExitContainerError,
			fmt.Sprintf("failed to create container for recipe %q", req.Recipe), err)
	}

	// Image not present locally — pull it and retry once.
	r.verbose("Pulling image %s...", req.Image)
	pull, pullErr := r.cli.Inner().ImagePull(ctx, req.Image, image.PullOptions{})
	if pullErr != nil {
		return "", model.WrapCLIError(model.ExitContainerError,
			fmt.Sprintf("failed to pull image %q", req.Image), pullErr)
	}
	// The pull only completes once its progress stream is drained.
	_, _ = io.Copy(io.Discard, pull)
	_ = pull.Close()

	created, err = r.cli.Inner().ContainerCreate(ctx, config, hostConfig, nil, nil, "")
	if err != nil {
		return "", model.WrapCLIError(model.ExitContainerError,
			fmt.Sprintf("failed to create container for recipe %q", req.Recipe), err)
	}
	return created.ID, nil
}

// StrayInfo describes a leftover galley container found by ListStrays.
type StrayInfo struct {
	// ID is the full container ID.
	ID string `json:"id"`

	// Name is the container name without the API's leading slash.
	Name string `json:"name"`

	// Recipe is the recipe the container was running.
	Recipe string `json:"recipe"`

	// Status is the Docker container state (e.g. "exited", "running").
	Status string `json:"status"`
}

// ListStrays returns all containers carrying the galley management
// label, including stopped ones. In normal operation Run removes its
// container, so anything found here was orphaned by a hard interruption.
func ListStrays(ctx context.Context, cli *Client) ([]StrayInfo, error) {
	// Filtering by label server-side avoids listing unrelated containers.
	filterArgs := filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
	)

	containers, err := cli.Inner().ContainerList(ctx, containertypes.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return nil, model.WrapCLIError(model.ExitContainerError,
			"failed to list containers", err)
	}

	strays := make([]StrayInfo, 0, len(containers))
	for _, c := range containers {
		strays = append(strays, summaryToStray(c))
	}
	return strays, nil
}

// summaryToStray converts a Docker API container summary to a StrayInfo.
// Pure mapping, exported for nothing — tested directly.
func summaryToStray(c types.Container) StrayInfo {
	name := ""
	if len(c.Names) > 0 {
		// The API prefixes names with "/"; strip it for display.
		name = c.Names[0]
		if len(name) > 0 && name[0] == '/' {
			name = name[1:]
		}
	}
	return StrayInfo{
		ID:     c.ID,
		Name:   name,
		Recipe: RecipeName(c.Labels),
		Status: c.State,
	}
}

// Remove force-removes a container by ID.
func Remove(ctx context.Context, cli *Client, id string) error {
	if err := cli.Inner().ContainerRemove(ctx, id, containertypes.RemoveOptions{Force: true}); err != nil {
		return model.WrapCLIError(model.ExitContainerError,
			fmt.Sprintf("failed to remove container %s", shortID(id)), err)
	}
	return nil
}

// shortID trims a container ID to the familiar 12-character form.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func (r *Runner) verbose(format string, args ...interface{}) {
	if r.Verbose != nil {
		r.Verbose(format, args...)
	}
}
