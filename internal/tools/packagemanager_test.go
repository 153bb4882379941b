package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackageManagerRequiresConfirmForInstall(t *testing.T) {
	res, err := packageManagerHandler(context.Background(), map[string]any{
		"action": "install", "package": "htop",
	})
	require.NoError(t, err)
	require.Contains(t, res.Text, "Would run")
	require.Contains(t, res.Text, "confirm=true")
}

func TestPackageManagerInstallPreviewMatchesSudoCommand(t *testing.T) {
	res, err := packageManagerHandler(context.Background(), map[string]any{
		"action": "install", "package": "docker", "confirm": false,
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Contains(t, res.Text, "sudo pacman -S docker")
}

func TestPackageManagerRequiresPackageForInstall(t *testing.T) {
	_, err := packageManagerHandler(context.Background(), map[string]any{
		"action": "install",
	})
	require.Error(t, err)
}

func TestPackageManagerSearchIsReadonly(t *testing.T) {
	res, err := packageManagerHandler(context.Background(), map[string]any{
		"action": "search", "package": "htop",
	})
	// search executes a real pacman binary; in a test sandbox that may fail,
	// but it must not be confirm-gated.
	require.NoError(t, err)
	require.NotContains(t, res.Text, "Would run")
}
