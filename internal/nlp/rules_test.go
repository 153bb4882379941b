package nlp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRulePassSystemStatus(t *testing.T) {
	cmd, ok := runRules("how is my system")
	require.True(t, ok)
	require.Equal(t, IntentSystemStatus, cmd.Intent)
	require.Equal(t, "system_status", cmd.Tool)
}

func TestRulePassPackageInstall(t *testing.T) {
	cmd, ok := runRules("install ripgrep")
	require.True(t, ok)
	require.Equal(t, IntentPackageManagement, cmd.Intent)
	require.Equal(t, "ripgrep", cmd.Arguments["package"])
	require.Equal(t, false, cmd.Arguments["confirm"])
}

func TestRulePassPackageUpdate(t *testing.T) {
	cmd, ok := runRules("update")
	require.True(t, ok)
	require.Equal(t, IntentPackageManagement, cmd.Intent)
	require.Equal(t, "update", cmd.Arguments["action"])
}

func TestRulePassDockerDiagnose(t *testing.T) {
	cmd, ok := runRules("diagnose webserver")
	require.True(t, ok)
	require.Equal(t, IntentDockerManagement, cmd.Intent)
	require.Equal(t, "diagnose", cmd.Arguments["action"])
	require.Equal(t, "webserver", cmd.Arguments["target"])
}

func TestRulePassDockerWhyIs(t *testing.T) {
	cmd, ok := runRules("why is webserver crashing")
	require.True(t, ok)
	require.Equal(t, IntentDockerManagement, cmd.Intent)
	require.Equal(t, "webserver", cmd.Arguments["target"])
}

func TestRulePassDockerLogsFor(t *testing.T) {
	cmd, ok := runRules("logs for webserver")
	require.True(t, ok)
	require.Equal(t, "logs", cmd.Arguments["action"])
}

func TestRulePassVMList(t *testing.T) {
	cmd, ok := runRules("list vms")
	require.True(t, ok)
	require.Equal(t, IntentVMManagement, cmd.Intent)
	require.Equal(t, "vm-list", cmd.Arguments["action"])
}

func TestRulePassVMStart(t *testing.T) {
	cmd, ok := runRules("start vm builder")
	require.True(t, ok)
	require.Equal(t, "vm-start", cmd.Arguments["action"])
	require.Equal(t, "builder", cmd.Arguments["target"])
}

func TestRulePassUnrecognized(t *testing.T) {
	_, ok := runRules("tell me a joke")
	require.False(t, ok)
}

func TestRulePassIsFast(t *testing.T) {
	start := time.Now()
	for i := 0; i < 1000; i++ {
		runRules("install ripgrep")
	}
	elapsed := time.Since(start)
	require.Less(t, elapsed/1000, time.Millisecond)
}

func TestSuggestionsAlwaysPresent(t *testing.T) {
	for _, intent := range []Intent{IntentSystemStatus, IntentPackageManagement, IntentDockerManagement, IntentVMManagement, IntentUnknown} {
		s := suggestionsFor(intent)
		require.GreaterOrEqual(t, len(s), 2)
		require.LessOrEqual(t, len(s), 4)
	}
}
