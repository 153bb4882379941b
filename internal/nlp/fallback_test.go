package nlp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseModelReplyPlainJSON(t *testing.T) {
	payload, ok := parseModelReply(`{"intent":"SystemStatus","tool":"system_status","arguments":{},"confidence":0.9}`)
	require.True(t, ok)
	require.Equal(t, "SystemStatus", payload.Intent)
}

func TestParseModelReplyStripsCodeFence(t *testing.T) {
	payload, ok := parseModelReply("```json\n{\"intent\":\"VMManagement\",\"tool\":\"docker_vm\",\"arguments\":{},\"confidence\":0.7}\n```")
	require.True(t, ok)
	require.Equal(t, "VMManagement", payload.Intent)
}

func TestParseModelReplyExtractsEmbeddedObject(t *testing.T) {
	payload, ok := parseModelReply(`Sure, here you go: {"intent":"PackageManagement","tool":"package_manager","arguments":{"action":"install"},"confidence":0.6} hope that helps`)
	require.True(t, ok)
	require.Equal(t, "PackageManagement", payload.Intent)
	require.Equal(t, "install", payload.Arguments["action"])
}

func TestParseModelReplyRejectsMalformed(t *testing.T) {
	_, ok := parseModelReply("not json at all, sorry")
	require.False(t, ok)
}

func TestExtractFirstJSONObjectIgnoresBracesInStrings(t *testing.T) {
	obj := extractFirstJSONObject(`prefix {"a": "x } y", "b": 1} suffix`)
	require.Equal(t, `{"a": "x } y", "b": 1}`, obj)
}

func TestAskModelWithoutRouterReturnsError(t *testing.T) {
	_, err := askModel(context.Background(), nil, "install ripgrep")
	require.Error(t, err)
}

func TestAskModelUnknownIntentFallsBackToUnknown(t *testing.T) {
	// A reply naming an intent our taxonomy doesn't recognize should
	// resolve to Unknown instead of propagating an unrecognized value.
	payload, ok := parseModelReply(`{"intent":"DoTheLaundry","tool":"","arguments":{},"confidence":0.8}`)
	require.True(t, ok)
	_, known := knownIntents[payload.Intent]
	require.False(t, known)
}
