package nlp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParserUsesRulePassWithoutRouter(t *testing.T) {
	p := NewParser(nil)
	cmd, err := p.Parse(context.Background(), "list vms")
	require.NoError(t, err)
	require.Equal(t, IntentVMManagement, cmd.Intent)
}

func TestParserUnrecognizedWithoutRouterIsUnknown(t *testing.T) {
	p := NewParser(nil)
	cmd, err := p.Parse(context.Background(), "tell me a joke")
	require.NoError(t, err)
	require.Equal(t, IntentUnknown, cmd.Intent)
}
