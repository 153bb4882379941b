package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jarvis-hq/jarvis/internal/jerr"
)

func echoTool() Tool {
	return Tool{
		Descriptor: Descriptor{
			Name: "echo",
			Args: []ArgSpec{{Name: "text", Kind: ArgString, Required: true}},
		},
		Risk: RiskReadonly,
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			return Result{Text: args["text"].(string)}, nil
		},
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool()))
	err := r.Register(echoTool())
	require.True(t, jerr.Is(err, jerr.Duplicate))
}

func TestCallUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Call(context.Background(), "missing", nil)
	require.True(t, jerr.Is(err, jerr.NotFound))
}

func TestCallRejectsUnknownArgument(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool()))
	_, err := r.Call(context.Background(), "echo", map[string]any{"text": "hi", "bogus": 1})
	require.True(t, jerr.Is(err, jerr.BadArgs))
}

func TestCallRejectsMissingRequired(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool()))
	_, err := r.Call(context.Background(), "echo", map[string]any{})
	require.True(t, jerr.Is(err, jerr.BadArgs))
}

func TestCallSucceeds(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool()))
	res, err := r.Call(context.Background(), "echo", map[string]any{"text": "hi"})
	require.NoError(t, err)
	require.Equal(t, "hi", res.Text)
	require.Equal(t, StateCompleted, res.State)
}

func TestCallWithCancelTimesOut(t *testing.T) {
	r := NewRegistry()
	slow := Tool{
		Descriptor: Descriptor{Name: "slow"},
		Risk:       RiskReadonly,
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			select {
			case <-time.After(time.Second):
				return Result{}, nil
			case <-ctx.Done():
				return Result{}, ctx.Err()
			}
		},
	}
	require.NoError(t, r.Register(slow))
	_, err := r.CallWithCancel(context.Background(), "slow", nil, 10*time.Millisecond)
	require.True(t, jerr.Is(err, jerr.Timeout))
}

func TestDescribeReturnsRegisteredTool(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool()))

	tool, ok := r.Describe("echo")
	require.True(t, ok)
	require.Equal(t, RiskReadonly, tool.Risk)

	_, ok = r.Describe("missing")
	require.False(t, ok)
}

func TestClassifyCommandRisk(t *testing.T) {
	require.Equal(t, RiskReadonly, ClassifyCommandRisk("ls -la /tmp"))
	require.Equal(t, RiskReadonly, ClassifyCommandRisk("docker ps"))
	require.Equal(t, RiskMutating, ClassifyCommandRisk("docker start mycontainer"))
	require.Equal(t, RiskDangerous, ClassifyCommandRisk("rm -rf /"))
	require.Equal(t, RiskMutating, ClassifyCommandRisk("sed -i s/a/b/ file.txt"))
}
