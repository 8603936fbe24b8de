package eval

import (
	"testing"

	"github.com/stretchr/testify/require"

	"spiral/internal/engineconfig"
	"spiral/internal/obslog"
	"spiral/pkg/effect"
	"spiral/pkg/env"
)

func TestNewEvaluatorFromConfigHonoursMaxSteps(t *testing.T) {
	ops := newOps(t)
	cfg := engineconfig.Default(engineconfig.WithMaxSteps(1))
	ev := NewEvaluatorFromConfig(ops, effect.NewRegistry(), nil, cfg, obslog.Nop())

	e := opCall("math", "add", intLit(1), intLit(2))
	_, err := ev.Eval(e, env.Empty())
	require.Error(t, err)
}

func TestNewEvaluatorFromConfigNilLoggerIsSilent(t *testing.T) {
	ops := newOps(t)
	cfg := engineconfig.Default(engineconfig.WithMaxSteps(1))
	ev := NewEvaluatorFromConfig(ops, effect.NewRegistry(), nil, cfg, nil)

	e := opCall("math", "add", intLit(1), intLit(2))
	_, err := ev.Eval(e, env.Empty())
	require.Error(t, err)
}
