package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spiral/internal/engineconfig"
	"spiral/pkg/ir"
)

func TestNewFromConfigDefaultIsEager(t *testing.T) {
	s := NewFromConfig(engineconfig.Default())
	require.NoError(t, s.Spawn("t1", func() (*ir.Value, error) { return ir.NewInt(1), nil }))
	v, err := s.Await("t1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Int)
}

func TestNewFromConfigHonoursDisciplineAndCeiling(t *testing.T) {
	conf := engineconfig.Default(
		engineconfig.WithDiscipline(engineconfig.Sequential),
		engineconfig.WithMaxSchedulerSteps(1),
	)
	s := NewFromConfig(conf)
	require.NoError(t, s.Spawn("t1", func() (*ir.Value, error) { return ir.NewInt(1), nil }))
	require.NoError(t, s.Spawn("t2", func() (*ir.Value, error) { return ir.NewInt(2), nil }))

	_, err := s.Await("t1")
	require.NoError(t, err)
	_, err = s.Await("t2")
	require.Error(t, err) // second task's tick exceeds the ceiling of 1
}
