package primitive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spiral/pkg/ir"
)

func TestEffectLogOrdersEntriesBySequence(t *testing.T) {
	l := NewEffectLog()
	l.Append("t1", "io:readLine", nil, ir.NewString("a"))
	l.Append("t2", "io:readLine", nil, ir.NewString("b"))
	l.Append("t1", "io:readLine", nil, ir.NewString("c"))

	all := l.All()
	require.Len(t, all, 3)
	assert.Equal(t, 0, all[0].Seq)
	assert.Equal(t, 1, all[1].Seq)
	assert.Equal(t, 2, all[2].Seq)
}

func TestEffectLogForTaskFiltersAndPreservesOrder(t *testing.T) {
	l := NewEffectLog()
	l.Append("t1", "io:readLine", nil, ir.NewString("a"))
	l.Append("t2", "io:readLine", nil, ir.NewString("b"))
	l.Append("t1", "io:readLine", nil, ir.NewString("c"))

	t1 := l.ForTask("t1")
	require.Len(t, t1, 2)
	assert.Equal(t, "a", t1[0].Result.Str)
	assert.Equal(t, "c", t1[1].Result.Str)
}

func TestEffectLogDiscardTaskRemovesOnlyThatTasksEntries(t *testing.T) {
	l := NewEffectLog()
	l.Append("t1", "io:readLine", nil, ir.NewString("a"))
	l.Append("t2", "io:readLine", nil, ir.NewString("b"))

	l.DiscardTask("t1")

	all := l.All()
	require.Len(t, all, 1)
	assert.Equal(t, "t2", all[0].TaskID)
}
