package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/task-visualizer/pkg/core/describe"
)

func desc(id int64, name string, running bool, subs ...*describe.Descriptor) *describe.Descriptor {
	return &describe.Descriptor{ID: id, Name: name, Kind: "Test", IsRunning: running, SubCommands: subs}
}

func TestBuild_Tree(t *testing.T) {
	forest := []*describe.Descriptor{
		desc(1, "seq", true, desc(2, "a", true), desc(3, "b", false, desc(4, "c", false))),
		desc(5, "solo", false),
	}

	g, err := Build(forest)
	require.NoError(t, err)

	assert.Len(t, g.Nodes, 5)
	assert.Len(t, g.Edges, 3)
	assert.Equal(t, []string{"1", "5"}, g.Roots)
	assert.Equal(t, []string{"2", "4", "5"}, g.Leaves)
	assert.Equal(t, 2, g.MaxDepth)
	assert.Equal(t, 2, g.Running)

	c, ok := g.Node("4")
	require.True(t, ok)
	assert.Equal(t, 2, c.Depth)
	assert.Equal(t, []string{"3"}, c.Parents)
	assert.Equal(t, int64(4), c.TaskID)

	root, ok := g.Node("1")
	require.True(t, ok)
	assert.Equal(t, []string{"2", "3"}, root.Children)
	assert.Equal(t, "1", g.Nodes[0].Key)
}

func TestBuild_SharedChildBecomesOneNode(t *testing.T) {
	shared := desc(9, "shared", false)
	forest := []*describe.Descriptor{
		desc(1, "left", false, shared),
		desc(2, "right", false, desc(3, "mid", false, desc(9, "shared", true))),
	}

	g, err := Build(forest)
	require.NoError(t, err)

	n, ok := g.Node("9")
	require.True(t, ok)
	assert.Equal(t, []string{"1", "3"}, n.Parents)
	assert.Equal(t, 2, n.Depth)
	assert.True(t, n.IsRunning)
	assert.Len(t, g.Nodes, 4)
}

func TestBuild_DuplicateEdgesAreMerged(t *testing.T) {
	forest := []*describe.Descriptor{
		desc(1, "race", false, desc(2, "x", false), desc(2, "x", false)),
	}
	g, err := Build(forest)
	require.NoError(t, err)
	assert.Len(t, g.Edges, 1)
}

func TestBuild_UnidentifiedNodesKeyedByPath(t *testing.T) {
	forest := []*describe.Descriptor{
		desc(0, "p", false, desc(0, "c1", false), desc(0, "c2", false)),
	}
	g, err := Build(forest)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 3)
	assert.Equal(t, []string{"p0"}, g.Roots)
	assert.Equal(t, []string{"p0/0", "p0/1"}, g.Leaves)
}

func TestBuild_Empty(t *testing.T) {
	g, err := Build(nil)
	require.NoError(t, err)
	assert.Empty(t, g.Nodes)
	assert.NotNil(t, g.Roots)
	assert.NotNil(t, g.Edges)
}

func TestFromPayload(t *testing.T) {
	payload, err := describe.MarshalForest([]*describe.Descriptor{desc(1, "root", true, desc(2, "child", true))})
	require.NoError(t, err)

	g, err := FromPayload(payload)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)
	assert.Equal(t, 1, g.MaxDepth)

	_, err = FromPayload("{broken")
	assert.Error(t, err)
}

func TestBuild_RunningMergeKeepsRelationsResolvable(t *testing.T) {
	// 7先以空闲状态出现，第二次出现时变为运行中
	forest := []*describe.Descriptor{
		desc(1, "proxy", true, desc(7, "intake", false, desc(8, "roller", false))),
		desc(7, "intake", true, desc(8, "roller", true)),
	}

	g, err := Build(forest)
	require.NoError(t, err)

	intake, ok := g.Node("7")
	require.True(t, ok)
	assert.True(t, intake.IsRunning)
	assert.Equal(t, []string{"1"}, intake.Parents)
	assert.Equal(t, []string{"8"}, intake.Children)
	assert.Equal(t, 1, intake.Depth)

	roller, ok := g.Node("8")
	require.True(t, ok)
	assert.Equal(t, []string{"7"}, roller.Parents)
	assert.Equal(t, 2, roller.Depth)
	assert.Equal(t, []string{"1"}, g.Roots)
	assert.Equal(t, 3, g.Running)
}
