package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatio(t *testing.T) {
	r := NewRatio(1000, 4000)
	v, err := r.Get()
	require.NoError(t, err)
	assert.InDelta(t, 0.25, v, 1e-9)
	assert.Equal(t, "0.25", r.String())

	undefined := NewRatio(0, 0)
	_, err = undefined.Get()
	assert.True(t, errors.Is(err, ErrUndefinedRatio))
	assert.Equal(t, "undefined", undefined.String())

	// 超额请求得到负比例，而不是未定义
	negative := NewRatio(-500, 1000)
	v, err = negative.Get()
	require.NoError(t, err)
	assert.Less(t, v, 0.0)
}

func TestPoolResources(t *testing.T) {
	p := NewPoolResources(time.Unix(0, 0))
	p.Add(&NodeResources{NodeName: "n2", Pool: "beta"})
	p.Add(&NodeResources{NodeName: "n3", Pool: "alpha"})
	p.Add(&NodeResources{NodeName: "n1", Pool: "alpha"})

	assert.Equal(t, []string{"alpha", "beta"}, p.PoolNames())
	assert.Equal(t, 3, p.NodeCount())

	nodes := p.Nodes("alpha")
	require.Len(t, nodes, 2)
	assert.Equal(t, "n1", nodes[0].NodeName)
	assert.Equal(t, "n3", nodes[1].NodeName)
	assert.Nil(t, p.Nodes("gamma"))
}
