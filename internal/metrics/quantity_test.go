package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCPU(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"2", 2000},
		{"2000m", 2000},
		{"250m", 250},
		{"0.5", 500},
		{"1.25", 1250},
		{"0", 0},
		{" 4 ", 4000},
		{"0.0001", 0},
		{"0.0019", 1},
		{"1500u", 1},
	}
	for _, tt := range tests {
		got, err := ParseCPU(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseCPU_EquivalentUnits(t *testing.T) {
	cores, err := ParseCPU("2")
	require.NoError(t, err)
	milli, err := ParseCPU("2000m")
	require.NoError(t, err)
	assert.Equal(t, cores, milli)
}

func TestParseMemory(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1Mi", 1},
		{"1024Ki", 1},
		{"1536Ki", 1},
		{"512Mi", 512},
		{"2Gi", 2048},
		{"1048576", 1},
		{"2097151", 1},
		{"500M", 476},
		{"0", 0},
		{"0.5", 0},
		{"1048575", 0},
	}
	for _, tt := range tests {
		got, err := ParseMemory(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseMemory_EquivalentUnits(t *testing.T) {
	ki, err := ParseMemory("1024Ki")
	require.NoError(t, err)
	mi, err := ParseMemory("1Mi")
	require.NoError(t, err)
	assert.Equal(t, ki, mi)
}

func TestParseQuantity_Malformed(t *testing.T) {
	for _, in := range []string{"", "abc", "12Zi", "-1", "1.2.3"} {
		_, err := ParseCPU(in)
		assert.True(t, errors.Is(err, ErrMalformedQuantity), "cpu %q: %v", in, err)

		_, err = ParseMemory(in)
		assert.True(t, errors.Is(err, ErrMalformedQuantity), "memory %q: %v", in, err)
	}
}
