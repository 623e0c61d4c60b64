package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator(75, []string{"51804", "51803"})
	require.NoError(t, err)
	return v
}

func TestCheckFormat(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		id   string
		want bool
	}{
		{"518040000806", true},
		{"518031234567", true},
		{"518050000806", false},
		{"12345", false},
		{"51804000080", false},
		{"5180400008061", false},
		{"51804000080A", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, v.CheckFormat(tt.id), tt.id)
	}
}

func TestParseLines_TrimsAndDropsBlank(t *testing.T) {
	v := newTestValidator(t)

	batch := v.ParseLines("  518040000806 \r\n\n\t\n12345\n   \n518031234567")

	assert.False(t, batch.Rejected)
	assert.Equal(t, []string{"518040000806", "12345", "518031234567"}, batch.Lines)
}

func TestParseLines_Empty(t *testing.T) {
	v := newTestValidator(t)

	batch := v.ParseLines(" \n \n")

	assert.False(t, batch.Rejected)
	assert.Empty(t, batch.Lines)
}

func TestParseLines_LimitBoundary(t *testing.T) {
	v := newTestValidator(t)

	atLimit := v.ParseLines(strings.Repeat("518040000806\n", 75))
	assert.False(t, atLimit.Rejected)
	assert.Len(t, atLimit.Lines, 75)

	overLimit := v.ParseLines(strings.Repeat("518040000806\n", 76))
	assert.True(t, overLimit.Rejected)
	assert.Len(t, overLimit.Lines, 76)
}

func TestNewValidator_RejectsBadConfig(t *testing.T) {
	_, err := NewValidator(0, []string{"51804"})
	assert.Error(t, err)

	_, err = NewValidator(75, nil)
	assert.Error(t, err)

	_, err = NewValidator(75, []string{"5180X"})
	assert.Error(t, err)

	_, err = NewValidator(75, []string{"51804", "518"})
	assert.Error(t, err)
}
