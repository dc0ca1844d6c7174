package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/kiln/internal/core/domain"
)

func TestUnitStatus(t *testing.T) {
	tests := []struct {
		name       string
		status     domain.UnitStatus
		isTerminal bool
	}{
		{"Pending", domain.UnitStatusPending, false},
		{"Running", domain.UnitStatusRunning, false},
		{"Fresh", domain.UnitStatusFresh, true},
		{"Compiled", domain.UnitStatusCompiled, true},
		{"Failed", domain.UnitStatusFailed, true},
		{"Skipped", domain.UnitStatusSkipped, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.isTerminal, tt.status.IsTerminal())
		})
	}
}

func TestNormalizeUnitStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected domain.UnitStatus
	}{
		{"pending", domain.UnitStatusPending},
		{"PENDING", domain.UnitStatusPending},
		{"fresh", domain.UnitStatusFresh},
		{"compiled", domain.UnitStatusCompiled},
		{"failed", domain.UnitStatusFailed},
		{"skipped", domain.UnitStatusSkipped},
		{"bogus", domain.UnitStatusPending},
		{"", domain.UnitStatusPending},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, domain.NormalizeUnitStatus(tt.input), "input %q", tt.input)
	}
}

func TestBuildReport_Failed(t *testing.T) {
	r := &domain.BuildReport{
		Results: []domain.UnitResult{
			{Unit: "base", Status: domain.UnitStatusFresh},
			{Unit: "app", Status: domain.UnitStatusCompiled},
		},
	}
	assert.False(t, r.Failed())

	r.Results = append(r.Results, domain.UnitResult{Unit: "broken", Status: domain.UnitStatusFailed})
	assert.True(t, r.Failed())
}

func TestBuildReport_Counts(t *testing.T) {
	r := &domain.BuildReport{
		Results: []domain.UnitResult{
			{Unit: "a", Status: domain.UnitStatusFresh},
			{Unit: "b", Status: domain.UnitStatusFresh},
			{Unit: "c", Status: domain.UnitStatusCompiled},
			{Unit: "d", Status: domain.UnitStatusSkipped},
		},
	}
	counts := r.Counts()
	assert.Equal(t, 2, counts[domain.UnitStatusFresh])
	assert.Equal(t, 1, counts[domain.UnitStatusCompiled])
	assert.Equal(t, 1, counts[domain.UnitStatusSkipped])
	assert.Equal(t, 0, counts[domain.UnitStatusFailed])
}
