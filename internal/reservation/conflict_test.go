package reservation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConflictDetector(t *testing.T) {
	x := NewIntervalIndex()
	x.Insert("s1", "a", at(10, 0), at(11, 0))
	d := NewConflictDetector(x)

	tests := []struct {
		name      string
		start     int
		end       int
		exclude   string
		wantIDs   []string
		wantError error
	}{
		{name: "overlap at the tail", start: 1030, end: 1130, wantIDs: []string{"a"}},
		{name: "contained", start: 1015, end: 1045, wantIDs: []string{"a"}},
		{name: "touching end", start: 1100, end: 1200},
		{name: "touching start", start: 900, end: 1000},
		{name: "self excluded", start: 1030, end: 1130, exclude: "a"},
		{name: "zero length", start: 1200, end: 1200, wantError: ErrInvalidTimeRange},
		{name: "reversed", start: 1300, end: 1200, wantError: ErrInvalidTimeRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := d.Check("s1", at(tt.start/100, tt.start%100), at(tt.end/100, tt.end%100), tt.exclude)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				assert.Nil(t, decision)
				return
			}
			require.NoError(t, err)
			if tt.wantIDs == nil {
				assert.Equal(t, Accept{}, decision)
				return
			}
			assert.Equal(t, Reject{ConflictingIDs: tt.wantIDs}, decision)
		})
	}
}
