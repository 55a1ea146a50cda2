package optimize

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectivesDominates(t *testing.T) {
	a := Objectives{Automation: 0.5, Precision: 0.9, Recall: 0.9}

	assert.True(t, a.Dominates(Objectives{Automation: 0.4, Precision: 0.9, Recall: 0.9}))
	assert.True(t, a.Dominates(Objectives{Automation: 0.4, Precision: 0.8, Recall: 0.8}))

	// Equal vectors do not dominate each other.
	assert.False(t, a.Dominates(a))

	// Trade-offs in either direction are incomparable.
	b := Objectives{Automation: 0.6, Precision: 0.8, Recall: 0.9}
	assert.False(t, a.Dominates(b))
	assert.False(t, b.Dominates(a))
}

func TestFrontAdd(t *testing.T) {
	f := &Front{}

	ok := f.Add(Trial{Seq: 0, Objectives: Objectives{Automation: 0.5, Precision: 0.9, Recall: 0.9}, Status: TrialOK})
	assert.True(t, ok)
	assert.Equal(t, 1, f.Size())

	// Dominated by the incumbent: rejected.
	ok = f.Add(Trial{Seq: 1, Objectives: Objectives{Automation: 0.4, Precision: 0.8, Recall: 0.8}, Status: TrialOK})
	assert.False(t, ok)
	assert.Equal(t, 1, f.Size())

	// Incomparable: both stay.
	ok = f.Add(Trial{Seq: 2, Objectives: Objectives{Automation: 0.7, Precision: 0.7, Recall: 0.9}, Status: TrialOK})
	assert.True(t, ok)
	assert.Equal(t, 2, f.Size())

	// Dominates both incumbents: front collapses to one.
	ok = f.Add(Trial{Seq: 3, Objectives: Objectives{Automation: 0.8, Precision: 0.95, Recall: 0.95}, Status: TrialOK})
	assert.True(t, ok)
	assert.Equal(t, 1, f.Size())
	assert.Equal(t, 3, f.Trials()[0].Seq)
}

func TestFrontRejectsFailedTrials(t *testing.T) {
	f := &Front{}
	ok := f.Add(Trial{Seq: 0, Objectives: Objectives{Automation: 1, Precision: 1, Recall: 1}, Status: TrialFailed})
	assert.False(t, ok)
	assert.Equal(t, 0, f.Size())
}

func TestFrontTrialsSortedBySeq(t *testing.T) {
	f := &Front{}
	f.Add(Trial{Seq: 5, Objectives: Objectives{Automation: 0.1, Precision: 0.9, Recall: 0.5}, Status: TrialOK})
	f.Add(Trial{Seq: 2, Objectives: Objectives{Automation: 0.9, Precision: 0.1, Recall: 0.5}, Status: TrialOK})
	f.Add(Trial{Seq: 9, Objectives: Objectives{Automation: 0.5, Precision: 0.5, Recall: 0.9}, Status: TrialOK})

	trials := f.Trials()
	assert.Equal(t, []int{2, 5, 9}, []int{trials[0].Seq, trials[1].Seq, trials[2].Seq})
}

// TestFrontNonDominatedInvariant streams random trials through the front
// and checks no pair of survivors dominates another.
func TestFrontNonDominatedInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	f := &Front{}
	for i := 0; i < 500; i++ {
		f.Add(Trial{
			Seq:        i,
			Objectives: Objectives{Automation: rng.Float64(), Precision: rng.Float64(), Recall: rng.Float64()},
			Status:     TrialOK,
		})
	}

	trials := f.Trials()
	assert.NotEmpty(t, trials)
	for i := range trials {
		for j := range trials {
			if i == j {
				continue
			}
			assert.False(t, trials[i].Objectives.Dominates(trials[j].Objectives),
				"trial %d dominates trial %d but both survived", trials[i].Seq, trials[j].Seq)
		}
	}
}
