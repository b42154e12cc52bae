// Package rl implements the RL-augmented ILP consolidator (spec.md
// §4.6.6): an epsilon-greedy agent selects hyper-parameters for the ILP
// strategy from a small discrete action space, observes a reward derived
// from the ILP's objective value, and trains on transitions sampled from
// a replay buffer.
//
// No DNN/tensor library appears anywhere in the retrieved corpus, so
// this package defines the narrow Agent contract from spec.md §4.6.6 and
// ships one concrete implementation: a single linear layer (one weight
// row per action) trained by stochastic gradient descent on the
// temporal-difference error, built on gonum/mat. This is the simplest
// thing that actually implements "Q-network" without fabricating a fake
// tensor library.
package rl

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/dcsim/dcsim"
)

// Transition is one (s, a, r, s', terminal) replay-buffer entry.
type Transition struct {
	State     []float64
	Action    int
	Reward    float64
	NextState []float64
	Terminal  bool
}

// Agent is the narrow contract spec.md §4.6.6 requires of the Q-network:
// select_action, store, update, batch_size, epsilon.
type Agent interface {
	SelectAction(state []float64) int
	Store(t Transition)
	Update() error
	BatchSize() int
	Epsilon() float64
}

// Variant selects between the DQN and Double-DQN target computation.
type Variant int

const (
	// DQN bootstraps off the target network's own max.
	DQN Variant = iota
	// DoubleDQN selects the next action with the policy network but
	// evaluates it with the target network, reducing overestimation bias.
	DoubleDQN
)

// LinearQAgentConfig configures LinearQAgent. BundleSize is the ILP base
// strategy's bundle size this agent is tuning hyper-parameters for; it
// has no effect on the Q-function itself but participates in the RNG
// partition so an agent retuned mid-run at a different bundle size draws
// from a distinct stream (see dcsim.PartitionedRNG.ForSubsystem).
type LinearQAgentConfig struct {
	StateDim        int
	NumActions      int
	LearningRate    float64
	Discount        float64
	Epsilon         float64
	EpsilonMin      float64
	EpsilonDecay    float64
	ReplayCapacity  int
	Batch           int
	TargetSyncEvery int
	Variant         Variant
	BundleSize      int
}

// LinearQAgent is a single-linear-layer Q-function: Q(s,a) = w_a . s,
// trained by SGD on the TD error, with a periodically-synced target
// network (spec.md §4.6.6 step 5).
type LinearQAgent struct {
	cfg LinearQAgentConfig

	policy *mat.Dense // NumActions x StateDim
	target *mat.Dense

	buffer     []Transition
	bufferHead int

	updateCount int
	rng         *rand.Rand
}

// NewLinearQAgent creates an agent seeded from key's RL subsystem RNG,
// partitioned by cfg.BundleSize, so action selection and minibatch
// sampling are reproducible for a given SimulationKey and bundle size.
func NewLinearQAgent(key dcsim.SimulationKey, cfg LinearQAgentConfig) *LinearQAgent {
	prng := dcsim.NewPartitionedRNG(key)
	rng := prng.ForSubsystem(dcsim.SubsystemRL, cfg.BundleSize)

	policy := mat.NewDense(cfg.NumActions, cfg.StateDim, nil)
	for i := 0; i < cfg.NumActions; i++ {
		for j := 0; j < cfg.StateDim; j++ {
			policy.Set(i, j, (rng.Float64()*2-1)*0.01)
		}
	}
	target := mat.NewDense(cfg.NumActions, cfg.StateDim, nil)
	target.Copy(policy)

	return &LinearQAgent{cfg: cfg, policy: policy, target: target, rng: rng}
}

func (a *LinearQAgent) BatchSize() int   { return a.cfg.Batch }
func (a *LinearQAgent) Epsilon() float64 { return a.cfg.Epsilon }

// SelectAction implements Agent: epsilon-greedy over the policy network.
func (a *LinearQAgent) SelectAction(state []float64) int {
	if a.rng.Float64() < a.cfg.Epsilon {
		return a.rng.Intn(a.cfg.NumActions)
	}
	return a.argmax(a.policy, state)
}

// Store implements Agent, appending to a fixed-capacity ring buffer.
func (a *LinearQAgent) Store(t Transition) {
	if len(a.buffer) < a.cfg.ReplayCapacity {
		a.buffer = append(a.buffer, t)
		return
	}
	a.buffer[a.bufferHead] = t
	a.bufferHead = (a.bufferHead + 1) % a.cfg.ReplayCapacity
}

// Update implements Agent: samples a minibatch, takes one SGD step per
// sample, decays epsilon, and periodically syncs the target network
// (spec.md §4.6.6 step 5).
func (a *LinearQAgent) Update() error {
	if len(a.buffer) == 0 {
		return nil
	}
	batch := a.cfg.Batch
	if batch > len(a.buffer) {
		batch = len(a.buffer)
	}
	for i := 0; i < batch; i++ {
		t := a.buffer[a.rng.Intn(len(a.buffer))]
		a.step(t)
	}

	a.cfg.Epsilon = math.Max(a.cfg.EpsilonMin, a.cfg.Epsilon-a.cfg.EpsilonDecay)

	a.updateCount++
	if a.cfg.TargetSyncEvery > 0 && a.updateCount%a.cfg.TargetSyncEvery == 0 {
		a.target.Copy(a.policy)
	}
	return nil
}

// step applies one gradient update for transition t.
func (a *LinearQAgent) step(t Transition) {
	state := mat.NewVecDense(len(t.State), t.State)
	qSA := mat.Dot(a.policy.RowView(t.Action), state)

	var targetValue float64
	if !t.Terminal {
		next := mat.NewVecDense(len(t.NextState), t.NextState)
		switch a.cfg.Variant {
		case DoubleDQN:
			bestAction := a.argmaxVec(a.policy, next)
			targetValue = mat.Dot(a.target.RowView(bestAction), next)
		default:
			targetValue = a.maxQ(a.target, next)
		}
	}
	tdTarget := t.Reward + a.cfg.Discount*targetValue
	tdError := tdTarget - qSA

	row := mat.Row(nil, t.Action, a.policy)
	for j := range row {
		row[j] += a.cfg.LearningRate * tdError * state.AtVec(j)
	}
	a.policy.SetRow(t.Action, row)
}

func (a *LinearQAgent) argmax(weights *mat.Dense, state []float64) int {
	return a.argmaxVec(weights, mat.NewVecDense(len(state), state))
}

func (a *LinearQAgent) argmaxVec(weights *mat.Dense, state *mat.VecDense) int {
	best := 0
	bestQ := math.Inf(-1)
	rows, _ := weights.Dims()
	for i := 0; i < rows; i++ {
		q := mat.Dot(weights.RowView(i), state)
		if q > bestQ {
			bestQ = q
			best = i
		}
	}
	return best
}

func (a *LinearQAgent) maxQ(weights *mat.Dense, state *mat.VecDense) float64 {
	rows, _ := weights.Dims()
	best := math.Inf(-1)
	for i := 0; i < rows; i++ {
		q := mat.Dot(weights.RowView(i), state)
		if q > best {
			best = q
		}
	}
	return best
}
