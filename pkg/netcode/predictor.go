package netcode

// Predictor applies captured local input immediately, ahead of server
// acknowledgement, against the portion of the world a PredictionScope
// exposes. It holds exactly one predicted partial state at a time;
// reconciliation (reconciler.go) is what rebases that state on a fresh
// authoritative snapshot and replays unacknowledged input over it.
type Predictor[W any, I TimestampedInput, P any] struct {
	scope   PredictionScope[W, I, P]
	localID ClientID

	current     P
	initialized bool
}

// NewPredictor constructs a Predictor bound to a local player id. scope must
// not be nil.
func NewPredictor[W any, I TimestampedInput, P any](scope PredictionScope[W, I, P], localID ClientID) (*Predictor[W, I, P], error) {
	if scope == nil {
		return nil, ErrMissingPredictScope
	}
	return &Predictor[W, I, P]{scope: scope, localID: localID}, nil
}

// Reset re-extracts the predictable partial from an authoritative world,
// discarding any in-flight predicted state. Called whenever the Reconciler
// installs a fresh snapshot.
func (p *Predictor[W, I, P]) Reset(world W) {
	p.current = p.scope.ExtractPredictable(world, p.localID)
	p.initialized = true
}

// ApplyInput advances the predicted partial state by one input and returns
// it. Safe to call before Reset if the caller has no server world yet; in
// that case the zero value of P is the starting point, matching a freshly
// joined client with no snapshot yet.
func (p *Predictor[W, I, P]) ApplyInput(input I, tickIntervalMs float64) P {
	p.current = p.scope.SimulatePredicted(p.current, input, tickIntervalMs, p.localID)
	p.initialized = true
	return p.current
}

// Current returns the predictor's current predicted partial state.
func (p *Predictor[W, I, P]) Current() P {
	return p.current
}

// Render merges the predicted partial state over an authoritative world,
// producing what the caller should display this frame.
func (p *Predictor[W, I, P]) Render(serverWorld W) W {
	return p.scope.MergePrediction(serverWorld, p.current, p.localID)
}
