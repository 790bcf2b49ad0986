package classifier

// State is the position of a Classifier in its inference cycle.
type State int

// Inference walks Idle -> Loaded -> Layer1Computed -> Activated ->
// Layer2Computed -> Normalized -> Classified and back to Idle. Any error
// moves to Failed, which is terminal.
const (
	Idle State = iota
	Loaded
	Layer1Computed
	Activated
	Layer2Computed
	Normalized
	Classified
	Failed
)

var stateNames = [...]string{
	Idle:           "idle",
	Loaded:         "loaded",
	Layer1Computed: "layer1-computed",
	Activated:      "activated",
	Layer2Computed: "layer2-computed",
	Normalized:     "normalized",
	Classified:     "classified",
	Failed:         "failed",
}

// String returns the state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Step names the work that leads into s.
func (s State) Step() string {
	switch s {
	case Loaded:
		return "normalize input"
	case Layer1Computed:
		return "hidden layer"
	case Activated:
		return "rectify"
	case Layer2Computed:
		return "output layer"
	case Normalized:
		return "log-softmax"
	case Classified:
		return "argmax"
	default:
		return s.String()
	}
}
