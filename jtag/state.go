package jtag

// State is one of the 16 IEEE-1149.1 TAP states.
type State int

const (
	TestLogicReset State = iota
	RunTestIdle
	SelectDR
	CaptureDR
	ShiftDR
	Exit1DR
	PauseDR
	Exit2DR
	UpdateDR
	SelectIR
	CaptureIR
	ShiftIR
	Exit1IR
	PauseIR
	Exit2IR
	UpdateIR
	numStates
)

var stateNames = [numStates]string{
	TestLogicReset: "Test-Logic-Reset",
	RunTestIdle:    "Run-Test/Idle",
	SelectDR:       "Select-DR-Scan",
	CaptureDR:      "Capture-DR",
	ShiftDR:        "Shift-DR",
	Exit1DR:        "Exit1-DR",
	PauseDR:        "Pause-DR",
	Exit2DR:        "Exit2-DR",
	UpdateDR:       "Update-DR",
	SelectIR:       "Select-IR-Scan",
	CaptureIR:      "Capture-IR",
	ShiftIR:        "Shift-IR",
	Exit1IR:        "Exit1-IR",
	PauseIR:        "Pause-IR",
	Exit2IR:        "Exit2-IR",
	UpdateIR:       "Update-IR",
}

func (s State) String() string {
	if s < 0 || int(s) >= int(numStates) {
		return "State(invalid)"
	}
	return stateNames[s]
}

// edge holds the two states reachable from a state, indexed by the TMS
// value clocked (0 or 1). This is the canonical IEEE-1149.1 graph.
type edge struct {
	zero, one State
}

var transitions = [numStates]edge{
	TestLogicReset: {RunTestIdle, TestLogicReset},
	RunTestIdle:    {RunTestIdle, SelectDR},
	SelectDR:       {CaptureDR, SelectIR},
	CaptureDR:      {ShiftDR, Exit1DR},
	ShiftDR:        {ShiftDR, Exit1DR},
	Exit1DR:        {PauseDR, UpdateDR},
	PauseDR:        {PauseDR, Exit2DR},
	Exit2DR:        {ShiftDR, UpdateDR},
	UpdateDR:       {RunTestIdle, SelectDR},
	SelectIR:       {CaptureIR, TestLogicReset},
	CaptureIR:      {ShiftIR, Exit1IR},
	ShiftIR:        {ShiftIR, Exit1IR},
	Exit1IR:        {PauseIR, UpdateIR},
	PauseIR:        {PauseIR, Exit2IR},
	Exit2IR:        {ShiftIR, UpdateIR},
	UpdateIR:       {RunTestIdle, SelectDR},
}

// next returns the state reached from s by clocking one TMS bit.
func (s State) next(tms bool) State {
	e := transitions[s]
	if tms {
		return e.one
	}
	return e.zero
}

// pathTable[from][to] holds the shortest TMS sequence that moves the TAP
// from "from" to "to" without passing through Shift-DR or Shift-IR as an
// incidental hop (entering one of those states clocks a bit of data,
// which must never happen except when that state is the actual target).
//
// Computed once at init by BFS over the 16-state graph rather than
// hand-written, then exercised against the two worked examples in the
// scan's test scenarios.
var pathTable [numStates][numStates][]bool

func init() {
	for from := State(0); from < numStates; from++ {
		pathTable[from] = bfsShortestPaths(from)
	}
}

func bfsShortestPaths(from State) [numStates][]bool {
	var paths [numStates][]bool
	var visited [numStates]bool
	visited[from] = true
	paths[from] = []bool{}
	queue := []State{from}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, tms := range []bool{false, true} {
			n := s.next(tms)
			if visited[n] {
				continue
			}
			// Forbid entering Shift-DR/Shift-IR as an incidental hop:
			// only the actual BFS target for that destination may end
			// there, any path continuing past it would have clocked an
			// unwanted bit.
			if (n == ShiftDR || n == ShiftIR) && n != from {
				// Allow reaching it (it may be exactly what's needed),
				// but never continue traversal beyond it.
				visited[n] = true
				paths[n] = append(append([]bool{}, paths[s]...), tms)
				continue
			}
			visited[n] = true
			paths[n] = append(append([]bool{}, paths[s]...), tms)
			queue = append(queue, n)
		}
	}
	return paths
}
