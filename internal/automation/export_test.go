package automation

// StateTree exposes the state decoding for tests.
var StateTree = stateTree
