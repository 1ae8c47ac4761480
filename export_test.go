package reroute

// Test-only exports for internal functions.
var (
	CheckModel   = checkModel
	ParseSegment = parseSegment
)
