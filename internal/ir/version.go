package ir

// Version constants for IR schema and engine.
const (
	// IRVersion is the IR schema version recorded in journals.
	IRVersion = "1"

	// EngineVersion is the rubberdux engine version.
	EngineVersion = "0.1.0"
)
