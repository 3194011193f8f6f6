package entity

// Mode selects how a processed file is delivered to the client.
type Mode string

const (
	// ModeDeferred returns a task identifier redeemed later via download.
	ModeDeferred Mode = "deferred"
	// ModeSync streams the processed file back in the upload response.
	ModeSync Mode = "sync"
)

// Valid reports whether m is a known delivery mode.
func (m Mode) Valid() bool {
	return m == ModeDeferred || m == ModeSync
}

// Stage is a step of the upload lifecycle, used in logs and error context.
type Stage string

const (
	StageReceived  Stage = "received"
	StageValidated Stage = "validated"
	StageStaged    Stage = "staged"
	StageLoaded    Stage = "loaded"
	StageRewritten Stage = "rewritten"
	StageResponded Stage = "responded"
)
