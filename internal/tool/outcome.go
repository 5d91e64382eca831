package tool

// Class buckets a finished invocation for the scheduler's retry policy.
type Class string

const (
	ClassSuccess   Class = "success"
	ClassTransient Class = "transient"
	ClassPermanent Class = "permanent"
	ClassTimeout   Class = "timeout"
	ClassInternal  Class = "internal"
)

// Outcome is a classified adapter result. The scheduler is the sole consumer
// and the sole authority translating it into job state.
type Outcome struct {
	Class      Class
	Diagnostic string // sanitized, bounded; safe to surface to callers
	Path       string // produced file, set only on ClassSuccess
	Format     string // container/extension of the produced file
	Title      string // media title reported by the tool, if any
}
