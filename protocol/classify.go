package protocol

import "strings"

const (
	PartialPrefix = "PARTIAL:"
	EventPrefix   = "EVENT:"
	// FinalPrefix optionally tags a final transcript. Untagged lines are
	// finals too, so workers that never send it keep working.
	FinalPrefix = "FINAL:"
)

// Type is the tag of a classified line.
type Type int

const (
	TypeFinal Type = iota
	TypePartial
	TypeLifecycle
)

func (t Type) String() string {
	switch t {
	case TypePartial:
		return "partial"
	case TypeLifecycle:
		return "lifecycle"
	default:
		return "final"
	}
}

// Lifecycle is the kind carried by an EVENT: line.
type Lifecycle int

const (
	LifecycleUnknown Lifecycle = iota
	LifecycleReady
	LifecycleError
	LifecycleModelNotReady
	LifecycleRelease
)

var lifecycleNames = map[string]Lifecycle{
	"READY":           LifecycleReady,
	"ERROR":           LifecycleError,
	"MODEL_NOT_READY": LifecycleModelNotReady,
	"RELEASE":         LifecycleRelease,
}

func (l Lifecycle) String() string {
	for name, v := range lifecycleNames {
		if v == l {
			return name
		}
	}
	return "UNKNOWN"
}

// Event is a classified protocol line. Text is set for partials and finals;
// Kind is set for lifecycle events. Raw keeps the unrecognized keyword of an
// unknown lifecycle event.
type Event struct {
	Type Type
	Text string
	Kind Lifecycle
	Raw  string
}

func Partial(text string) Event { return Event{Type: TypePartial, Text: text} }

func Final(text string) Event { return Event{Type: TypeFinal, Text: text} }

func LifecycleEvent(kind Lifecycle) Event { return Event{Type: TypeLifecycle, Kind: kind} }

// Classify interprets one framed line. Prefixes are matched in priority
// order PARTIAL:, EVENT:, FINAL:; anything else is a final transcript.
func Classify(line string) Event {
	switch {
	case strings.HasPrefix(line, PartialPrefix):
		return Partial(strings.TrimSpace(line[len(PartialPrefix):]))
	case strings.HasPrefix(line, EventPrefix):
		raw := strings.ToUpper(strings.TrimSpace(line[len(EventPrefix):]))
		if kind, ok := lifecycleNames[raw]; ok {
			return LifecycleEvent(kind)
		}
		return Event{Type: TypeLifecycle, Kind: LifecycleUnknown, Raw: raw}
	case strings.HasPrefix(line, FinalPrefix):
		return Final(strings.TrimSpace(line[len(FinalPrefix):]))
	default:
		return Final(line)
	}
}
