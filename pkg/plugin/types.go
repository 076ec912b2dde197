package plugin

// Type represents the functional category of a plugin.
type Type string

const (
	// TypeYieldSource plugins feed yield opportunity records into the host.
	TypeYieldSource Type = "yield-source"
	// TypeProcessor plugins transform, enrich or validate records on their way through.
	TypeProcessor Type = "processor"
)

// Capability expresses optional features a plugin may request access to.
type Capability string

const (
	CapabilityFilesystem Capability = "filesystem"
	CapabilityNetwork    Capability = "network"
	CapabilityExecution  Capability = "execution"
)

// Well-known resource keys the host exposes through ExecutionContext.Resources.
const (
	// ResourceYieldSink is a func(context.Context, map[string]any) error that
	// yield-source plugins call once per opportunity record.
	ResourceYieldSink = "yield-source:sink"
	// ResourceProcessorInput is a <-chan map[string]any carrying records for
	// processor plugins to consume.
	ResourceProcessorInput = "processor:input"
	// ResourceProcessorStop is an optional func() error invoked when a
	// processor plugin stops.
	ResourceProcessorStop = "processor:onStop"
)

// Info contains descriptive metadata for a plugin implementation.
type Info struct {
	ID           string
	Name         string
	Description  string
	Author       string
	Version      string
	Category     Type
	Capabilities []Capability
}

// State represents the lifecycle position of a plugin instance.
type State string

const (
	StateRegistered  State = "registered"
	StateInitialised State = "initialised"
	StateStarted     State = "started"
	StateStopped     State = "stopped"
)
