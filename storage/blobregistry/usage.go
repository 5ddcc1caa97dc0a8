package blobregistry

// Usage restricts which programs accept a given backend.
type Usage uint8

const (
	// UsageCLI marks backends available to command-line tools (e.g. shakecli).
	UsageCLI Usage = 1 << iota
	// UsageDaemon marks backends available to long-running daemons (e.g. shake-blobd).
	UsageDaemon
)

func (u Usage) allows(want Usage) bool { return u&want != 0 }
