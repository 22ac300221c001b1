package component

import "time"

// Observer receives component lifecycle notifications.
// Implementations must not mutate the document.
type Observer interface {
	// ComponentDefined is called after a component is registered.
	ComponentDefined(name string)

	// Rendered is called after a display node is placed. replaced reports
	// whether it replaced a previous rendition.
	Rendered(name string, replaced bool, elapsed time.Duration)

	// InsertionFailed is called when a child's display node could not be
	// inserted into its parent. code is the error code.
	InsertionFailed(name, code string)
}

type nopObserver struct{}

func (nopObserver) ComponentDefined(string) {}
func (nopObserver) Rendered(string, bool, time.Duration) {}
func (nopObserver) InsertionFailed(string, string) {}
