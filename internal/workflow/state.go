package workflow

import "fmt"

// State is the position of a session in the extraction workflow.
type State int

const (
	// Idle means no image is uploaded and no result exists.
	Idle State = iota
	// ImageLoaded means an image is decoded and waiting for extraction.
	ImageLoaded
	// Processing means the OCR engine is running on the current image.
	Processing
	// ResultReady means extracted text is available for the current image.
	ResultReady
)

var stateNames = map[State]string{
	Idle:        "idle",
	ImageLoaded: "image_loaded",
	Processing:  "processing",
	ResultReady: "result_ready",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name so JSON snapshots stay readable.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name produced by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for st, name := range stateNames {
		if name == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown workflow state %q", string(b))
}
