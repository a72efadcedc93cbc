package workflow

// Artifact is the downloadable form of an extraction result.
type Artifact struct {
	Filename string
	MIMEType string
	Body     []byte
}

const (
	ArtifactFilename = "extracted_text.txt"
	ArtifactMIMEType = "text/plain"
	// ArtifactContentType is the header value used when serving an artifact.
	ArtifactContentType = "text/plain; charset=utf-8"
)

// NewArtifact wraps text as an extracted_text.txt artifact.
func NewArtifact(text string) Artifact {
	return Artifact{
		Filename: ArtifactFilename,
		MIMEType: ArtifactMIMEType,
		Body:     []byte(text),
	}
}
