package image

import (
	"errors"
	"fmt"

	"github.com/distribution/reference"
)

var ErrMalformedImageRef = errors.New("malformed image reference")

// ImageRef is a tagged image name split into its parts.
type ImageRef struct {
	// Repository is the familiar name, e.g. "parabricks/release" or
	// "nvcr.io/hpc/parabricks".
	Repository string
	Tag        string
}

func (r ImageRef) String() string {
	return r.Repository + ":" + r.Tag
}

// ParseImageRef parses a repo:tag string. Untagged and digest-only
// references are rejected.
func ParseImageRef(s string) (ImageRef, error) {
	named, err := reference.ParseNormalizedNamed(s)
	if err != nil {
		return ImageRef{}, fmt.Errorf("%w: %q: %v", ErrMalformedImageRef, s, err)
	}

	tagged, ok := named.(reference.Tagged)
	if !ok {
		return ImageRef{}, fmt.Errorf("%w: %q has no tag", ErrMalformedImageRef, s)
	}

	return ImageRef{
		Repository: reference.FamiliarName(named),
		Tag:        tagged.Tag(),
	}, nil
}
