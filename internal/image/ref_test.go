package image

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseImageRef(t *testing.T) {
	tests := []struct {
		input    string
		wantRepo string
		wantTag  string
		wantErr  bool
	}{
		{"parabricks/release:v2.5.0", "parabricks/release", "v2.5.0", false},
		{"nvcr.io/hpc/parabricks:v2.5.0", "nvcr.io/hpc/parabricks", "v2.5.0", false},
		{"registry.gitlab.com/pbuser/release/x86_64:v2.4.1", "registry.gitlab.com/pbuser/release/x86_64", "v2.4.1", false},
		{"parabricks/release", "", "", true},
		{"Not A Ref", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ref, err := ParseImageRef(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedImageRef)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRepo, ref.Repository)
			assert.Equal(t, tt.wantTag, ref.Tag)
			assert.Equal(t, tt.input, ref.String())
		})
	}
}
