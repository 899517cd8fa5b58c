package errdefs

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "configuration",
			err:  Configuration("PtkCat"),
			want: "Connectomist command 'PtkCat' not found.",
		},
		{
			name: "runtime",
			err:  Runtime("DWI-Tractography", "connectomist -p DWI-Tractography -f x.py", "STDOUT\n----\n\nSTDERR\n----\nboom"),
			want: "Connectomist call for 'DWI-Tractography' failed, with parameters: " +
				"'connectomist -p DWI-Tractography -f x.py'. Error:: STDOUT\n----\n\nSTDERR\n----\nboom.",
		},
		{
			name: "bad manufacturer",
			err:  BadManufacturer("Toshiba", []string{"Bruker", "GE", "Philips", "Siemens"}),
			want: "Incorrect manufacturer name: 'Toshiba', should be in [Bruker GE Philips Siemens].",
		},
		{
			name: "missing parameters sorted",
			err:  MissingParameters("DWI-Susceptibility-Artifact-Correction", []string{"siemensEchoSpacing", "siemensDeltaTE"}),
			want: "Missing parameters for 'DWI-Susceptibility-Artifact-Correction': [siemensDeltaTE siemensEchoSpacing].",
		},
		{
			name: "bad file",
			err:  BadFile("/data/dwi.nii.gz"),
			want: "Missing or corrupted file: '/data/dwi.nii.gz'.",
		},
		{
			name: "validation",
			err:  Validation("'%s' atlas name not supported", "Mori"),
			want: "'Mori' atlas name not supported",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestIsKindThroughWrapping(t *testing.T) {
	err := errors.Wrap(BadFile("/tmp/t1.ima"), "rough mask")

	assert.True(t, IsKind(err, KindBadFile))
	assert.False(t, IsKind(err, KindRuntime))
	assert.False(t, IsKind(errors.New("plain"), KindBadFile))

	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "/tmp/t1.ima", e.Path)
}

func TestMissingParametersDoesNotAliasInput(t *testing.T) {
	in := []string{"b", "a"}
	err := MissingParameters("alg", in)

	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, e.Missing)
	assert.Equal(t, []string{"b", "a"}, in)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "pipeline", KindPipeline.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}
