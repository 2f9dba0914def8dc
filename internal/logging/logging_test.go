package logging

import (
	"bytes"
	"testing"

	"github.com/ai8future/secredit"
	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

var _ secredit.Logger = Logger{}

func TestLogger_Levels(t *testing.T) {
	color.NoColor = true

	tests := []struct {
		name    string
		verbose bool
		debug   bool
		want    string
	}{
		{"quiet", false, false, ""},
		{"verbose", true, false, "[info] info 1\n"},
		{"debug", false, true, "[info] info 1\n[debug] debug 2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			l := Logger{Verbose: tt.verbose, Debug: tt.debug, Out: &out, Err: &errOut}

			l.Infof("info %d", 1)
			l.Debugf("debug %d", 2)
			l.Warnf("warn %d", 3)
			l.Errorf("error %d", 4)

			require.Equal(t, tt.want, out.String())
			require.Equal(t, "[warn] warn 3\n[error] error 4\n", errOut.String())
		})
	}
}
