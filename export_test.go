package secredit

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExportFile_RoundTrip(t *testing.T) {
	id := KDFID(1)
	f := NewExportFile("1.abc", "Work Notes", &id)
	require.Equal(t, ExportFormatVersion, f.FormatVersion)

	raw, err := f.Marshal()
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	require.Equal(t, "1.abc", fields["data"])
	require.Equal(t, float64(3), fields["formatVersion"])
	require.Equal(t, EncodeBase64URL([]byte("Work Notes")), fields["profile"])

	parsed, err := ParseExportFile(raw, testRegistry())
	require.NoError(t, err)
	require.Equal(t, f, parsed)

	name, err := parsed.ProfileName()
	require.NoError(t, err)
	require.Equal(t, "Work Notes", name)
}

func TestExportFile_OmitsEmptyFields(t *testing.T) {
	raw, err := NewExportFile("p:abc", "", nil).Marshal()
	require.NoError(t, err)
	require.JSONEq(t, `{"data":"p:abc","formatVersion":3}`, string(raw))

	name, err := NewExportFile("p:abc", "", nil).ProfileName()
	require.NoError(t, err)
	require.Empty(t, name)
}

func TestParseExportFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{data`},
		{"array", `["x"]`},
		{"null", `null`},
		{"missing data", `{"formatVersion":3}`},
		{"empty data", `{"data":"","formatVersion":3}`},
		{"null data", `{"data":null,"formatVersion":3}`},
		{"numeric data", `{"data":5,"formatVersion":3}`},
		{"missing version", `{"data":"1.abc"}`},
		{"unknown version", `{"data":"1.abc","formatVersion":4}`},
		{"string version", `{"data":"1.abc","formatVersion":"3"}`},
		{"unknown kdf", `{"data":"1.abc","formatVersion":3,"kdf":42}`},
		{"bad profile type", `{"data":"1.abc","formatVersion":3,"profile":7}`},
		{"unknown legacy version", `{"data":"1.abc","v":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExportFile([]byte(tt.raw), testRegistry())
			require.ErrorIs(t, err, ErrInvalidFile)
		})
	}
}

func TestParseExportFile_Legacy(t *testing.T) {
	f, err := ParseExportFile([]byte(`{"data":"abc","iterations":300000,"v":2}`), DefaultRegistry())
	require.NoError(t, err)
	require.Equal(t, "abc", f.Data)
	require.NotNil(t, f.KDF)
	require.Equal(t, KDFID(3), *f.KDF)

	// An unknown iteration count falls back to the candidate search.
	f, err = ParseExportFile([]byte(`{"data":"abc","iterations":7,"v":2}`), DefaultRegistry())
	require.NoError(t, err)
	require.Nil(t, f.KDF)

	f, err = ParseExportFile([]byte(`{"data":"abc","v":2}`), DefaultRegistry())
	require.NoError(t, err)
	require.Nil(t, f.KDF)
}

func TestExportFile_BadProfile(t *testing.T) {
	f := ExportFile{Data: "x", FormatVersion: 3, Profile: "!!"}
	_, err := f.ProfileName()
	require.ErrorIs(t, err, ErrInvalidFile)
}
