package secredit

import (
	"encoding/json"
	"fmt"
)

// ExportFormatVersion is the formatVersion written by this package.
const ExportFormatVersion = 3

// legacyExportVersion is the "v" field of files that recorded an iteration
// count instead of a KDF id.
const legacyExportVersion = 2

// ExportFile is the JSON document written by export and read by import. The
// unencrypted-mode cache uses the same layout.
type ExportFile struct {
	Data          string `json:"data"`
	FormatVersion int    `json:"formatVersion"`
	// Profile is base64url(name) of the profile that produced Data.
	Profile string `json:"profile,omitempty"`
	KDF     *KDFID `json:"kdf,omitempty"`
}

// NewExportFile builds a current-version file for token.
func NewExportFile(token, profile string, kdf *KDFID) ExportFile {
	f := ExportFile{Data: token, FormatVersion: ExportFormatVersion, KDF: kdf}
	if profile != "" {
		f.Profile = EncodeBase64URL(Utf8Encode(profile))
	}
	return f
}

// ProfileName decodes the recorded profile name, or "" when none was recorded.
func (f ExportFile) ProfileName() (string, error) {
	if f.Profile == "" {
		return "", nil
	}
	b, err := DecodeBase64URL(f.Profile)
	if err != nil {
		return "", fmt.Errorf("%w: profile: %v", ErrInvalidFile, err)
	}
	return Utf8Decode(b), nil
}

// Marshal encodes the file as JSON.
func (f ExportFile) Marshal() ([]byte, error) {
	return json.Marshal(f)
}

// ParseExportFile decodes and validates an exported file. Malformed JSON, a
// missing or unknown formatVersion, and a missing, empty or non-string data
// field are all ErrInvalidFile.
//
// Files in the older {data, iterations, v: 2} layout are accepted; the
// iteration count is mapped to a KDF id through registry when it matches a
// known profile, and left unset otherwise so every candidate is tried.
func ParseExportFile(raw []byte, registry *Registry) (ExportFile, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return ExportFile{}, fmt.Errorf("%w: not a JSON object", ErrInvalidFile)
	}

	var f ExportFile
	if err := unmarshalField(fields, "data", &f.Data); err != nil {
		return ExportFile{}, err
	}
	if f.Data == "" {
		return ExportFile{}, fmt.Errorf("%w: missing data", ErrInvalidFile)
	}

	if _, ok := fields["formatVersion"]; ok {
		if err := unmarshalField(fields, "formatVersion", &f.FormatVersion); err != nil {
			return ExportFile{}, err
		}
		if f.FormatVersion != ExportFormatVersion {
			return ExportFile{}, fmt.Errorf("%w: unsupported formatVersion %d", ErrInvalidFile, f.FormatVersion)
		}
		if _, ok := fields["profile"]; ok {
			if err := unmarshalField(fields, "profile", &f.Profile); err != nil {
				return ExportFile{}, err
			}
		}
		if _, ok := fields["kdf"]; ok {
			var id KDFID
			if err := unmarshalField(fields, "kdf", &id); err != nil {
				return ExportFile{}, err
			}
			if registry != nil {
				if _, err := registry.Lookup(id); err != nil {
					return ExportFile{}, fmt.Errorf("%w: %v", ErrInvalidFile, err)
				}
			}
			f.KDF = &id
		}
		return f, nil
	}

	return parseLegacyExport(fields, f.Data, registry)
}

func parseLegacyExport(fields map[string]json.RawMessage, data string, registry *Registry) (ExportFile, error) {
	var version int
	if _, ok := fields["v"]; !ok {
		return ExportFile{}, fmt.Errorf("%w: missing formatVersion", ErrInvalidFile)
	}
	if err := unmarshalField(fields, "v", &version); err != nil {
		return ExportFile{}, err
	}
	if version != legacyExportVersion {
		return ExportFile{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidFile, version)
	}

	f := ExportFile{Data: data, FormatVersion: ExportFormatVersion}
	if _, ok := fields["iterations"]; !ok || registry == nil {
		return f, nil
	}
	var iterations int
	if err := unmarshalField(fields, "iterations", &iterations); err != nil {
		return ExportFile{}, err
	}
	if id, err := registry.LookupIterations(iterations); err == nil {
		f.KDF = &id
	}
	return f, nil
}

func unmarshalField(fields map[string]json.RawMessage, name string, dst any) error {
	raw, ok := fields[name]
	if !ok {
		return fmt.Errorf("%w: missing %s", ErrInvalidFile, name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: bad %s", ErrInvalidFile, name)
	}
	return nil
}
