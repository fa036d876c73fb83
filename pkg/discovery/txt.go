package discovery

import (
	"fmt"
	"strconv"
	"strings"
)

// DNS-SD names of the library vendor executable service.
const (
	// ServiceName is the DNS-SD service type of a persistent LVE.
	ServiceName = "_mlle._tcp"

	// DefaultDomain is the mDNS domain.
	DefaultDomain = "local."
)

// TXT record keys.
const (
	// TXTKeyVersion carries the highest protocol version served.
	TXTKeyVersion = "V"

	// TXTKeyVendor carries the library vendor name.
	TXTKeyVendor = "VN"

	// TXTKeyFingerprint carries the SHA-256 SPKI fingerprint of the LVE
	// certificate so a tool can pin it.
	TXTKeyFingerprint = "FP"

	// TXTKeyLibraries carries the comma-separated names of served libraries.
	TXTKeyLibraries = "LIB"
)

// maxTXTValue is the longest value a single TXT string can carry with its key.
const maxTXTValue = 250

// ServiceTXT is the TXT record content of an advertised LVE.
type ServiceTXT struct {
	// Version is the highest protocol version served. Required.
	Version int

	// Vendor is the library vendor name. Optional.
	Vendor string

	// Fingerprint is the hex SHA-256 SPKI fingerprint of the LVE key. Optional.
	Fingerprint string

	// Libraries lists the top-level libraries the LVE serves. Optional.
	Libraries []string
}

// Validate checks the record fits into DNS TXT strings.
func (t *ServiceTXT) Validate() error {
	if t.Version <= 0 {
		return fmt.Errorf("%w: version %d", ErrInvalidTXTRecord, t.Version)
	}
	if len(t.Vendor) > maxTXTValue {
		return fmt.Errorf("%w: vendor too long", ErrInvalidTXTRecord)
	}
	if t.Fingerprint != "" && len(t.Fingerprint) != 64 {
		return fmt.Errorf("%w: fingerprint must be 64 hex characters", ErrInvalidTXTRecord)
	}
	if len(strings.Join(t.Libraries, ",")) > maxTXTValue {
		return fmt.Errorf("%w: library list too long", ErrInvalidTXTRecord)
	}
	for _, l := range t.Libraries {
		if l == "" || strings.Contains(l, ",") {
			return fmt.Errorf("%w: library name %q", ErrInvalidTXTRecord, l)
		}
	}
	return nil
}

// Encode returns the TXT strings in key=value form. Empty fields are omitted.
func (t *ServiceTXT) Encode() []string {
	out := []string{TXTKeyVersion + "=" + strconv.Itoa(t.Version)}
	if t.Vendor != "" {
		out = append(out, TXTKeyVendor+"="+t.Vendor)
	}
	if t.Fingerprint != "" {
		out = append(out, TXTKeyFingerprint+"="+t.Fingerprint)
	}
	if len(t.Libraries) > 0 {
		out = append(out, TXTKeyLibraries+"="+strings.Join(t.Libraries, ","))
	}
	return out
}

// ParseTXT parses raw TXT record strings into a map.
func ParseTXT(records []string) map[string]string {
	result := make(map[string]string)
	for _, record := range records {
		if idx := strings.IndexByte(record, '='); idx > 0 {
			result[record[:idx]] = record[idx+1:]
		}
	}
	return result
}

// ParseServiceTXT parses raw TXT records into a ServiceTXT.
func ParseServiceTXT(records []string) (*ServiceTXT, error) {
	m := ParseTXT(records)

	v, ok := m[TXTKeyVersion]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidTXTRecord, TXTKeyVersion)
	}
	version, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%w: version %q", ErrInvalidTXTRecord, v)
	}

	t := &ServiceTXT{
		Version:     version,
		Vendor:      m[TXTKeyVendor],
		Fingerprint: strings.ToLower(m[TXTKeyFingerprint]),
	}
	if libs := m[TXTKeyLibraries]; libs != "" {
		t.Libraries = strings.Split(libs, ",")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
