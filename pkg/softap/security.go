package softap

import (
	"fmt"
	"strconv"
	"strings"
)

// EnterpriseBit marks enterprise (802.1X) security codes.
const EnterpriseBit uint32 = 0x02000000

// EAP type codes.
const (
	EAPTypePEAP uint32 = 25
	EAPTypeTLS  uint32 = 13
)

type descriptor struct {
	name  string
	value uint32
}

// securityTable is ordered; SecurityLookup returns the first name that
// matches a code.
var securityTable = []descriptor{
	{"open", 0},
	{"none", 0},
	{"wep_psk", 0x1},
	{"wep_shared", 0x8001},
	{"wpa_tkip", 0x00200002},
	{"wpa_aes", 0x00200004},
	{"wpa2_aes", 0x00400004},
	{"wpa2_tkip", 0x00400002},
	{"wpa2_mixed", 0x00400006},
	{"wpa2", 0x00400006},
	{"wpa_enterprise_aes", 0x02200004},
	{"wpa_enterprise_tkip", 0x02200002},
	{"wpa2_enterprise_aes", 0x02400004},
	{"wpa2_enterprise_tkip", 0x02400002},
	{"wpa2_enterprise_mixed", 0x02400006},
	{"wpa2_enterprise", 0x02400006},
	{"enterprise", EnterpriseBit},
}

var eapTable = []descriptor{
	{"peap", EAPTypePEAP},
	{"peap/mschapv2", EAPTypePEAP},
	{"eap-tls", EAPTypeTLS},
	{"tls", EAPTypeTLS},
}

func lookupName(table []descriptor, name string) (uint32, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, d := range table {
		if d.name == name {
			return d.value, true
		}
	}
	return 0, false
}

// parseNumeric accepts decimal and 0x-prefixed hexadecimal codes.
func parseNumeric(s string) (uint32, bool) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

// SecurityValue returns the code for a security descriptor name or numeric
// string. Names are case-insensitive.
func SecurityValue(name string) (uint32, error) {
	if v, ok := lookupName(securityTable, name); ok {
		return v, nil
	}
	if v, ok := parseNumeric(name); ok {
		return v, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSecurity, name)
}

// SecurityLookup returns the first descriptor name for code.
func SecurityLookup(code uint32) (string, bool) {
	for _, d := range securityTable {
		if d.value == code {
			return d.name, true
		}
	}
	return "", false
}

// SecurityNames returns the descriptor names in table order.
func SecurityNames() []string {
	names := make([]string, len(securityTable))
	for i, d := range securityTable {
		names[i] = d.name
	}
	return names
}

// IsEnterprise reports whether code has the enterprise bit set.
func IsEnterprise(code uint32) bool {
	return code&EnterpriseBit != 0
}

// EAPTypeValue returns the code for an EAP descriptor name or numeric string.
func EAPTypeValue(name string) (uint32, error) {
	if v, ok := lookupName(eapTable, name); ok {
		return v, nil
	}
	if v, ok := parseNumeric(name); ok {
		return v, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownEAP, name)
}
