package directory

import (
	"strconv"
	"time"
	"unicode/utf16"

	"github.com/bwmarrin/go-objectsid"
	"github.com/go-ldap/ldap/v3"

	"memberauth/auth"
)

// adEpoch is the Windows FILETIME epoch (1601-01-01) expressed in
// 100-nanosecond ticks relative to the Unix epoch.
const adEpoch = 116444736000000000

// MemberInfo is the directory view of a single member entry.
type MemberInfo struct {
	DN              string    `json:"dn"`
	CommonName      string    `json:"cn"`
	Description     string    `json:"description,omitempty"`
	Groups          []string  `json:"groups,omitempty"`
	PasswordLastSet time.Time `json:"password_last_set,omitzero"`
	SID             string    `json:"sid,omitempty"`
}

// memberFromEntry maps a search entry onto MemberInfo. Absent attributes
// yield zero values; only a nil entry is an error.
func memberFromEntry(entry *ldap.Entry) (*MemberInfo, error) {
	if entry == nil {
		return nil, auth.NewError(auth.KindMarshal, "marshal_member", "cannot marshal a nil entry", nil)
	}

	info := &MemberInfo{
		DN:          entry.DN,
		CommonName:  entry.GetAttributeValue("cn"),
		Description: entry.GetAttributeValue("description"),
		Groups:      entry.GetAttributeValues("memberOf"),
	}

	if raw := entry.GetAttributeValue("pwdLastSet"); raw != "" {
		if t, err := parseFileTime(raw); err == nil {
			info.PasswordLastSet = t
		}
	}

	if raw := entry.GetRawAttributeValue("objectSid"); len(raw) > 0 {
		info.SID = decodeSID(raw)
	}

	return info, nil
}

// parseFileTime converts a Windows FILETIME attribute value (decimal
// 100-nanosecond ticks since 1601-01-01) to a UTC time. The sentinel
// values 0 and "never" have no meaningful timestamp and map to the zero
// time.
func parseFileTime(value string) (time.Time, error) {
	ticks, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	if ticks <= 0 {
		return time.Time{}, nil
	}
	return time.Unix(0, (ticks-adEpoch)*100).UTC(), nil
}

// decodeSID renders a binary objectSid in the usual S-1-5-... form. A
// truncated or corrupt value yields the empty string rather than a panic.
func decodeSID(raw []byte) (sid string) {
	defer func() {
		if recover() != nil {
			sid = ""
		}
	}()
	return objectsid.Decode(raw).String()
}

// encodePassword prepares a password value for the given modify attribute.
// Active Directory's unicodePwd requires the UTF-16LE encoding of the
// password wrapped in double quotes; other attributes take the raw value.
func encodePassword(attribute, password string) string {
	if attribute != "unicodePwd" {
		return password
	}
	quoted := utf16.Encode([]rune(`"` + password + `"`))
	buf := make([]byte, 0, len(quoted)*2)
	for _, r := range quoted {
		buf = append(buf, byte(r), byte(r>>8))
	}
	return string(buf)
}
