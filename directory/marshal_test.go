package directory

import (
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberauth/auth"
)

func TestMemberFromEntryNil(t *testing.T) {
	info, err := memberFromEntry(nil)

	assert.Nil(t, info)
	require.Error(t, err)
	assert.Equal(t, auth.KindMarshal, auth.KindOf(err))
}

func TestMemberFromEntryFullAttributes(t *testing.T) {
	// 2023-01-01T00:00:00Z expressed as FILETIME ticks.
	entry := ldap.NewEntry("cn=Alice,ou=people,dc=example,dc=com", map[string][]string{
		"cn":          {"Alice"},
		"description": {"Engineering"},
		"memberOf":    {"cn=admins,dc=example,dc=com", "cn=staff,dc=example,dc=com"},
		"pwdLastSet":  {"133170048000000000"},
	})

	info, err := memberFromEntry(entry)

	require.NoError(t, err)
	assert.Equal(t, "cn=Alice,ou=people,dc=example,dc=com", info.DN)
	assert.Equal(t, "Alice", info.CommonName)
	assert.Equal(t, "Engineering", info.Description)
	assert.Equal(t, []string{"cn=admins,dc=example,dc=com", "cn=staff,dc=example,dc=com"}, info.Groups)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), info.PasswordLastSet)
}

func TestMemberFromEntryAbsentAttributes(t *testing.T) {
	entry := ldap.NewEntry("cn=Bare,dc=example,dc=com", nil)

	info, err := memberFromEntry(entry)

	require.NoError(t, err)
	assert.Equal(t, "cn=Bare,dc=example,dc=com", info.DN)
	assert.Empty(t, info.CommonName)
	assert.Empty(t, info.Description)
	assert.Empty(t, info.Groups)
	assert.True(t, info.PasswordLastSet.IsZero())
	assert.Empty(t, info.SID)
}

func TestParseFileTime(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "unix epoch",
			value: "116444736000000000",
			want:  time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "one hour past unix epoch",
			value: "116444772000000000",
			want:  time.Date(1970, 1, 1, 1, 0, 0, 0, time.UTC),
		},
		{
			name:  "never set",
			value: "0",
			want:  time.Time{},
		},
		{
			name:    "not a number",
			value:   "yesterday",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFileTime(tt.value)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeSID(t *testing.T) {
	// S-1-5-21-500: revision 1, two sub-authorities, authority 5.
	valid := []byte{
		0x01, 0x02,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x05,
		0x15, 0x00, 0x00, 0x00,
		0xf4, 0x01, 0x00, 0x00,
	}
	assert.Equal(t, "S-1-5-21-500", decodeSID(valid))

	assert.Empty(t, decodeSID([]byte{0x01}), "a truncated SID must not panic")
}

func TestEncodePassword(t *testing.T) {
	t.Run("unicodePwd is quoted UTF-16LE", func(t *testing.T) {
		got := encodePassword("unicodePwd", "new")
		want := []byte{0x22, 0x00, 'n', 0x00, 'e', 0x00, 'w', 0x00, 0x22, 0x00}
		assert.Equal(t, string(want), got)
	})

	t.Run("other attributes take the raw value", func(t *testing.T) {
		assert.Equal(t, "new", encodePassword("userPassword", "new"))
	})
}
