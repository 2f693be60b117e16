package origin_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/hostlink/origin"
)

func TestHostOriginIsAlwaysValid(t *testing.T) {
	requireT := require.New(t)

	v := origin.New("https://host.example.com")
	requireT.True(v.IsValid("https://host.example.com"))
	requireT.True(v.IsValid("https://HOST.Example.com"))
	requireT.False(v.IsValid("https://other.example.com"))
	requireT.False(v.IsValid(""))
}

func TestAllowListMatching(t *testing.T) {
	requireT := require.New(t)

	v := origin.New("https://host.example.com")
	v.Add("https://app.contoso.com", "https://*.tenant.net", "https://local.test:8443")

	requireT.True(v.IsValid("https://app.contoso.com"))
	requireT.True(v.IsValid("https://APP.contoso.com"))
	requireT.True(v.IsValid("https://a.tenant.net"))
	requireT.True(v.IsValid("https://local.test:8443"))

	requireT.False(v.IsValid("https://tenant.net"))
	requireT.False(v.IsValid("https://a.b.tenant.net"))
	requireT.False(v.IsValid("http://app.contoso.com"))
	requireT.False(v.IsValid("https://app.contoso.com.evil.com"))
	requireT.False(v.IsValid("https://appxcontoso.com"))
	requireT.False(v.IsValid("https://local.test"))
}

func TestMalformedEntriesAreDropped(t *testing.T) {
	requireT := require.New(t)

	v := origin.New("https://host.example.com")
	v.Add("http://plain.com", "https://ok.com/path", "not a url", "https://", "https://fine.com/")

	requireT.Equal([]string{"https://fine.com"}, v.Origins())
	requireT.True(v.IsValid("https://fine.com"))
	requireT.False(v.IsValid("http://plain.com"))
}

func TestAddDeduplicates(t *testing.T) {
	requireT := require.New(t)

	v := origin.New("")
	v.Add("https://a.com", "https://b.com")
	v.Add("https://b.com", "https://a.com", "https://A.com")
	v.Add("https://c.com")

	requireT.Equal([]string{"https://a.com", "https://b.com", "https://c.com"}, v.Origins())
}

func TestReset(t *testing.T) {
	requireT := require.New(t)

	v := origin.New("https://host.example.com")
	v.Add("https://a.com")
	requireT.True(v.IsValid("https://a.com"))

	v.Reset()
	requireT.False(v.IsValid("https://a.com"))
	requireT.Empty(v.Origins())
	requireT.True(v.IsValid("https://host.example.com"))
}
