package capability_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/hostlink/capability"
	"github.com/outofforest/hostlink/wire"
)

func TestCompareVersions(t *testing.T) {
	requireT := require.New(t)

	for _, tc := range []struct {
		V1, V2 string
		Result int
		OK     bool
	}{
		{V1: "1.2", V2: "1.2.0", Result: 0, OK: true},
		{V1: "1.2", V2: "1.3", Result: -1, OK: true},
		{V1: "2.0", V2: "1.3.2", Result: 1, OK: true},
		{V1: "1.10", V2: "1.9", Result: 1, OK: true},
		{V1: "1.2a", V2: "1.2b", OK: false},
		{V1: "1..2", V2: "1.2", OK: false},
		{V1: "", V2: "1.2", OK: false},
		{V1: "1.2", V2: "-1", OK: false},
	} {
		result, ok := capability.CompareVersions(tc.V1, tc.V2)
		requireT.Equal(tc.OK, ok, "%s vs %s", tc.V1, tc.V2)
		if tc.OK {
			requireT.Equal(tc.Result, result, "%s vs %s", tc.V1, tc.V2)
		}
	}
}

func TestAtLeast(t *testing.T) {
	requireT := require.New(t)

	requireT.True(capability.AtLeast("2.0.1", "2.0.1"))
	requireT.True(capability.AtLeast("2.1", "2.0.1"))
	requireT.False(capability.AtLeast("2.0", "2.0.1"))
	requireT.False(capability.AtLeast("x", "2.0.1"))
}

func TestParse(t *testing.T) {
	requireT := require.New(t)

	r, err := capability.Parse([]byte(`{"apiVersion":2,"supports":{"presence":{},"video":{"sharedFrame":{}},"dialog":{}}}`))
	requireT.NoError(err)
	requireT.Equal(2, r.APIVersion)
	requireT.NotNil(r.Supports.Presence)
	requireT.NotNil(r.Supports.Video)
	requireT.NotNil(r.Supports.Video.SharedFrame)
	requireT.Nil(r.Supports.Video.MediaStream)
	requireT.NotNil(r.Supports.Dialog)
	requireT.Nil(r.Supports.Dialog.Bot)
	requireT.Nil(r.Supports.BarCode)

	_, err = capability.Parse([]byte(`{"supports":{}}`))
	requireT.Error(err)

	_, err = capability.Parse([]byte(`2.0.1`))
	requireT.Error(err)
}

func TestParseTruthyValues(t *testing.T) {
	requireT := require.New(t)

	r, err := capability.Parse([]byte(`{"apiVersion":4,"supports":{
		"presence":true,
		"mail":1,
		"chat":"x",
		"call":[],
		"calendar":false,
		"meeting":0,
		"menus":"",
		"people":null,
		"teams":{"fullTrust":true},
		"pages":{"tabs":{},"config":false},
		"video":true
	}}`))
	requireT.NoError(err)
	requireT.Equal(capability.Supports{
		Presence: &capability.Feature{},
		Mail:     &capability.Feature{},
		Chat:     &capability.Feature{},
		Call:     &capability.Feature{},
		Teams: &capability.Teams{
			FullTrust: &capability.TeamsFullTrust{},
		},
		Pages: &capability.Pages{
			Tabs: &capability.Feature{},
		},
		Video: &capability.Video{},
	}, r.Supports)
}

func TestBackCompatRuntime(t *testing.T) {
	requireT := require.New(t)

	r := capability.BackCompatRuntime("1.8.0", wire.HostClientDesktop)
	requireT.True(r.IsLegacyTeams)
	requireT.Nil(r.Supports.Location)
	requireT.Nil(r.Supports.People)
	requireT.NotNil(r.Supports.Pages)
	requireT.NotNil(r.Supports.Pages.Tabs)

	r = capability.BackCompatRuntime("2.0.1", wire.HostClientDesktop)
	requireT.NotNil(r.Supports.Location)
	requireT.NotNil(r.Supports.People)
	requireT.NotNil(r.Supports.WebStorage)
	requireT.NotNil(r.Supports.Teams.FullTrust.JoinedTeams)

	r = capability.BackCompatRuntime("2.0.1", wire.HostClientAndroid)
	requireT.Nil(r.Supports.WebStorage)
	requireT.NotNil(r.Supports.Teams.FullTrust.JoinedTeams)

	r = capability.BackCompatRuntime("2.0.5", wire.HostClientAndroid)
	requireT.NotNil(r.Supports.WebStorage)

	r = capability.BackCompatRuntime("2.0.5", wire.HostClientIPadOS)
	requireT.Nil(r.Supports.Location)
	requireT.Nil(r.Supports.WebStorage)
}

func TestMergeKeepsSiblings(t *testing.T) {
	requireT := require.New(t)

	s := capability.Supports{Pages: &capability.Pages{Tabs: &capability.Feature{}}}
	merged := s.Merge(capability.Supports{Pages: &capability.Pages{Config: &capability.Feature{}}})

	requireT.NotNil(merged.Pages.Tabs)
	requireT.NotNil(merged.Pages.Config)
	requireT.Nil(merged.Pages.BackStack)
	requireT.Nil(s.Pages.Config)
}
