package capability

import (
	"strconv"
	"strings"

	"github.com/outofforest/hostlink/wire"
)

// DefaultClientSDKVersion is assumed when the host does not report its supported SDK version.
const DefaultClientSDKVersion = "2.0.1"

// CompareVersions compares dotted numeric versions.
//
// Missing trailing parts are zero, so "1.2" equals "1.2.0". If any part is not a plain
// non-negative integer, ok is false.
func CompareVersions(v1, v2 string) (result int, ok bool) {
	p1, ok := versionParts(v1)
	if !ok {
		return 0, false
	}
	p2, ok := versionParts(v2)
	if !ok {
		return 0, false
	}

	for len(p1) < len(p2) {
		p1 = append(p1, 0)
	}
	for len(p2) < len(p1) {
		p2 = append(p2, 0)
	}

	for i := range p1 {
		switch {
		case p1[i] > p2[i]:
			return 1, true
		case p1[i] < p2[i]:
			return -1, true
		}
	}
	return 0, true
}

// AtLeast reports whether version is equal to or newer than required.
func AtLeast(version, required string) bool {
	result, ok := CompareVersions(version, required)
	return ok && result >= 0
}

func versionParts(v string) ([]uint64, bool) {
	if v == "" {
		return nil, false
	}
	parts := strings.Split(v, ".")
	res := make([]uint64, 0, len(parts))
	for _, p := range parts {
		if p == "" || strings.TrimLeft(p, "0123456789") != "" {
			return nil, false
		}
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, false
		}
		res = append(res, n)
	}
	return res, true
}

type versionRequirement struct {
	Capability      Supports
	HostClientTypes []wire.HostClientType
}

var v1HostClientTypes = []wire.HostClientType{
	wire.HostClientDesktop,
	wire.HostClientWeb,
	wire.HostClientAndroid,
	wire.HostClientIOS,
	wire.HostClientRigel,
	wire.HostClientSurfaceHub,
	wire.HostClientTeamsRoomsWindows,
	wire.HostClientTeamsRoomsAndroid,
	wire.HostClientTeamsPhones,
	wire.HostClientTeamsDisplays,
}

// versionRequirements is ordered by version.
var versionRequirements = []struct {
	Version      string
	Requirements []versionRequirement
}{
	{
		Version: "1.9.0",
		Requirements: []versionRequirement{
			{Capability: Supports{Location: &Feature{}}, HostClientTypes: v1HostClientTypes},
		},
	},
	{
		Version: "2.0.0",
		Requirements: []versionRequirement{
			{Capability: Supports{People: &Feature{}}, HostClientTypes: v1HostClientTypes},
		},
	},
	{
		Version: "2.0.1",
		Requirements: []versionRequirement{
			{
				Capability: Supports{Teams: &Teams{FullTrust: &TeamsFullTrust{JoinedTeams: &Feature{}}}},
				HostClientTypes: []wire.HostClientType{
					wire.HostClientAndroid,
					wire.HostClientDesktop,
					wire.HostClientIOS,
					wire.HostClientTeamsRoomsAndroid,
					wire.HostClientTeamsPhones,
					wire.HostClientTeamsDisplays,
					wire.HostClientWeb,
				},
			},
			{
				Capability:      Supports{WebStorage: &Feature{}},
				HostClientTypes: []wire.HostClientType{wire.HostClientDesktop},
			},
		},
	},
	{
		Version: "2.0.5",
		Requirements: []versionRequirement{
			{
				Capability: Supports{WebStorage: &Feature{}},
				HostClientTypes: []wire.HostClientType{
					wire.HostClientAndroid,
					wire.HostClientDesktop,
					wire.HostClientIOS,
				},
			},
		},
	},
}

// LegacyRuntime returns descriptor of hosts predating the structured descriptor.
func LegacyRuntime() Runtime {
	return Runtime{
		APIVersion:    1,
		IsLegacyTeams: true,
		Supports: Supports{
			AppInstallDialog: &Feature{},
			AppEntity:        &Feature{},
			Call:             &Feature{},
			Chat:             &Feature{},
			Conversations:    &Feature{},
			Dialog: &Dialog{
				Bot:    &Feature{},
				Update: &Feature{},
			},
			Logs:          &Feature{},
			MeetingRoom:   &Feature{},
			Menus:         &Feature{},
			Monetization:  &Feature{},
			Notifications: &Feature{},
			Pages: &Pages{
				AppButton: &Feature{},
				Tabs:      &Feature{},
				Config:    &Feature{},
				BackStack: &Feature{},
				FullTrust: &Feature{},
			},
			RemoteCamera: &Feature{},
			Sharing:      &Feature{},
			StageView:    &Feature{},
			Teams: &Teams{
				FullTrust: &TeamsFullTrust{},
			},
			TeamsCore: &Feature{},
			Video:     &Video{},
		},
	}
}

// BackCompatRuntime builds descriptor for a legacy host from the highest SDK version it supports.
func BackCompatRuntime(highestSupportedVersion string, clientType wire.HostClientType) Runtime {
	r := LegacyRuntime()
	for _, v := range versionRequirements {
		if !AtLeast(highestSupportedVersion, v.Version) {
			continue
		}
		for _, req := range v.Requirements {
			for _, t := range req.HostClientTypes {
				if t == clientType {
					r.Supports = r.Supports.Merge(req.Capability)
					break
				}
			}
		}
	}
	return r
}
