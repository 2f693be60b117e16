// Package capability describes which host features are available in a session.
//
// A feature is supported iff its field in Supports is non-nil. Sub-features are independent:
// a non-nil parent does not imply any non-nil child.
package capability

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Feature marks a supported capability without sub-features.
type Feature struct{}

// UnmarshalJSON accepts any value. Whether the feature is present is decided by its parent.
func (f *Feature) UnmarshalJSON([]byte) error {
	return nil
}

// Supports lists namespaces the host implements.
type Supports struct {
	AppInstallDialog *Feature     `json:"appInstallDialog,omitempty" yaml:"appInstallDialog,omitempty"`
	AppEntity        *Feature     `json:"appEntity,omitempty" yaml:"appEntity,omitempty"`
	BarCode          *Feature     `json:"barCode,omitempty" yaml:"barCode,omitempty"`
	Calendar         *Feature     `json:"calendar,omitempty" yaml:"calendar,omitempty"`
	Call             *Feature     `json:"call,omitempty" yaml:"call,omitempty"`
	Chat             *Feature     `json:"chat,omitempty" yaml:"chat,omitempty"`
	Conversations    *Feature     `json:"conversations,omitempty" yaml:"conversations,omitempty"`
	Dialog           *Dialog      `json:"dialog,omitempty" yaml:"dialog,omitempty"`
	GeoLocation      *GeoLocation `json:"geoLocation,omitempty" yaml:"geoLocation,omitempty"`
	Location         *Feature     `json:"location,omitempty" yaml:"location,omitempty"`
	Logs             *Feature     `json:"logs,omitempty" yaml:"logs,omitempty"`
	Mail             *Feature     `json:"mail,omitempty" yaml:"mail,omitempty"`
	Meeting          *Feature     `json:"meeting,omitempty" yaml:"meeting,omitempty"`
	MeetingRoom      *Feature     `json:"meetingRoom,omitempty" yaml:"meetingRoom,omitempty"`
	Menus            *Feature     `json:"menus,omitempty" yaml:"menus,omitempty"`
	Monetization     *Feature     `json:"monetization,omitempty" yaml:"monetization,omitempty"`
	Notifications    *Feature     `json:"notifications,omitempty" yaml:"notifications,omitempty"`
	Pages            *Pages       `json:"pages,omitempty" yaml:"pages,omitempty"`
	People           *Feature     `json:"people,omitempty" yaml:"people,omitempty"`
	Permissions      *Feature     `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	Presence         *Feature     `json:"presence,omitempty" yaml:"presence,omitempty"`
	Profile          *Feature     `json:"profile,omitempty" yaml:"profile,omitempty"`
	RemoteCamera     *Feature     `json:"remoteCamera,omitempty" yaml:"remoteCamera,omitempty"`
	Search           *Feature     `json:"search,omitempty" yaml:"search,omitempty"`
	Sharing          *Feature     `json:"sharing,omitempty" yaml:"sharing,omitempty"`
	StageView        *Feature     `json:"stageView,omitempty" yaml:"stageView,omitempty"`
	Teams            *Teams       `json:"teams,omitempty" yaml:"teams,omitempty"`
	TeamsCore        *Feature     `json:"teamsCore,omitempty" yaml:"teamsCore,omitempty"`
	Video            *Video       `json:"video,omitempty" yaml:"video,omitempty"`
	WebStorage       *Feature     `json:"webStorage,omitempty" yaml:"webStorage,omitempty"`
}

// Dialog sub-features.
type Dialog struct {
	Bot    *Feature `json:"bot,omitempty" yaml:"bot,omitempty"`
	Update *Feature `json:"update,omitempty" yaml:"update,omitempty"`
}

// GeoLocation sub-features.
type GeoLocation struct {
	Map *Feature `json:"map,omitempty" yaml:"map,omitempty"`
}

// Pages sub-features.
type Pages struct {
	AppButton *Feature `json:"appButton,omitempty" yaml:"appButton,omitempty"`
	Tabs      *Feature `json:"tabs,omitempty" yaml:"tabs,omitempty"`
	Config    *Feature `json:"config,omitempty" yaml:"config,omitempty"`
	BackStack *Feature `json:"backStack,omitempty" yaml:"backStack,omitempty"`
	FullTrust *Feature `json:"fullTrust,omitempty" yaml:"fullTrust,omitempty"`
}

// Teams sub-features.
type Teams struct {
	FullTrust *TeamsFullTrust `json:"fullTrust,omitempty" yaml:"fullTrust,omitempty"`
}

// TeamsFullTrust sub-features.
type TeamsFullTrust struct {
	JoinedTeams *Feature `json:"joinedTeams,omitempty" yaml:"joinedTeams,omitempty"`
}

// Video sub-features.
//
// MediaStream and SharedFrame are mutually exclusive frame delivery modes; callers branch on
// whichever is present.
type Video struct {
	MediaStream *Feature `json:"mediaStream,omitempty" yaml:"mediaStream,omitempty"`
	SharedFrame *Feature `json:"sharedFrame,omitempty" yaml:"sharedFrame,omitempty"`
}

// UnmarshalJSON decodes namespaces. Keys with falsy values are absent, any other value marks
// the namespace as present.
func (s *Supports) UnmarshalJSON(data []byte) error {
	type supports Supports
	return unmarshalFeatures(data, (*supports)(s))
}

// UnmarshalJSON decodes sub-features like Supports does.
func (d *Dialog) UnmarshalJSON(data []byte) error {
	type dialog Dialog
	return unmarshalFeatures(data, (*dialog)(d))
}

// UnmarshalJSON decodes sub-features like Supports does.
func (g *GeoLocation) UnmarshalJSON(data []byte) error {
	type geoLocation GeoLocation
	return unmarshalFeatures(data, (*geoLocation)(g))
}

// UnmarshalJSON decodes sub-features like Supports does.
func (p *Pages) UnmarshalJSON(data []byte) error {
	type pages Pages
	return unmarshalFeatures(data, (*pages)(p))
}

// UnmarshalJSON decodes sub-features like Supports does.
func (t *Teams) UnmarshalJSON(data []byte) error {
	type teams Teams
	return unmarshalFeatures(data, (*teams)(t))
}

// UnmarshalJSON decodes sub-features like Supports does.
func (t *TeamsFullTrust) UnmarshalJSON(data []byte) error {
	type teamsFullTrust TeamsFullTrust
	return unmarshalFeatures(data, (*teamsFullTrust)(t))
}

// UnmarshalJSON decodes sub-features like Supports does.
func (v *Video) UnmarshalJSON(data []byte) error {
	type video Video
	return unmarshalFeatures(data, (*video)(v))
}

// unmarshalFeatures decodes object of features into v. Falsy values (null, false, 0, "") are
// dropped, truthy scalars and arrays become empty objects. A truthy non-object value of the
// whole set means "present, no sub-features".
func unmarshalFeatures(data []byte, v any) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.WithStack(err)
	}

	fields, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	for k, value := range fields {
		switch {
		case !truthy(value):
			delete(fields, k)
		case isObject(value):
		default:
			fields[k] = map[string]any{}
		}
	}

	normalized, err := json.Marshal(fields)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(json.Unmarshal(normalized, v))
}

func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	default:
		return true
	}
}

func isObject(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

// Runtime is the capability descriptor negotiated during the handshake.
type Runtime struct {
	APIVersion    int      `json:"apiVersion" yaml:"apiVersion"`
	IsLegacyTeams bool     `json:"isLegacyTeams,omitempty" yaml:"isLegacyTeams,omitempty"`
	Supports      Supports `json:"supports" yaml:"supports"`
}

// LatestAPIVersion is the newest descriptor version this library understands.
const LatestAPIVersion = 4

// Parse decodes descriptor sent by the host.
func Parse(data []byte) (Runtime, error) {
	var r Runtime
	if err := json.Unmarshal(data, &r); err != nil {
		return Runtime{}, errors.Wrap(err, "decoding runtime config failed")
	}
	if r.APIVersion == 0 {
		return Runtime{}, errors.New("runtime config has no api version")
	}
	return r, nil
}

// Clone returns a deep copy of the descriptor.
func (r Runtime) Clone() Runtime {
	data, err := json.Marshal(r)
	if err != nil {
		panic(err)
	}
	var c Runtime
	if err := json.Unmarshal(data, &c); err != nil {
		panic(err)
	}
	return c
}

// Merge returns supports extended with every feature present in other.
func (s Supports) Merge(other Supports) Supports {
	a, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	b, err := json.Marshal(other)
	if err != nil {
		panic(err)
	}

	var am, bm map[string]any
	if err := json.Unmarshal(a, &am); err != nil {
		panic(err)
	}
	if err := json.Unmarshal(b, &bm); err != nil {
		panic(err)
	}

	merged, err := json.Marshal(mergeMaps(am, bm))
	if err != nil {
		panic(err)
	}
	var result Supports
	if err := json.Unmarshal(merged, &result); err != nil {
		panic(err)
	}
	return result
}

func mergeMaps(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[k] = mergeMaps(dstMap, srcMap)
			continue
		}
		dst[k] = v
	}
	return dst
}
