package wire

// FrameContext is the surface the app is running in.
type FrameContext string

// Frame contexts.
const (
	FrameContextSettings       FrameContext = "settings"
	FrameContextContent        FrameContext = "content"
	FrameContextAuthentication FrameContext = "authentication"
	FrameContextRemove         FrameContext = "remove"
	FrameContextTask           FrameContext = "task"
	FrameContextSidePanel      FrameContext = "sidePanel"
	FrameContextStage          FrameContext = "stage"
	FrameContextMeetingStage   FrameContext = "meetingStage"
)

// Valid reports whether c belongs to the closed set of frame contexts.
func (c FrameContext) Valid() bool {
	switch c {
	case FrameContextSettings, FrameContextContent, FrameContextAuthentication, FrameContextRemove,
		FrameContextTask, FrameContextSidePanel, FrameContextStage, FrameContextMeetingStage:
		return true
	default:
		return false
	}
}

// HostClientType is the client platform of the host.
type HostClientType string

// Host client types.
const (
	HostClientDesktop           HostClientType = "desktop"
	HostClientWeb               HostClientType = "web"
	HostClientAndroid           HostClientType = "android"
	HostClientIOS               HostClientType = "ios"
	HostClientIPadOS            HostClientType = "ipados"
	HostClientRigel             HostClientType = "rigel"
	HostClientSurfaceHub        HostClientType = "surfaceHub"
	HostClientTeamsRoomsWindows HostClientType = "teamsRoomsWindows"
	HostClientTeamsRoomsAndroid HostClientType = "teamsRoomsAndroid"
	HostClientTeamsPhones       HostClientType = "teamsPhones"
	HostClientTeamsDisplays     HostClientType = "teamsDisplays"
)

// Mobile reports whether the host runs on a phone or tablet.
func (t HostClientType) Mobile() bool {
	return t == HostClientAndroid || t == HostClientIOS || t == HostClientIPadOS
}
