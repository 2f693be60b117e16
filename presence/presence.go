// Package presence reads and sets presence status of users.
package presence

import (
	"slices"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/outofforest/hostlink"
	"github.com/outofforest/hostlink/wire"
)

// Status is presence status of a user.
type Status string

// Presence statuses.
const (
	Available    Status = "Available"
	Busy         Status = "Busy"
	DoNotDisturb Status = "DoNotDisturb"
	Away         Status = "Away"
	Offline      Status = "Offline"
	OutOfOffice  Status = "OutOfOffice"
)

var statuses = []Status{Available, Busy, DoNotDisturb, Away, Offline, OutOfOffice}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return slices.Contains(statuses, s)
}

// OutOfOfficeDetails describes out of office period. Times are RFC 3339 strings.
type OutOfOfficeDetails struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Message   string `json:"message"`
}

// UserPresence is presence of a user.
type UserPresence struct {
	Status             Status              `json:"status"`
	CustomMessage      string              `json:"customMessage,omitempty"`
	OutOfOfficeDetails *OutOfOfficeDetails `json:"outOfOfficeDetails,omitempty"`
}

// GetPresenceParams are parameters of GetPresence.
type GetPresenceParams struct {
	UPN string `json:"upn"`
}

// SetPresenceParams are parameters of SetPresence.
type SetPresenceParams struct {
	Status             Status              `json:"status"`
	CustomMessage      string              `json:"customMessage,omitempty"`
	OutOfOfficeDetails *OutOfOfficeDetails `json:"outOfOfficeDetails,omitempty"`
}

type serializableParams struct {
	value any
}

func (p serializableParams) Serialize() any {
	return p.value
}

// Presence is the presence capability of the host.
type Presence struct {
	client *hostlink.Client
}

// New creates presence capability.
func New(client *hostlink.Client) *Presence {
	return &Presence{client: client}
}

// IsSupported reports whether host supports presence.
func (p *Presence) IsSupported() (bool, error) {
	if err := p.client.EnsureInitialized(); err != nil {
		return false, err
	}
	return p.client.Runtime().Supports.Presence != nil, nil
}

// GetPresence returns presence of user.
func (p *Presence) GetPresence(params GetPresenceParams) (*hostlink.Future[UserPresence], error) {
	if err := p.ensureSupported(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.UPN) == "" {
		return nil, invalidArguments("UPN cannot be null or empty")
	}

	return hostlink.Call(p.client, "presence.getPresence", []any{serializable(params)},
		hostlink.ResponseHandlerFuncs[UserPresence]{
			ValidateFunc:    validateUserPresence,
			DeserializeFunc: hostlink.Convert[UserPresence],
		})
}

// SetPresence sets presence of the current user.
func (p *Presence) SetPresence(params SetPresenceParams) (*hostlink.Future[struct{}], error) {
	if err := p.ensureSupported(); err != nil {
		return nil, err
	}
	if !params.Status.Valid() {
		return nil, invalidArguments("Invalid presence status")
	}
	if err := validateOutOfOfficeDetails(params.Status, params.OutOfOfficeDetails); err != nil {
		return nil, err
	}

	return hostlink.Call(p.client, "presence.setPresence", []any{serializable(params)},
		hostlink.ResponseHandlerFuncs[struct{}]{
			ValidateFunc: func(raw any) bool {
				return raw == nil
			},
			DeserializeFunc: func(any) (struct{}, error) {
				return struct{}{}, nil
			},
		})
}

func (p *Presence) ensureSupported() error {
	if err := p.client.EnsureInitialized(wire.FrameContextContent); err != nil {
		return err
	}
	if p.client.Runtime().Supports.Presence == nil {
		return errors.WithStack(hostlink.ErrNotSupportedOnPlatform)
	}
	return nil
}

func serializable(v any) hostlink.Serializable {
	return serializableParams{value: v}
}

func validateUserPresence(raw any) bool {
	up, err := hostlink.Convert[UserPresence](raw)
	if err != nil || raw == nil || !up.Status.Valid() {
		return false
	}
	if up.OutOfOfficeDetails == nil {
		return true
	}
	if up.Status != OutOfOffice {
		return false
	}
	_, _, err = parsePeriod(up.OutOfOfficeDetails)
	return err == nil && up.OutOfOfficeDetails.Message != ""
}

func validateOutOfOfficeDetails(status Status, details *OutOfOfficeDetails) error {
	if details == nil {
		if status == OutOfOffice {
			return invalidArguments("Out of office details required when status is OutOfOffice")
		}
		return nil
	}
	if status != OutOfOffice {
		return invalidArguments("Out of office details only valid when status is OutOfOffice")
	}
	if details.StartTime == "" || details.EndTime == "" || details.Message == "" {
		return invalidArguments("Out of office details must include startTime, endTime, and message")
	}

	start, end, err := parsePeriod(details)
	if err != nil {
		return invalidArguments("Invalid date format for out of office times")
	}
	if !end.After(start) {
		return invalidArguments("Out of office end time must be after start time")
	}
	return nil
}

func parsePeriod(details *OutOfOfficeDetails) (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339, details.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, errors.WithStack(err)
	}
	end, err := time.Parse(time.RFC3339, details.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, errors.WithStack(err)
	}
	return start, end, nil
}

func invalidArguments(message string) error {
	return errors.WithStack(wire.SdkError{
		ErrorCode: wire.InvalidArguments,
		Message:   message,
	})
}
