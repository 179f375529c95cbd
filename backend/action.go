package backend

import "strings"

// Action is the decision backend's verdict discriminator. The set is closed:
// anything the backend sends that is not listed here decodes to ActionUnknown.
type Action int

const (
	ActionUnknown Action = iota
	ActionBadRequest
	ActionInteraction
	ActionNoInteraction
	ActionLocation
	ActionForm
	ActionOK
	ActionCreated
	ActionNoContent
	ActionUnauthorized
	ActionForbidden
	ActionNotFound
	ActionInternalServerError
	ActionInvalidClient
	ActionPassword
	ActionIDTokenReissuable
	ActionJSON
	ActionJWT
	ActionPayloadTooLarge
	ActionCallerError
)

var actionNames = map[Action]string{
	ActionUnknown:             "UNKNOWN",
	ActionBadRequest:          "BAD_REQUEST",
	ActionInteraction:         "INTERACTION",
	ActionNoInteraction:       "NO_INTERACTION",
	ActionLocation:            "LOCATION",
	ActionForm:                "FORM",
	ActionOK:                  "OK",
	ActionCreated:             "CREATED",
	ActionNoContent:           "NO_CONTENT",
	ActionUnauthorized:        "UNAUTHORIZED",
	ActionForbidden:           "FORBIDDEN",
	ActionNotFound:            "NOT_FOUND",
	ActionInternalServerError: "INTERNAL_SERVER_ERROR",
	ActionInvalidClient:       "INVALID_CLIENT",
	ActionPassword:            "PASSWORD",
	ActionIDTokenReissuable:   "ID_TOKEN_REISSUABLE",
	ActionJSON:                "JSON",
	ActionJWT:                 "JWT",
	ActionPayloadTooLarge:     "PAYLOAD_TOO_LARGE",
	ActionCallerError:         "CALLER_ERROR",
}

var actionsByName = func() map[string]Action {
	m := make(map[string]Action, len(actionNames))
	for a, name := range actionNames {
		if a != ActionUnknown {
			m[name] = a
		}
	}
	// Backends that abbreviate the internal error action.
	m["INTERNAL_ERROR"] = ActionInternalServerError
	m["INTERNAL"] = ActionInternalServerError
	return m
}()

// ParseAction decodes a wire action name. Unrecognized names return ActionUnknown.
func ParseAction(name string) Action {
	if a, ok := actionsByName[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return a
	}
	return ActionUnknown
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return actionNames[ActionUnknown]
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(text []byte) error {
	*a = ParseAction(string(text))
	return nil
}
