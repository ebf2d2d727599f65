package actions

import (
	"net/url"
	"strings"
)

// Query parameters carried by provider action links.
const (
	ParamMode        = "mode"
	ParamActionCode  = "oobCode"
	ParamContinueURL = "continueUrl"
	ParamEmail       = "email"
	ParamName        = "name"
)

// ParseActionLink decodes the raw query string of an inbound action link.
// It never fails: malformed input yields an Unknown mode or an empty code,
// which the flow maps to a terminal error.
func ParseActionLink(rawQuery string) ActionRequest {
	rawQuery = strings.TrimPrefix(strings.TrimSpace(rawQuery), "?")
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		// ParseQuery keeps every pair it could decode alongside the error.
		if values == nil {
			return ActionRequest{Mode: ModeUnknown}
		}
	}
	return ParseActionValues(values)
}

// ParseActionURL parses a full action link URL.
func ParseActionURL(link string) ActionRequest {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return ActionRequest{Mode: ModeUnknown}
	}
	return ParseActionLink(u.RawQuery)
}

// ParseActionValues builds a request from already decoded query values.
func ParseActionValues(values url.Values) ActionRequest {
	req := ActionRequest{
		Mode:        parseMode(values.Get(ParamMode)),
		ActionCode:  strings.TrimSpace(values.Get(ParamActionCode)),
		Email:       strings.TrimSpace(values.Get(ParamEmail)),
		DisplayName: strings.TrimSpace(values.Get(ParamName)),
	}

	continueURL := strings.TrimSpace(values.Get(ParamContinueURL))
	if continueURL == "" {
		return req
	}

	req.ContinueURL = decodeContinueURL(continueURL)

	email, name := continueHints(req.ContinueURL)
	if req.Email == "" {
		req.Email = email
	}
	if req.DisplayName == "" {
		req.DisplayName = name
	}

	return req
}

func parseMode(raw string) ActionMode {
	switch ActionMode(strings.TrimSpace(raw)) {
	case ModeVerifyEmail:
		return ModeVerifyEmail
	case ModeResetPassword:
		return ModeResetPassword
	default:
		return ModeUnknown
	}
}

// decodeContinueURL undoes the extra layer of percent-encoding some mail
// clients and providers leave on the nested URL.
func decodeContinueURL(raw string) string {
	decoded := raw
	for i := 0; i < 2; i++ {
		if !strings.Contains(decoded, "%") {
			break
		}
		next, err := url.QueryUnescape(decoded)
		if err != nil {
			break
		}
		decoded = next
	}
	return decoded
}

// continueHints pulls email and name from the nested URL's query. They are
// UX hints only and never used for authorization.
func continueHints(continueURL string) (string, string) {
	rawQuery := ""
	if u, err := url.Parse(continueURL); err == nil {
		rawQuery = u.RawQuery
	} else if idx := strings.Index(continueURL, "?"); idx >= 0 {
		rawQuery = continueURL[idx+1:]
	}

	if rawQuery == "" {
		return "", ""
	}

	values, _ := url.ParseQuery(rawQuery)
	if values == nil {
		return "", ""
	}

	return strings.TrimSpace(values.Get(ParamEmail)), strings.TrimSpace(values.Get(ParamName))
}
