package automation

import (
	"regexp"
	"strings"

	"github.com/Tiliavir/showrun/internal/timecalc"
)

var templateRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

const humanPrefix = "human."

// Formatters for human.* aliases, keyed by the last path segment.
var (
	clockFields = map[string]bool{
		"clock": true, "timeStart": true, "timeEnd": true,
	}
	durationFields = map[string]bool{
		"current": true, "duration": true, "elapsed": true, "addedTime": true,
		"secondaryTimer": true, "offset": true, "delay": true, "gap": true,
	}
)

// Render replaces every {{path}} in s with the resolved state value.
// {{human.path}} formats millisecond values for people: times of day as
// HH:MM:SS and durations signed. Unknown paths render empty.
func Render(s string, tree any) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return templateRe.ReplaceAllStringFunc(s, func(m string) string {
		key := templateRe.FindStringSubmatch(m)[1]
		human := strings.HasPrefix(key, humanPrefix)
		if human {
			key = strings.TrimPrefix(key, humanPrefix)
		}
		path, err := ParseFieldPath(key)
		if err != nil {
			return ""
		}
		v, found := path.Resolve(tree)
		if !found {
			return ""
		}
		if human {
			return humanValue(path[len(path)-1], v)
		}
		return stringValue(v)
	})
}

func humanValue(field string, v any) string {
	raw := stringValue(v)
	ms, ok := number(raw)
	if !ok {
		return raw
	}
	switch {
	case clockFields[field]:
		return timecalc.FormatClock(int64(ms))
	case durationFields[field]:
		return timecalc.FormatDurationHHMMSS(int64(ms))
	}
	return raw
}

// RenderOutput resolves every templated field of o.
func RenderOutput(automationID string, o Output, tree any) Payload {
	return Payload{
		Type:         o.Type,
		AutomationID: automationID,
		TargetIP:     o.TargetIP,
		TargetPort:   o.TargetPort,
		Address:      Render(o.Address, tree),
		Args:         Render(o.Args, tree),
		URL:          Render(o.URL, tree),
		Method:       o.Method,
		Body:         Render(o.Body, tree),
		Action:       o.Action,
		Value:        Render(o.Value, tree),
	}
}
