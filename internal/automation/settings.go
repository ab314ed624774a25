// Package automation decides which automations a playback lifecycle moment
// fires, evaluates their filters against the playback state and hands the
// rendered outputs to senders.
package automation

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Tiliavir/showrun/internal/model"
	"github.com/Tiliavir/showrun/internal/rundown"
)

// Settings is the project's automation configuration.
type Settings struct {
	Enabled     bool                  `json:"enabled"`
	Triggers    []model.Trigger       `json:"triggers"`
	Automations map[string]Automation `json:"automations"`
}

// FilterRule combines filter results.
type FilterRule string

const (
	RuleAll FilterRule = "all"
	RuleAny FilterRule = "any"
)

// Operator compares a resolved state value with a filter value.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
)

func (o Operator) Valid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpContains, OpNotContains:
		return true
	}
	return false
}

// Filter tests one state value, e.g. eventNow.custom.lighting equals "on".
type Filter struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
}

// Automation is a filter set plus the outputs sent when it passes.
type Automation struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	FilterRule FilterRule `json:"filterRule"`
	Filters    []Filter   `json:"filters"`
	Outputs    []Output   `json:"outputs"`
}

// OutputType tags an output.
type OutputType string

const (
	OutputOSC    OutputType = "osc"
	OutputHTTP   OutputType = "http"
	OutputAction OutputType = "ontime-action"
)

// Action names an operation an ontime-action output runs on the engine.
type Action string

const (
	ActionStart   Action = "start"
	ActionPause   Action = "pause"
	ActionStop    Action = "stop"
	ActionLoad    Action = "load"
	ActionRoll    Action = "roll"
	ActionAddTime Action = "addtime"
)

func (a Action) Valid() bool {
	switch a {
	case ActionStart, ActionPause, ActionStop, ActionLoad, ActionRoll, ActionAddTime:
		return true
	}
	return false
}

// Output is one configured destination. Which fields apply depends on
// Type. String fields may contain {{path}} templates.
type Output struct {
	Type OutputType `json:"type"`

	TargetIP   string `json:"targetIP,omitempty"`
	TargetPort int    `json:"targetPort,omitempty"`
	Address    string `json:"address,omitempty"`
	Args       string `json:"args,omitempty"`

	URL    string `json:"url,omitempty"`
	Method string `json:"method,omitempty"`
	Body   string `json:"body,omitempty"`

	Action Action `json:"action,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Payload is an output with its templates resolved, ready for a Sender.
type Payload struct {
	Type         OutputType `json:"type"`
	AutomationID string     `json:"automationId"`

	TargetIP   string `json:"targetIP,omitempty"`
	TargetPort int    `json:"targetPort,omitempty"`
	Address    string `json:"address,omitempty"`
	Args       string `json:"args,omitempty"`

	URL    string `json:"url,omitempty"`
	Method string `json:"method,omitempty"`
	Body   string `json:"body,omitempty"`

	Action Action `json:"action,omitempty"`
	Value  string `json:"value,omitempty"`
}

func invalid(field, format string, args ...any) error {
	return &rundown.ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ValidateSettings checks every automation and that triggers point at
// existing automations.
func ValidateSettings(s Settings, fields model.CustomFields) error {
	for id, a := range s.Automations {
		if a.ID != "" && a.ID != id {
			return invalid("automations", "automation stored as %q has id %q", id, a.ID)
		}
		if err := ValidateAutomation(a, fields); err != nil {
			return fmt.Errorf("automation %s: %w", id, err)
		}
	}
	return ValidateTriggers(s.Triggers, s.Automations)
}

// ValidateTriggers checks lifecycle keys and automation references.
func ValidateTriggers(triggers []model.Trigger, automations map[string]Automation) error {
	for _, t := range triggers {
		if !t.Trigger.Valid() {
			return invalid("triggers", "unknown lifecycle %q", t.Trigger)
		}
		if _, ok := automations[t.AutomationID]; !ok {
			return invalid("triggers", "trigger %q references unknown automation %q", t.ID, t.AutomationID)
		}
	}
	return nil
}

// ValidateAutomation rejects malformed filters, filters on custom fields
// the project does not declare and incomplete outputs.
func ValidateAutomation(a Automation, fields model.CustomFields) error {
	switch a.FilterRule {
	case RuleAll, RuleAny, "":
	default:
		return invalid("filterRule", "unknown rule %q", a.FilterRule)
	}
	for _, f := range a.Filters {
		path, err := ParseFieldPath(f.Field)
		if err != nil {
			return invalid("filters", "%v", err)
		}
		if !f.Operator.Valid() {
			return invalid("filters", "unknown operator %q", f.Operator)
		}
		if label, ok := path.customField(); ok {
			if _, declared := fields[label]; !declared {
				return invalid("filters", "%q is not a declared custom field", label)
			}
		}
	}
	for _, o := range a.Outputs {
		if err := validateOutput(o); err != nil {
			return err
		}
	}
	return nil
}

func validateOutput(o Output) error {
	switch o.Type {
	case OutputOSC:
		if o.TargetIP == "" || o.TargetPort <= 0 || o.TargetPort > 65535 {
			return invalid("outputs", "osc output needs a target ip and port")
		}
		if !strings.HasPrefix(o.Address, "/") {
			return invalid("outputs", "osc address %q must start with /", o.Address)
		}
	case OutputHTTP:
		u, err := url.Parse(o.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return invalid("outputs", "http output needs an http(s) url, got %q", o.URL)
		}
	case OutputAction:
		if !o.Action.Valid() {
			return invalid("outputs", "unknown action %q", o.Action)
		}
	default:
		return invalid("outputs", "unknown output type %q", o.Type)
	}
	return nil
}
