package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Report is one WAF security event. It carries the fixed set of fields the
// index understands plus an open Extra map so unknown fields survive a
// round trip through the query API untouched.
type Report struct {
	ID           string
	Date         float64
	HasDate      bool
	ServerName   string
	IP           string
	SecurityMode string // block|allow
	Status       string // indexed and compared as its string form
	Reason       string
	Country      string
	Method       string
	URL          string
	UserAgent    string

	// DateHuman is filled in at query time, never stored.
	DateHuman string

	Extra map[string]json.RawMessage
}

// AttributeField maps an index set kind to the record field it indexes.
type AttributeField struct {
	Kind  string
	Field string
}

// AttributeFields is the static table of indexed attributes. The kinds double
// as key sub-namespaces (<prefix>:<kind>:<value>).
var AttributeFields = []AttributeField{
	{Kind: "ip", Field: "ip"},
	{Kind: "server", Field: "server_name"},
	{Kind: "mode", Field: "security_mode"},
	{Kind: "status", Field: "status"},
	{Kind: "reason", Field: "reason"},
	{Kind: "country", Field: "country"},
	{Kind: "method", Field: "method"},
}

// AttributeValue returns the record's value for an index kind, or "" when the
// field is absent.
func (r *Report) AttributeValue(kind string) string {
	switch kind {
	case "ip":
		return r.IP
	case "server":
		return r.ServerName
	case "mode":
		return r.SecurityMode
	case "status":
		return r.Status
	case "reason":
		return r.Reason
	case "country":
		return r.Country
	case "method":
		return r.Method
	}
	return ""
}

// UnmarshalJSON decodes a raw event. Known fields land in struct fields,
// everything else is kept verbatim in Extra. date and status accept both
// JSON numbers and numeric strings.
func (r *Report) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	for key, raw := range fields {
		switch key {
		case "id":
			r.ID = asString(raw)
		case "date":
			if v, ok := asFloat(raw); ok {
				r.Date = v
				r.HasDate = true
			}
		case "server_name":
			r.ServerName = asString(raw)
		case "ip":
			r.IP = asString(raw)
		case "security_mode":
			r.SecurityMode = asString(raw)
		case "status":
			r.Status = asScalarString(raw)
		case "reason":
			r.Reason = asString(raw)
		case "country":
			r.Country = asString(raw)
		case "method":
			r.Method = asString(raw)
		case "url":
			r.URL = asString(raw)
		case "user_agent":
			r.UserAgent = asString(raw)
		default:
			if r.Extra == nil {
				r.Extra = make(map[string]json.RawMessage)
			}
			r.Extra[key] = raw
		}
	}

	return nil
}

// MarshalJSON re-emits known fields under their wire names, followed by the
// preserved Extra fields and, when set, the query-time _date_human annotation.
func (r Report) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+12)

	if r.ID != "" {
		out["id"] = r.ID
	}
	if r.HasDate {
		out["date"] = r.Date
	}
	putNonEmpty(out, "server_name", r.ServerName)
	putNonEmpty(out, "ip", r.IP)
	putNonEmpty(out, "security_mode", r.SecurityMode)
	if r.Status != "" {
		if n, err := strconv.Atoi(r.Status); err == nil {
			out["status"] = n
		} else {
			out["status"] = r.Status
		}
	}
	putNonEmpty(out, "reason", r.Reason)
	putNonEmpty(out, "country", r.Country)
	putNonEmpty(out, "method", r.Method)
	putNonEmpty(out, "url", r.URL)
	putNonEmpty(out, "user_agent", r.UserAgent)
	putNonEmpty(out, "_date_human", r.DateHuman)

	for key, raw := range r.Extra {
		out[key] = raw
	}

	return json.Marshal(out)
}

func putNonEmpty(out map[string]any, key, val string) {
	if val != "" {
		out[key] = val
	}
}

func asString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// asScalarString renders a JSON string or number as a plain string, matching
// how attribute values are keyed in the index.
func asScalarString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func asFloat(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
