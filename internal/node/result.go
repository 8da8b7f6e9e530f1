package node

import (
	"bytes"
	"encoding/json"
)

// Result is the outcome of one node command: {status, response} on success,
// {status, error} on failure.
//
// When the node printed a JSON object, the Result keeps that object verbatim
// and re-serialises it unchanged, including keys minichat does not model
// (Minima adds "command" and "pending", for example).
type Result struct {
	Status   bool
	Response any
	Error    string

	raw json.RawMessage
}

// OK returns a successful Result wrapping response.
func OK(response any) Result {
	return Result{Status: true, Response: response}
}

// Fail returns a failed Result carrying msg.
func Fail(msg string) Result {
	return Result{Status: false, Error: msg}
}

type resultJSON struct {
	Status   bool   `json:"status"`
	Response any    `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r Result) MarshalJSON() ([]byte, error) {
	if len(r.raw) > 0 {
		return r.raw, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(resultJSON{Status: r.Status, Response: r.Response, Error: r.Error}); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// UnmarshalJSON implements json.Unmarshaler. The whole object is retained so
// that marshalling the Result again is lossless.
func (r *Result) UnmarshalJSON(data []byte) error {
	res, err := parseObject(data)
	if err != nil {
		return err
	}
	*r = res
	return nil
}

// parseObject decodes a JSON object into a Result that remembers the
// original bytes. "status" must be a boolean when present; a non-string
// "error" is kept only in the raw form.
func parseObject(data []byte) (Result, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Result{}, err
	}

	var res Result
	if s, ok := fields["status"]; ok {
		if err := json.Unmarshal(s, &res.Status); err != nil {
			return Result{}, err
		}
	}
	if resp, ok := fields["response"]; ok {
		if err := json.Unmarshal(resp, &res.Response); err != nil {
			return Result{}, err
		}
	}
	if e, ok := fields["error"]; ok {
		_ = json.Unmarshal(e, &res.Error)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return Result{}, err
	}
	res.raw = compact.Bytes()
	return res, nil
}

// isJSONObject reports whether b holds a single JSON object.
func isJSONObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{' && json.Valid(b)
}
