package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

const (
	keyTicketID    = "Ticket_ID"
	keyCreatedWhen = "Created_when"
	keyCreatedBy   = "Created_by"
)

// Record tracks one ticket's progress through every stage.
type Record struct {
	TicketID    int64
	CreatedWhen string
	CreatedBy   string

	statuses map[Stage]Status
	// extra preserves document keys this package does not own.
	extra map[string]json.RawMessage
}

// NewRecord builds a skeleton record with every stage Unset.
func NewRecord(id int64, createdWhen, createdBy string) Record {
	return Record{TicketID: id, CreatedWhen: createdWhen, CreatedBy: createdBy}
}

// Status returns the status for stage (Unset when never written).
func (r Record) Status(stage Stage) Status {
	return r.statuses[stage]
}

// SetStatus overwrites the status for stage.
func (r *Record) SetStatus(stage Stage, status Status) {
	if r.statuses == nil {
		r.statuses = make(map[Stage]Status, len(stageFields))
	}
	r.statuses[stage] = status
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	out := r
	out.statuses = maps.Clone(r.statuses)
	out.extra = maps.Clone(r.extra)
	return out
}

// MarshalJSON writes the owned keys in a fixed order followed by any
// preserved keys in sorted order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(key string, value any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	if err := write(keyTicketID, r.TicketID); err != nil {
		return nil, err
	}
	if err := write(keyCreatedWhen, r.CreatedWhen); err != nil {
		return nil, err
	}
	if err := write(keyCreatedBy, r.CreatedBy); err != nil {
		return nil, err
	}
	for _, stage := range Stages() {
		if err := write(stage.Field(), r.Status(stage)); err != nil {
			return nil, err
		}
	}
	for _, key := range slices.Sorted(maps.Keys(r.extra)) {
		if err := write(key, r.extra[key]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a record, accepting a numeric or numeric-string id.
func (r *Record) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	idRaw, ok := raw[keyTicketID]
	if !ok {
		return fmt.Errorf("record missing %s", keyTicketID)
	}
	id, err := parseTicketID(idRaw)
	if err != nil {
		return err
	}
	*r = Record{TicketID: id}
	delete(raw, keyTicketID)

	if v, ok := raw[keyCreatedWhen]; ok {
		r.CreatedWhen = rawString(v)
		delete(raw, keyCreatedWhen)
	}
	if v, ok := raw[keyCreatedBy]; ok {
		r.CreatedBy = rawString(v)
		delete(raw, keyCreatedBy)
	}
	for _, stage := range Stages() {
		v, ok := raw[stage.Field()]
		if !ok {
			continue
		}
		var status Status
		if err := json.Unmarshal(v, &status); err != nil {
			return fmt.Errorf("ticket %d %s: %w", id, stage.Field(), err)
		}
		r.SetStatus(stage, status)
		delete(raw, stage.Field())
	}
	if len(raw) > 0 {
		r.extra = raw
	}
	return nil
}

func parseTicketID(raw json.RawMessage) (int64, error) {
	var num json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return 0, fmt.Errorf("decode %s: %w", keyTicketID, err)
	}
	switch v := value.(type) {
	case json.Number:
		num = v
	case string:
		num = json.Number(strings.TrimSpace(v))
	default:
		return 0, fmt.Errorf("%s has unsupported type %T", keyTicketID, value)
	}
	id, err := strconv.ParseInt(num.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", keyTicketID, num, err)
	}
	return id, nil
}

func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}
	return trimmed
}
