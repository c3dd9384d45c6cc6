package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"
)

// Kind tags the variant held by a Status.
type Kind uint8

const (
	KindUnset Kind = iota
	KindInProgress
	KindDone
	KindEmpty
)

func (k Kind) String() string {
	switch k {
	case KindInProgress:
		return "in_progress"
	case KindDone:
		return "done"
	case KindEmpty:
		return "empty"
	default:
		return "unset"
	}
}

// Document markers for the non-mapping variants.
const (
	markerInProgress = "I"
	markerEmpty      = "NA"
)

// TimestampLayout formats Done mapping values.
const TimestampLayout = "2006-01-02T15:04:05Z"

// Timestamp renders t in the ledger's Done mapping format.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Status is the per-stage state of one record: Unset, InProgress,
// Done(mapping of sub-item id to timestamp), or Empty. The zero value is Unset.
type Status struct {
	kind  Kind
	items map[string]string
}

// Unset returns the not-yet-attempted status.
func Unset() Status { return Status{} }

// InProgress returns the claimed-but-unresolved status.
func InProgress() Status { return Status{kind: KindInProgress} }

// Empty returns the "stage ran, found nothing" status.
func Empty() Status { return Status{kind: KindEmpty} }

// Done returns a Done status holding a copy of items. An empty mapping yields
// Empty, since Done always records at least one produced sub-item.
func Done(items map[string]string) Status {
	if len(items) == 0 {
		return Empty()
	}
	return Status{kind: KindDone, items: maps.Clone(items)}
}

// DoneAt builds a Done status that stamps every id with ts.
func DoneAt(ids []string, ts time.Time) Status {
	stamp := Timestamp(ts)
	items := make(map[string]string, len(ids))
	for _, id := range ids {
		if id != "" {
			items[id] = stamp
		}
	}
	return Done(items)
}

func (s Status) Kind() Kind { return s.kind }

func (s Status) IsUnset() bool { return s.kind == KindUnset }

func (s Status) IsInProgress() bool { return s.kind == KindInProgress }

func (s Status) IsDone() bool { return s.kind == KindDone }

func (s Status) IsEmpty() bool { return s.kind == KindEmpty }

// IsTerminal reports whether the status is Done or Empty.
func (s Status) IsTerminal() bool { return s.kind == KindDone || s.kind == KindEmpty }

// Items returns a copy of the Done mapping (nil for other variants).
func (s Status) Items() map[string]string {
	if s.kind != KindDone {
		return nil
	}
	return maps.Clone(s.items)
}

// Len returns the number of sub-items in a Done mapping.
func (s Status) Len() int {
	return len(s.items)
}

// Equal reports whether two statuses hold the same variant and mapping.
func (s Status) Equal(other Status) bool {
	return s.kind == other.kind && maps.Equal(s.items, other.items)
}

func (s Status) String() string {
	switch s.kind {
	case KindDone:
		return fmt.Sprintf("done(%d)", len(s.items))
	default:
		return s.kind.String()
	}
}

// MarshalJSON encodes the variant as null, "I", "NA", or an object.
func (s Status) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case KindInProgress:
		return json.Marshal(markerInProgress)
	case KindEmpty:
		return json.Marshal(markerEmpty)
	case KindDone:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, key := range slices.Sorted(maps.Keys(s.items)) {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(key)
			if err != nil {
				return nil, err
			}
			v, err := json.Marshal(s.items[key])
			if err != nil {
				return nil, err
			}
			buf.Write(k)
			buf.WriteByte(':')
			buf.Write(v)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes the document encoding. Unrecognized markers decode as
// Unset so the item is retried rather than the whole ledger rejected.
func (s *Status) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = Unset()
		return nil
	}
	switch trimmed[0] {
	case '"':
		var marker string
		if err := json.Unmarshal(trimmed, &marker); err != nil {
			return err
		}
		switch marker {
		case markerInProgress:
			*s = InProgress()
		case markerEmpty:
			*s = Empty()
		default:
			*s = Unset()
		}
		return nil
	case '{':
		raw := map[string]any{}
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		items := make(map[string]string, len(raw))
		for key, value := range raw {
			switch v := value.(type) {
			case string:
				items[key] = v
			default:
				items[key] = fmt.Sprint(v)
			}
		}
		*s = Done(items)
		return nil
	default:
		*s = Unset()
		return nil
	}
}
