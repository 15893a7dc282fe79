// Package override merges the layered configuration sources for a record
// into one effective specification. Precedence is an explicit ordered
// list of lookup sources, walked independently per field: the first
// source that defines a non-nil value for a field wins, so different
// fields may resolve from different layers in the same call.
package override

import (
	"fmt"

	"github.com/mstrel/dns-fanout/internal/record"
)

type Field string

const (
	FieldContent    Field = "content"
	FieldTTL        Field = "ttl"
	FieldProxied    Field = "proxied"
	FieldRecordType Field = "recordType"
	FieldProviderID Field = "providerId"
)

// FieldValues is one source's contribution. Nil fields are undefined.
type FieldValues struct {
	Content    *string
	TTL        *int
	Proxied    *bool
	RecordType *record.Type
	ProviderID *string
}

// Source is a named lookup in the precedence chain.
type Source struct {
	Name   string
	Lookup func(hostname string) FieldValues
}

// StaticSource wraps already-known values as a source.
func StaticSource(name string, values FieldValues) Source {
	return Source{
		Name:   name,
		Lookup: func(string) FieldValues { return values },
	}
}

// EntrySource consults persisted hostname overrides, choosing the best
// match for the hostname being resolved. Disabled entries are skipped as
// if absent.
func EntrySource(name string, overrides []record.HostnameOverride) Source {
	return Source{
		Name: name,
		Lookup: func(hostname string) FieldValues {
			o := record.BestOverride(hostname, overrides)
			if o == nil {
				return FieldValues{}
			}
			return FieldValues{
				Content:    o.Content,
				TTL:        o.TTL,
				Proxied:    o.Proxied,
				RecordType: o.RecordType,
				ProviderID: o.ProviderID,
			}
		},
	}
}

// MissingFieldError means no source in the chain defined a required
// field. This is a configuration defect: the caller must ensure a global
// default exists for every required field.
type MissingFieldError struct {
	Field Field
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("no configured source defines required field %q", e.Field)
}

// Spec is the resolved effective record specification. Origins names the
// source each field resolved from.
type Spec struct {
	Content    string
	TTL        int
	Proxied    *bool
	RecordType record.Type
	ProviderID string
	Origins    map[Field]string
}

// Resolve walks the precedence chain for each required field
// independently. Sources are consulted in order; the first non-nil value
// per field wins.
func Resolve(hostname string, required []Field, sources []Source) (Spec, error) {
	looked := make([]FieldValues, len(sources))
	for i, src := range sources {
		looked[i] = src.Lookup(hostname)
	}

	spec := Spec{Origins: make(map[Field]string, len(required))}
	for _, field := range required {
		found := false
		for i, values := range looked {
			if apply(&spec, field, values) {
				spec.Origins[field] = sources[i].Name
				found = true
				break
			}
		}
		if !found {
			return Spec{}, &MissingFieldError{Field: field}
		}
	}
	return spec, nil
}

func apply(spec *Spec, field Field, values FieldValues) bool {
	switch field {
	case FieldContent:
		if values.Content != nil {
			spec.Content = *values.Content
			return true
		}
	case FieldTTL:
		if values.TTL != nil {
			spec.TTL = *values.TTL
			return true
		}
	case FieldProxied:
		if values.Proxied != nil {
			spec.Proxied = values.Proxied
			return true
		}
	case FieldRecordType:
		if values.RecordType != nil {
			spec.RecordType = *values.RecordType
			return true
		}
	case FieldProviderID:
		if values.ProviderID != nil {
			spec.ProviderID = *values.ProviderID
			return true
		}
	}
	return false
}
