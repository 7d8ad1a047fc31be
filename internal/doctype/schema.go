package doctype

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// recordDefinition is the CUE definition documents are unified with.
const recordDefinition = "#IWONumber"

// ErrInvalidRecord is returned when a record document or value does not
// have the shape of an IWO Number.
var ErrInvalidRecord = errors.New("invalid record")

// DecodeRecord parses a YAML or JSON record document, validates it against
// the embedded CUE schema and returns the normalized typed record.
//
// Example document:
//
//	name: IWO-0001
//	team_members:
//	  - user: alice@example.com
//	  - user: bob@example.com
func DecodeRecord(data []byte) (Record, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Record{}, fmt.Errorf("%w: parse: %v", ErrInvalidRecord, err)
	}
	if raw == nil {
		return Record{}, fmt.Errorf("%w: empty document", ErrInvalidRecord)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Record{}, fmt.Errorf("compile record schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath(recordDefinition)).Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Record{}, fmt.Errorf("%w: %s", ErrInvalidRecord, formatCUEError(err))
	}

	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: decode: %v", ErrInvalidRecord, err)
	}
	return rec.Normalized(), nil
}

// Validate checks the invariants a record must satisfy before it is saved.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRecord)
	}
	if strings.TrimSpace(r.Doctype) == "" {
		return fmt.Errorf("%w: doctype is required", ErrInvalidRecord)
	}
	return nil
}

// formatCUEError flattens a CUE error list into a single line.
func formatCUEError(err error) string {
	var msgs []string
	for _, e := range cueerrors.Errors(err) {
		msgs = append(msgs, strings.TrimSpace(cueerrors.Details(e, nil)))
	}
	if len(msgs) == 0 {
		return err.Error()
	}
	return strings.Join(msgs, "; ")
}
