package manifest

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error

	// A cue.Context is not safe for concurrent use.
	validateMu sync.Mutex
)

func loadSchema() {
	schemaCtx = cuecontext.New()
	schema := schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		schemaErr = fmt.Errorf("manifest schema: %w", err)
		return
	}
	schemaDef = schema.LookupPath(cue.ParsePath("#Manifest"))
	if err := schemaDef.Err(); err != nil {
		schemaErr = fmt.Errorf("manifest schema: %w", err)
	}
}

// Validate checks m against the embedded CUE schema.
func Validate(m *Manifest) error {
	validateMu.Lock()
	defer validateMu.Unlock()

	schemaOnce.Do(loadSchema)
	if schemaErr != nil {
		return schemaErr
	}

	v := schemaDef.Unify(schemaCtx.Encode(m))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid manifest: %s", cueerrors.Details(err, nil))
	}
	return nil
}
