package ai

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed proposal.schema.json
var proposalSchemaJSON string

var proposalSchema = mustCompileSchema(proposalSchemaJSON)

func mustCompileSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(err)
	}
	return schema
}

// validateProposals rejects model output that does not match the
// proposal contract before it reaches any caller.
func validateProposals(content []byte) error {
	res, err := proposalSchema.Validate(gojsonschema.NewBytesLoader(content))
	if err != nil {
		return fmt.Errorf("proposal validation failed: %w", err)
	}
	if !res.Valid() {
		details := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			details = append(details, e.String())
		}
		return fmt.Errorf("proposal schema invalid: %s", strings.Join(details, "; "))
	}
	return nil
}
