package session

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema
var schemaFiles embed.FS

const gameStateSchemaURL = "https://passthepresent.local/schemas/gamestate.json"

var gameStateSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	data, err := schemaFiles.ReadFile("schema/gamestate.json")
	if err != nil {
		return nil, fmt.Errorf("failed to read game state schema: %w", err)
	}
	if err := compiler.AddResource(gameStateSchemaURL, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to add game state schema: %w", err)
	}
	schema, err := compiler.Compile(gameStateSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile game state schema: %w", err)
	}
	return schema, nil
})

// DecodeState checks a persisted game state against the schema, decodes it
// and validates the invariants the schema cannot express.
func DecodeState(data []byte) (GameState, error) {
	schema, err := gameStateSchema()
	if err != nil {
		return GameState{}, err
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return GameState{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return GameState{}, fmt.Errorf("schema validation failed: %w", err)
	}

	var state GameState
	if err := json.Unmarshal(data, &state); err != nil {
		return GameState{}, fmt.Errorf("decode game state: %w", err)
	}
	if err := state.Validate(); err != nil {
		return GameState{}, fmt.Errorf("invalid game state: %w", err)
	}
	return state, nil
}
